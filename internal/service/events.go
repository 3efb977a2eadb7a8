package service

import (
	"context"
	"log/slog"

	"github.com/ecofinds/marketplace/internal/domain"
	"github.com/ecofinds/marketplace/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Emitter stores domain events in the outbox for the publisher to forward.
type Emitter struct {
	outbox repository.OutboxRepository
	log    *slog.Logger
}

func NewEmitter(outbox repository.OutboxRepository, log *slog.Logger) *Emitter {
	return &Emitter{outbox: outbox, log: log}
}

// Emit saves the events. The state change they describe is already committed,
// so failures are logged and not returned.
func (e *Emitter) Emit(ctx context.Context, payloads ...domain.EventPayload) {
	if e == nil || len(payloads) == 0 {
		return
	}
	events := make([]*domain.OutboxEvent, 0, len(payloads))
	for _, p := range payloads {
		ev, err := domain.NewOutboxEvent(p)
		if err != nil {
			e.log.ErrorContext(ctx, "failed to build outbox event", "event_type", p.EventType, "error", err)
			continue
		}
		events = append(events, ev)
	}
	if err := e.outbox.SaveEvents(ctx, events...); err != nil {
		e.log.ErrorContext(ctx, "failed to save outbox events", "count", len(events), "error", err)
	}
}

func hexes(ids ...primitive.ObjectID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !id.IsZero() {
			out = append(out, id.Hex())
		}
	}
	return out
}
