package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ecofinds/marketplace/internal/audit"
	"github.com/ecofinds/marketplace/internal/domain"
	"github.com/ecofinds/marketplace/internal/repository"
	"github.com/segmentio/kafka-go"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const maxAttempts = 3

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer turns published domain events into user notifications and audit log rows.
type Consumer struct {
	reader        messageReader
	notifications repository.NotificationRepository
	recorder      audit.Recorder
	log           *slog.Logger
	backoff       time.Duration
}

func NewConsumer(
	notifications repository.NotificationRepository,
	recorder audit.Recorder,
	topic, groupID string,
	log *slog.Logger,
	brokers ...string,
) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{
		reader:        reader,
		notifications: notifications,
		recorder:      recorder,
		log:           log,
		backoff:       500 * time.Millisecond,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.log.Error("error closing kafka reader", "error", err)
	}
}

// processMessage handles one message and commits it. Messages that still fail
// after maxAttempts are logged and committed so one bad event cannot stall the partition.
func (c *Consumer) processMessage(ctx context.Context) {
	m, err := c.reader.FetchMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		c.log.ErrorContext(ctx, "error reading message", "error", err)
		c.sleep(ctx)
		return
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = c.handle(ctx, m.Value)
		if err == nil || errors.Is(err, errMalformed) {
			break
		}
		c.log.WarnContext(ctx, "failed to handle event", "attempt", attempt, "offset", m.Offset, "error", err)
		c.sleep(ctx)
	}
	if err != nil {
		c.log.ErrorContext(ctx, "dropping event", "topic", m.Topic, "partition", m.Partition, "offset", m.Offset, "error", err)
	}

	if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		c.log.ErrorContext(ctx, "failed to commit message", "offset", m.Offset, "error", err)
	}
}

var errMalformed = errors.New("malformed event")

func (c *Consumer) handle(ctx context.Context, value []byte) error {
	var event domain.EventPayload
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	if event.EventType == "" {
		return fmt.Errorf("%w: missing event_type", errMalformed)
	}

	var related *domain.EntityRef
	if id, err := primitive.ObjectIDFromHex(event.EntityID); err == nil {
		related = &domain.EntityRef{Type: event.EntityType, ID: id}
	}

	for _, recipient := range event.Recipients {
		userID, err := primitive.ObjectIDFromHex(recipient)
		if err != nil {
			c.log.WarnContext(ctx, "skipping invalid recipient", "event_id", event.EventID, "recipient", recipient)
			continue
		}
		n := &domain.Notification{
			UserID:        userID,
			Type:          string(event.EventType),
			Title:         event.Title,
			Text:          event.Text,
			RelatedEntity: related,
			Link:          event.Link,
			SourceEvent:   event.EventID,
		}
		if err := c.notifications.Create(ctx, n); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				continue
			}
			return fmt.Errorf("failed to create notification: %w", err)
		}
	}

	return c.recordAudit(ctx, event)
}

func (c *Consumer) recordAudit(ctx context.Context, event domain.EventPayload) error {
	actorType := domain.ActorUser
	if event.ActorID == "" {
		actorType = domain.ActorSystem
	}
	details := map[string]any{"event_id": event.EventID}
	if len(event.Recipients) > 0 {
		details["recipients"] = event.Recipients
	}
	if event.Amount != 0 {
		details["amount"] = event.Amount
	}

	err := c.recorder.RecordAudit(ctx, domain.AuditEntry{
		EntityType:    event.EntityType,
		EntityID:      event.EntityID,
		Action:        string(event.EventType),
		ChangedBy:     event.ActorID,
		ChangedByType: actorType,
		Details:       details,
		CreatedAt:     event.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}

func (c *Consumer) sleep(ctx context.Context) {
	t := time.NewTimer(c.backoff)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
