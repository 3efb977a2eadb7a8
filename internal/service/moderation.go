package service

import (
	"context"
	"log/slog"

	"github.com/ecofinds/marketplace/internal/audit"
	"github.com/ecofinds/marketplace/internal/domain"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// adminTrail writes admin action rows. Services that let an admin act on
// someone else's record use it so that override shows up in the ledger.
type adminTrail struct {
	ledger audit.Recorder
	log    *slog.Logger
}

// overrides reports whether actor is an admin acting on a record owned by
// none of owners.
func overrides(actor Actor, owners ...primitive.ObjectID) bool {
	if !actor.IsAdmin() {
		return false
	}
	for _, id := range owners {
		if id == actor.ID {
			return false
		}
	}
	return true
}

func (t adminTrail) record(ctx context.Context, actor Actor, action, targetType string, targetID primitive.ObjectID, reason string, details map[string]any) {
	if t.ledger == nil {
		return
	}
	err := t.ledger.RecordAdminAction(ctx, domain.AdminAction{
		AdminID:    actor.ID.Hex(),
		ActionType: action,
		TargetType: targetType,
		TargetID:   targetID.Hex(),
		Reason:     reason,
		Details:    details,
	})
	if err != nil {
		t.log.ErrorContext(ctx, "failed to record admin action", "action", action, "target_id", targetID.Hex(), "error", err)
	}
}
