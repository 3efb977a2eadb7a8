package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ComplaintStatus string

const (
	ComplaintPendingReview       ComplaintStatus = "pending_review"
	ComplaintInProgress          ComplaintStatus = "in_progress"
	ComplaintResolvedActionTaken ComplaintStatus = "resolved_action_taken"
	ComplaintResolvedNoAction    ComplaintStatus = "resolved_no_action"
	ComplaintDismissed           ComplaintStatus = "dismissed"
)

func (s ComplaintStatus) Valid() bool {
	switch s {
	case ComplaintPendingReview, ComplaintInProgress, ComplaintResolvedActionTaken, ComplaintResolvedNoAction, ComplaintDismissed:
		return true
	}
	return false
}

type Complaint struct {
	ID                primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	ComplainantID     primitive.ObjectID  `json:"complainant_id" bson:"complainant_id"`
	TargetType        string              `json:"target_type" bson:"target_type"`
	TargetID          primitive.ObjectID  `json:"target_id" bson:"target_id"`
	Reason            string              `json:"reason" bson:"reason"`
	Description       string              `json:"description,omitempty" bson:"description,omitempty"`
	Status            ComplaintStatus     `json:"status" bson:"status"`
	AdminNotes        string              `json:"admin_notes,omitempty" bson:"admin_notes,omitempty"`
	AssignedTo        *primitive.ObjectID `json:"assigned_to,omitempty" bson:"assigned_to,omitempty"`
	ResolutionDetails string              `json:"resolution_details,omitempty" bson:"resolution_details,omitempty"`
	CreatedAt         time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at" bson:"updated_at"`
}
