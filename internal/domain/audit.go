package domain

import "time"

type ActorType string

const (
	ActorUser   ActorType = "user"
	ActorAdmin  ActorType = "admin"
	ActorSystem ActorType = "system"
)

type AuditEntry struct {
	ID            int64          `json:"id"`
	EntityType    string         `json:"entity_type"`
	EntityID      string         `json:"entity_id,omitempty"`
	Action        string         `json:"action"`
	ChangedBy     string         `json:"changed_by,omitempty"`
	ChangedByType ActorType      `json:"changed_by_type"`
	Details       map[string]any `json:"details,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

type AdminAction struct {
	ID         int64          `json:"id"`
	AdminID    string         `json:"admin_id"`
	ActionType string         `json:"action_type"`
	TargetType string         `json:"target_type"`
	TargetID   string         `json:"target_id"`
	Reason     string         `json:"reason,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
