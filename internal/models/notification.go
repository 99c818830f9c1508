package models

import "time"

// ItemCreatedEvent is published after a successful finalize. The chat and
// watch subsystems consume it; the pipeline only produces it.
type ItemCreatedEvent struct {
	ItemID     string      `json:"item_id"`
	ItemType   ContentKind `json:"item_type"`
	SoftwareID string      `json:"software_id"`
	Name       string      `json:"name"`
	ActorID    *string     `json:"actor_id,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// Notification is one per-user fan-out row created from an ItemCreatedEvent.
type Notification struct {
	ID        string      `db:"id" json:"id"`
	UserID    string      `db:"user_id" json:"user_id"`
	ItemType  ContentKind `db:"item_type" json:"item_type"`
	ItemID    string      `db:"item_id" json:"item_id"`
	Message   string      `db:"message" json:"message"`
	Read      bool        `db:"read" json:"read"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
}
