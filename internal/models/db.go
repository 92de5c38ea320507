package models

import (
	"time"

	"github.com/google/uuid"
)

// Fact is a long-term memory entry injected into every prompt.
type Fact struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Alert is a recorded security or operational alert.
type Alert struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CouncilLog is the event trail of one council run, kept per session.
type CouncilLog struct {
	ID        uuid.UUID      `db:"id" json:"id"`
	SessionID string         `db:"session_id" json:"session_id"`
	Events    []CouncilEvent `db:"events" json:"events"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}
