package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"arc-backend/internal/crypto"
	"arc-backend/internal/models"
)

// ErrNotFound is returned when a specific record is not found.
var ErrNotFound = errors.New("record not found")

// BlobStore is the byte-level contract every snapshot backend implements.
// Last write wins; there is no versioning.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
}

// SnapshotStore persists a transcript under a key.
// Load returns ErrNotFound when nothing was saved under key.
type SnapshotStore interface {
	Load(ctx context.Context, key string) ([]models.Message, error)
	Save(ctx context.Context, key string, messages []models.Message) error
}

// FactStore holds long-term memory entries.
type FactStore interface {
	AddFact(ctx context.Context, content string) (*models.Fact, error)
	// ListFacts returns the newest limit facts, oldest first. limit <= 0 means all.
	ListFacts(ctx context.Context, limit int) ([]models.Fact, error)
}

// AlertStore records security alerts.
type AlertStore interface {
	LogAlert(ctx context.Context, content string) (*models.Alert, error)
	// LastAlert returns ErrNotFound when no alert was ever logged.
	LastAlert(ctx context.Context) (*models.Alert, error)
}

// CouncilLogStore keeps the event trail of council runs.
type CouncilLogStore interface {
	SaveCouncilLog(ctx context.Context, sessionID string, events []models.CouncilEvent) (*models.CouncilLog, error)
	// LastCouncilLog returns ErrNotFound when no council has run.
	LastCouncilLog(ctx context.Context) (*models.CouncilLog, error)
	// CouncilLog returns the newest log for sessionID, or ErrNotFound.
	CouncilLog(ctx context.Context, sessionID string) (*models.CouncilLog, error)
}

// Compile-time check to ensure Snapshots implements SnapshotStore
var _ SnapshotStore = (*Snapshots)(nil)

// Snapshots encodes transcripts as JSON on top of a BlobStore, optionally sealed with
// AES-GCM. The storage key is used as additional data so a blob can't be replayed under
// another key.
type Snapshots struct {
	blobs  BlobStore
	sealer *crypto.Sealer
}

// NewSnapshots wraps blobs. sealer may be nil for plaintext JSON.
func NewSnapshots(blobs BlobStore, sealer *crypto.Sealer) *Snapshots {
	return &Snapshots{blobs: blobs, sealer: sealer}
}

// Load reads and decodes the snapshot stored under key.
func (s *Snapshots) Load(ctx context.Context, key string) ([]models.Message, error) {
	data, err := s.blobs.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if s.sealer != nil {
		if data, err = s.sealer.Open(data, []byte(key)); err != nil {
			return nil, fmt.Errorf("failed to decrypt snapshot %s: %w", key, err)
		}
	}

	var messages []models.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", key, err)
	}
	return messages, nil
}

// Save encodes messages and writes them under key.
func (s *Snapshots) Save(ctx context.Context, key string, messages []models.Message) error {
	if messages == nil {
		messages = []models.Message{}
	}
	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if s.sealer != nil {
		if data, err = s.sealer.Seal(data, []byte(key)); err != nil {
			return fmt.Errorf("failed to encrypt snapshot %s: %w", key, err)
		}
	}
	return s.blobs.Put(ctx, key, data)
}
