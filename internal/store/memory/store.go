// Package memory keeps snapshots, facts, alerts and council logs in process memory.
package memory

import (
	"context"
	"sync"
	"time"

	"arc-backend/internal/models"
	"arc-backend/internal/store"

	"github.com/google/uuid"
)

var (
	_ store.BlobStore  = (*Store)(nil)
	_ store.FactStore  = (*Store)(nil)
	_ store.AlertStore = (*Store)(nil)

	_ store.CouncilLogStore = (*Store)(nil)
)

// Store is safe for concurrent use. Contents are lost on restart.
type Store struct {
	mu     sync.RWMutex
	blobs  map[string][]byte
	facts  []models.Fact
	alerts []models.Alert
	logs   []models.CouncilLog
	now    func() time.Time
}

func NewStore() *Store {
	return &Store{
		blobs: make(map[string][]byte),
		now:   time.Now,
	}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *Store) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = append([]byte(nil), data...)
	return nil
}

func (s *Store) AddFact(_ context.Context, content string) (*models.Fact, error) {
	f := models.Fact{ID: uuid.New(), Content: content, CreatedAt: s.now().UTC()}
	s.mu.Lock()
	s.facts = append(s.facts, f)
	s.mu.Unlock()
	return &f, nil
}

func (s *Store) ListFacts(_ context.Context, limit int) ([]models.Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	facts := s.facts
	if limit > 0 && len(facts) > limit {
		facts = facts[len(facts)-limit:]
	}
	return append([]models.Fact{}, facts...), nil
}

func (s *Store) LogAlert(_ context.Context, content string) (*models.Alert, error) {
	a := models.Alert{ID: uuid.New(), Content: content, CreatedAt: s.now().UTC()}
	s.mu.Lock()
	s.alerts = append(s.alerts, a)
	s.mu.Unlock()
	return &a, nil
}

func (s *Store) LastAlert(_ context.Context) (*models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.alerts) == 0 {
		return nil, store.ErrNotFound
	}
	a := s.alerts[len(s.alerts)-1]
	return &a, nil
}

func (s *Store) SaveCouncilLog(_ context.Context, sessionID string, events []models.CouncilEvent) (*models.CouncilLog, error) {
	l := models.CouncilLog{
		ID:        uuid.New(),
		SessionID: sessionID,
		Events:    append([]models.CouncilEvent{}, events...),
		CreatedAt: s.now().UTC(),
	}
	s.mu.Lock()
	s.logs = append(s.logs, l)
	s.mu.Unlock()
	return &l, nil
}

func (s *Store) LastCouncilLog(_ context.Context) (*models.CouncilLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.logs) == 0 {
		return nil, store.ErrNotFound
	}
	l := s.logs[len(s.logs)-1]
	return &l, nil
}

func (s *Store) CouncilLog(_ context.Context, sessionID string) (*models.CouncilLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.logs) - 1; i >= 0; i-- {
		if s.logs[i].SessionID == sessionID {
			l := s.logs[i]
			return &l, nil
		}
	}
	return nil, store.ErrNotFound
}
