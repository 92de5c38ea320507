package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"arc-backend/internal/logger"
	"arc-backend/internal/models"
	"arc-backend/internal/store"

	"github.com/rs/zerolog"
)

const maxFactLength = 2000

var ErrFactsUnavailable = errors.New("fact store unavailable")

var ErrCouncilLogNotFound = errors.New("no council log for that session")

// MemoryService manages long-term facts and exposes the alert and council logs.
type MemoryService struct {
	facts  store.FactStore
	alerts store.AlertStore
	logs   store.CouncilLogStore
	log    zerolog.Logger
}

func NewMemoryService(facts store.FactStore, alerts store.AlertStore, logs store.CouncilLogStore) *MemoryService {
	return &MemoryService{facts: facts, alerts: alerts, logs: logs, log: logger.Component("MemoryService")}
}

// AddFact stores content after validation.
func (s *MemoryService) AddFact(ctx context.Context, content string) (*models.Fact, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: content cannot be empty", ErrValidation)
	}
	if utf8.RuneCountInString(content) > maxFactLength {
		return nil, fmt.Errorf("%w: content exceeds %d characters", ErrValidation, maxFactLength)
	}
	if s.facts == nil {
		return nil, ErrFactsUnavailable
	}

	fact, err := s.facts.AddFact(ctx, content)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to add fact")
		return nil, fmt.Errorf("%w: %v", ErrFactsUnavailable, err)
	}
	return fact, nil
}

// ListFacts returns every stored fact, oldest first.
func (s *MemoryService) ListFacts(ctx context.Context) (*models.ListFactsResponse, error) {
	if s.facts == nil {
		return &models.ListFactsResponse{Facts: []models.Fact{}}, nil
	}
	facts, err := s.facts.ListFacts(ctx, 0)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list facts")
		return nil, fmt.Errorf("%w: %v", ErrFactsUnavailable, err)
	}
	if facts == nil {
		facts = []models.Fact{}
	}
	return &models.ListFactsResponse{Facts: facts}, nil
}

// LastAlert returns the newest alert, or a nil Alert when none was logged.
func (s *MemoryService) LastAlert(ctx context.Context) (*models.LastAlertResponse, error) {
	if s.alerts == nil {
		return &models.LastAlertResponse{}, nil
	}
	alert, err := s.alerts.LastAlert(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return &models.LastAlertResponse{}, nil
	}
	if err != nil {
		s.log.Error().Err(err).Msg("failed to read last alert")
		return nil, fmt.Errorf("failed to read last alert: %w", err)
	}
	return &models.LastAlertResponse{Alert: alert}, nil
}

// LastCouncilLog returns the newest council run. HasLog is false when none was saved.
func (s *MemoryService) LastCouncilLog(ctx context.Context) (*models.CouncilLogResponse, error) {
	if s.logs == nil {
		return &models.CouncilLogResponse{Events: []models.CouncilEvent{}}, nil
	}
	l, err := s.logs.LastCouncilLog(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return &models.CouncilLogResponse{Events: []models.CouncilEvent{}}, nil
	}
	if err != nil {
		s.log.Error().Err(err).Msg("failed to read last council log")
		return nil, fmt.Errorf("failed to read last council log: %w", err)
	}
	return councilLogResponse(l), nil
}

// CouncilLog returns the newest council run of sessionID, or ErrCouncilLogNotFound.
func (s *MemoryService) CouncilLog(ctx context.Context, sessionID string) (*models.CouncilLogResponse, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id cannot be empty", ErrValidation)
	}
	if s.logs == nil {
		return nil, ErrCouncilLogNotFound
	}
	l, err := s.logs.CouncilLog(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrCouncilLogNotFound
	}
	if err != nil {
		s.log.Error().Err(err).Str("session_id", sessionID).Msg("failed to read council log")
		return nil, fmt.Errorf("failed to read council log: %w", err)
	}
	return councilLogResponse(l), nil
}

func councilLogResponse(l *models.CouncilLog) *models.CouncilLogResponse {
	events := l.Events
	if events == nil {
		events = []models.CouncilEvent{}
	}
	created := l.CreatedAt
	return &models.CouncilLogResponse{
		HasLog:    true,
		SessionID: l.SessionID,
		CreatedAt: &created,
		Events:    events,
	}
}
