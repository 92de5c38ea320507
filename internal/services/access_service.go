package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"arc-backend/internal/auth"
	"arc-backend/internal/logger"
	"arc-backend/internal/models"
	"arc-backend/internal/notify"
	"arc-backend/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Custom errors for access service
var (
	ErrInvalidAccessCode = errors.New("invalid access code")
	ErrCreatingToken     = errors.New("failed to create session token")
)

// Unlock results reported to the Recorder.
const (
	UnlockGranted = "granted"
	UnlockDenied  = "denied"
	UnlockLimited = "limited"
)

// AccessConfig is the subset of configuration the gate needs.
type AccessConfig struct {
	Secret             string
	JWTSecret          string
	TokenExpiration    time.Duration
	AlertAfterFailures int // 0 disables alerts
}

// AccessService guards the chat surface behind a shared access code.
type AccessService struct {
	cfg      AccessConfig
	notifier notify.Notifier
	alerts   store.AlertStore
	rec      Recorder
	log      zerolog.Logger

	mu       sync.Mutex
	failures map[string]int
}

func NewAccessService(cfg AccessConfig, notifier notify.Notifier, alerts store.AlertStore, rec Recorder) *AccessService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &AccessService{
		cfg:      cfg,
		notifier: notifier,
		alerts:   alerts,
		rec:      recorderOrNop(rec),
		log:      logger.Component("AccessService"),
		failures: make(map[string]int),
	}
}

// Unlock checks code and, on success, opens a new session.
// A wrong code returns ErrInvalidAccessCode and never opens a session.
func (s *AccessService) Unlock(ctx context.Context, code, clientIP string) (*models.AuthResponse, error) {
	if !auth.CheckAccessCode(code, s.cfg.Secret) {
		s.rec.IncUnlock(UnlockDenied)
		s.recordFailure(ctx, clientIP)
		return nil, ErrInvalidAccessCode
	}

	s.mu.Lock()
	delete(s.failures, clientIP)
	s.mu.Unlock()

	sessionID := uuid.NewString()
	token, expiresAt, err := auth.NewSessionToken(sessionID, s.cfg.JWTSecret, s.cfg.TokenExpiration)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to sign session token")
		return nil, ErrCreatingToken
	}

	s.rec.IncUnlock(UnlockGranted)
	s.log.Info().Str("session_id", sessionID).Str("ip", clientIP).Msg("session unlocked")
	return &models.AuthResponse{AccessToken: token, SessionID: sessionID, ExpiresAt: expiresAt}, nil
}

// Failures reports the current consecutive failure count for clientIP.
func (s *AccessService) Failures(clientIP string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures[clientIP]
}

// RecordLimited counts an attempt rejected by the rate limiter.
func (s *AccessService) RecordLimited(clientIP string) {
	s.rec.IncUnlock(UnlockLimited)
	s.log.Warn().Str("ip", clientIP).Msg("unlock rate limit exceeded")
}

func (s *AccessService) recordFailure(ctx context.Context, clientIP string) {
	s.mu.Lock()
	s.failures[clientIP]++
	count := s.failures[clientIP]
	fire := s.cfg.AlertAfterFailures > 0 && count >= s.cfg.AlertAfterFailures
	if fire {
		delete(s.failures, clientIP)
	}
	s.mu.Unlock()

	s.log.Warn().Str("ip", clientIP).Int("consecutive_failures", count).Msg("invalid access code")
	if !fire {
		return
	}

	text := fmt.Sprintf("A.R.C. security alert: %d failed unlock attempts from %s at %s",
		count, clientIP, time.Now().UTC().Format(time.RFC3339))

	ctx, cancel := detached(ctx)
	defer cancel()

	if err := s.notifier.Notify(ctx, text); err != nil {
		s.log.Error().Err(err).Msg("failed to send security alert")
	}
	if s.alerts != nil {
		if _, err := s.alerts.LogAlert(ctx, text); err != nil {
			s.rec.IncPersistError("alert")
			s.log.Error().Err(err).Msg("failed to log security alert")
		}
	}
}
