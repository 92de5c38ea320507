package services

import (
	"context"
	"errors"
	"path"
	"strings"
	"sync"
	"time"

	"arc-backend/internal/logger"
	"arc-backend/internal/models"
	"arc-backend/internal/providers"
	"arc-backend/internal/store"

	"github.com/rs/zerolog"
)

const (
	// CouncilProvider is reported as the provider of council answers.
	CouncilProvider = "council"

	promptFactLimit = 20
)

// ChatConfig is the subset of configuration the chat service needs.
type ChatConfig struct {
	Persona       string
	TranscriptCap int // messages kept in a snapshot; <= 0 keeps all
	SnapshotKey   string
	PerSession    bool // one snapshot per session instead of one shared key
}

// ChatService owns per-session transcripts and turns prompts into replies.
type ChatService struct {
	cfg       ChatConfig
	completer Completer
	council   *CouncilService
	snapshots store.SnapshotStore
	facts     store.FactStore
	rec       Recorder
	log       zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	mu       sync.Mutex
	loaded   bool
	messages []models.Message
}

// NewChatService creates a ChatService. council, snapshots and facts may be nil.
func NewChatService(cfg ChatConfig, completer Completer, council *CouncilService,
	snapshots store.SnapshotStore, facts store.FactStore, rec Recorder) *ChatService {
	if cfg.SnapshotKey == "" {
		cfg.SnapshotKey = "memory.json"
	}
	return &ChatService{
		cfg:       cfg,
		completer: completer,
		council:   council,
		snapshots: snapshots,
		facts:     facts,
		rec:       recorderOrNop(rec),
		log:       logger.Component("ChatService"),
		sessions:  make(map[string]*session),
	}
}

// Query appends msg to the session, obtains a reply and persists the transcript.
// Provider failures never surface as errors; the reply is then the fallback text.
func (s *ChatService) Query(ctx context.Context, sessionID string, req models.QueryRequest) (*models.QueryResponse, error) {
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return nil, ErrEmptyMessage
	}

	sess := s.session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.ensureLoaded(ctx, sessionID, sess)

	recent := append([]models.Message(nil), sess.messages...)
	sess.messages = append(sess.messages, models.Message{Role: models.RoleUser, Content: msg})

	opts := providers.Options{Provider: req.Provider, Model: req.Model}
	resp := &models.QueryResponse{SessionID: sessionID}

	if s.council != nil && (req.ForceCouncil || ShouldUseCouncil(msg)) {
		out := s.council.Run(ctx, CouncilRequest{
			SessionID: sessionID,
			Message:   msg,
			Recent:    recent,
			Options:   opts,
			Rounds:    req.CouncilRounds,
		})
		resp.OK = out.OK
		resp.Text = out.Text
		resp.Provider = CouncilProvider
		resp.Model = req.Model
		resp.Fallback = !out.OK
		if req.Debug {
			resp.Council = out.Events
		}
	} else {
		res := s.completer.Complete(ctx, s.buildPrompt(ctx, msg), opts)
		resp.OK = !res.Fallback
		resp.Text = res.Text
		resp.Provider = res.Provider
		resp.Model = res.Model
		resp.Fallback = res.Fallback
		resp.Attempts = res.Attempts
	}

	sess.messages = append(sess.messages, models.Message{Role: models.RoleAssistant, Content: resp.Text})
	s.persist(ctx, sessionID, sess.messages)

	resp.Timestamp = time.Now().UnixMilli()
	return resp, nil
}

// Transcript returns a copy of the session's messages.
func (s *ChatService) Transcript(ctx context.Context, sessionID string) *models.TranscriptResponse {
	sess := s.session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	s.ensureLoaded(ctx, sessionID, sess)

	return &models.TranscriptResponse{
		SessionID: sessionID,
		Messages:  append([]models.Message{}, sess.messages...),
	}
}

// Clear resets the session to the greeting and overwrites its snapshot.
func (s *ChatService) Clear(ctx context.Context, sessionID string) *models.TranscriptResponse {
	sess := s.session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.loaded = true
	sess.messages = models.DefaultTranscript()
	s.persist(ctx, sessionID, sess.messages)
	s.log.Info().Str("session_id", sessionID).Msg("transcript cleared")

	return &models.TranscriptResponse{
		SessionID: sessionID,
		Messages:  append([]models.Message{}, sess.messages...),
	}
}

// SnapshotKey is the storage key used for sessionID.
func (s *ChatService) SnapshotKey(sessionID string) string {
	if !s.cfg.PerSession {
		return s.cfg.SnapshotKey
	}
	prefix := strings.TrimSuffix(s.cfg.SnapshotKey, path.Ext(s.cfg.SnapshotKey))
	return path.Join(prefix, sessionID+".json")
}

func (s *ChatService) session(sessionID string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &session{}
		s.sessions[sessionID] = sess
	}
	return sess
}

// ensureLoaded fills sess from its snapshot once. Any failure yields the greeting.
// Caller holds sess.mu.
func (s *ChatService) ensureLoaded(ctx context.Context, sessionID string, sess *session) {
	if sess.loaded {
		return
	}
	sess.loaded = true
	sess.messages = models.DefaultTranscript()
	if s.snapshots == nil {
		return
	}

	key := s.SnapshotKey(sessionID)
	messages, err := s.snapshots.Load(ctx, key)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.log.Debug().Str("key", key).Msg("no snapshot, starting fresh")
	case err != nil:
		s.rec.IncPersistError("load")
		s.log.Warn().Err(err).Str("key", key).Msg("failed to load snapshot, starting fresh")
	case len(messages) > 0:
		sess.messages = messages
	}
}

// persist saves the last TranscriptCap messages. Errors are logged and dropped.
func (s *ChatService) persist(ctx context.Context, sessionID string, messages []models.Message) {
	if s.snapshots == nil {
		return
	}
	ctx, cancel := detached(ctx)
	defer cancel()

	key := s.SnapshotKey(sessionID)
	if err := s.snapshots.Save(ctx, key, models.Truncate(messages, s.cfg.TranscriptCap)); err != nil {
		s.rec.IncPersistError("save")
		s.log.Warn().Err(err).Str("key", key).Msg("failed to save snapshot")
	}
}

func (s *ChatService) buildPrompt(ctx context.Context, msg string) string {
	var sb strings.Builder
	sb.WriteString(s.cfg.Persona)

	if s.facts != nil {
		facts, err := s.facts.ListFacts(ctx, promptFactLimit)
		if err != nil {
			s.rec.IncPersistError("fact")
			s.log.Warn().Err(err).Msg("failed to load facts for prompt")
		}
		if len(facts) > 0 {
			sb.WriteString("\n\nKnown facts:")
			for _, f := range facts {
				sb.WriteString("\n- ")
				sb.WriteString(f.Content)
			}
		}
	}

	if sb.Len() > 0 {
		sb.WriteString("\n\n")
	}
	sb.WriteString(msg)
	return sb.String()
}
