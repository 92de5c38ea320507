package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"arc-backend/internal/auth"
	"arc-backend/internal/integrations"
	"arc-backend/internal/models"
	"arc-backend/internal/services"
	"arc-backend/internal/tts"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAccess struct{ mock.Mock }

func (m *mockAccess) Unlock(ctx context.Context, code, clientIP string) (*models.AuthResponse, error) {
	args := m.Called(ctx, code, clientIP)
	resp, _ := args.Get(0).(*models.AuthResponse)
	return resp, args.Error(1)
}

type mockChat struct{ mock.Mock }

func (m *mockChat) Query(ctx context.Context, sessionID string, req models.QueryRequest) (*models.QueryResponse, error) {
	args := m.Called(ctx, sessionID, req)
	resp, _ := args.Get(0).(*models.QueryResponse)
	return resp, args.Error(1)
}

func (m *mockChat) Transcript(ctx context.Context, sessionID string) *models.TranscriptResponse {
	return m.Called(ctx, sessionID).Get(0).(*models.TranscriptResponse)
}

func (m *mockChat) Clear(ctx context.Context, sessionID string) *models.TranscriptResponse {
	return m.Called(ctx, sessionID).Get(0).(*models.TranscriptResponse)
}

type stubSpeech struct {
	res *services.SpeechResult
	err error
}

func (s stubSpeech) Speak(context.Context, string) (*services.SpeechResult, error) { return s.res, s.err }

type stubMemory struct {
	fact    *models.Fact
	err     error
	facts   []models.Fact
	alert   *models.Alert
	council *models.CouncilLogResponse
}

func (s stubMemory) AddFact(_ context.Context, content string) (*models.Fact, error) {
	return s.fact, s.err
}

func (s stubMemory) ListFacts(context.Context) (*models.ListFactsResponse, error) {
	return &models.ListFactsResponse{Facts: s.facts}, s.err
}

func (s stubMemory) LastAlert(context.Context) (*models.LastAlertResponse, error) {
	return &models.LastAlertResponse{Alert: s.alert}, s.err
}

func (s stubMemory) LastCouncilLog(context.Context) (*models.CouncilLogResponse, error) {
	return s.council, s.err
}

func (s stubMemory) CouncilLog(_ context.Context, sessionID string) (*models.CouncilLogResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.council == nil || s.council.SessionID != sessionID {
		return nil, services.ErrCouncilLogNotFound
	}
	return s.council, nil
}

type stubTools struct{}

func (stubTools) Weather(_ context.Context, q string) models.WeatherResponse {
	return models.WeatherResponse{OK: true, Query: q, Line: q + ": 70°F"}
}

func (stubTools) News(context.Context) models.NewsResponse {
	return models.NewsResponse{OK: true, Provider: "canned", Headlines: []string{"a"}}
}

type stubStatus struct{}

func (stubStatus) LastTried() models.LastTried {
	return models.LastTried{Provider: "openai", Model: "gpt-4o-mini"}
}

func (stubStatus) Status() []models.ProviderStatus {
	return []models.ProviderStatus{{Name: "openai", Kind: "openai", KeyPresent: true}}
}

type stubChecker struct{}

func (stubChecker) CheckAll(context.Context) []models.IntegrationStatus {
	return []models.IntegrationStatus{{Name: "slack", OK: true, Message: "ok"}}
}

func (stubChecker) Check(_ context.Context, name string) (models.IntegrationStatus, error) {
	switch name {
	case "slack":
		return models.IntegrationStatus{Name: "slack", OK: true, Message: "ok"}, nil
	case "broken":
		return models.IntegrationStatus{}, errors.New("boom")
	}
	return models.IntegrationStatus{}, fmt.Errorf("%w with name: %s", integrations.ErrUnknownIntegration, name)
}

func withSession(r *http.Request, sid string) *http.Request {
	return r.WithContext(auth.WithSessionID(r.Context(), sid))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func TestHandleUnlock(t *testing.T) {
	t.Run("granted", func(t *testing.T) {
		svc := &mockAccess{}
		want := &models.AuthResponse{AccessToken: "tok", SessionID: "sid", ExpiresAt: time.Now()}
		svc.On("Unlock", mock.Anything, "open", "192.0.2.1").Return(want, nil)

		req := httptest.NewRequest(http.MethodPost, "/v1/auth/unlock", strings.NewReader(`{"access_code":"open"}`))
		req.RemoteAddr = "192.0.2.1:5555"
		rec := httptest.NewRecorder()
		NewAuthHandler(svc).HandleUnlock(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var got models.AuthResponse
		decode(t, rec, &got)
		assert.Equal(t, "tok", got.AccessToken)
		svc.AssertExpectations(t)
	})

	t.Run("denied", func(t *testing.T) {
		svc := &mockAccess{}
		svc.On("Unlock", mock.Anything, "nope", mock.Anything).Return(nil, services.ErrInvalidAccessCode)

		rec := httptest.NewRecorder()
		NewAuthHandler(svc).HandleUnlock(rec,
			httptest.NewRequest(http.MethodPost, "/v1/auth/unlock", strings.NewReader(`{"access_code":"nope"}`)))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		var got models.ErrorResponse
		decode(t, rec, &got)
		assert.Equal(t, "ACCESS DENIED", got.Error)
	})

	t.Run("bad payload", func(t *testing.T) {
		svc := &mockAccess{}
		for _, body := range []string{`{`, `{}`, ``} {
			rec := httptest.NewRecorder()
			NewAuthHandler(svc).HandleUnlock(rec,
				httptest.NewRequest(http.MethodPost, "/v1/auth/unlock", strings.NewReader(body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		}
		svc.AssertNotCalled(t, "Unlock", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("internal error", func(t *testing.T) {
		svc := &mockAccess{}
		svc.On("Unlock", mock.Anything, mock.Anything, mock.Anything).Return(nil, services.ErrCreatingToken)

		rec := httptest.NewRecorder()
		NewAuthHandler(svc).HandleUnlock(rec,
			httptest.NewRequest(http.MethodPost, "/v1/auth/unlock", strings.NewReader(`{"access_code":"x"}`)))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHandleQuery(t *testing.T) {
	svc := &mockChat{}
	svc.On("Query", mock.Anything, "sid", models.QueryRequest{Message: "hi"}).
		Return(&models.QueryResponse{OK: true, Text: "hello", SessionID: "sid"}, nil)
	svc.On("Query", mock.Anything, "sid", models.QueryRequest{Message: " "}).
		Return(nil, services.ErrEmptyMessage)
	h := NewChatHandlers(svc)

	rec := httptest.NewRecorder()
	h.HandleQuery(rec, withSession(httptest.NewRequest(http.MethodPost, "/v1/chat/query",
		strings.NewReader(`{"message":"hi"}`)), "sid"))
	assert.Equal(t, http.StatusOK, rec.Code)
	var got models.QueryResponse
	decode(t, rec, &got)
	assert.Equal(t, "hello", got.Text)

	rec = httptest.NewRecorder()
	h.HandleQuery(rec, withSession(httptest.NewRequest(http.MethodPost, "/v1/chat/query",
		strings.NewReader(`{"message":" "}`)), "sid"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.HandleQuery(rec, httptest.NewRequest(http.MethodPost, "/v1/chat/query", strings.NewReader(`{"message":"hi"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	svc.AssertExpectations(t)
}

func TestHandleTranscriptAndClear(t *testing.T) {
	svc := &mockChat{}
	full := &models.TranscriptResponse{SessionID: "sid", Messages: []models.Message{{Role: models.RoleUser, Content: "hi"}}}
	svc.On("Transcript", mock.Anything, "sid").Return(full)
	svc.On("Clear", mock.Anything, "sid").Return(&models.TranscriptResponse{SessionID: "sid", Messages: []models.Message{}})
	h := NewChatHandlers(svc)

	rec := httptest.NewRecorder()
	h.HandleTranscript(rec, withSession(httptest.NewRequest(http.MethodGet, "/v1/chat/transcript", nil), "sid"))
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.TranscriptResponse
	decode(t, rec, &got)
	assert.Len(t, got.Messages, 1)

	rec = httptest.NewRecorder()
	h.HandleClear(rec, withSession(httptest.NewRequest(http.MethodDelete, "/v1/chat/transcript", nil), "sid"))
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &got)
	assert.Empty(t, got.Messages)
}

func TestHandleSpeech(t *testing.T) {
	t.Run("audio", func(t *testing.T) {
		h := NewSpeechHandler(stubSpeech{res: &services.SpeechResult{
			Audio: &tts.Audio{Data: []byte("ID3"), ContentType: "audio/mpeg"},
		}})
		rec := httptest.NewRecorder()
		h.HandleSpeech(rec, httptest.NewRequest(http.MethodPost, "/v1/speech", strings.NewReader(`{"text":"hi"}`)))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "audio/mpeg", rec.Header().Get("Content-Type"))
		assert.Equal(t, "ID3", rec.Body.String())
	})

	t.Run("caption", func(t *testing.T) {
		h := NewSpeechHandler(stubSpeech{res: &services.SpeechResult{Caption: services.VoiceOfflineCaption}})
		rec := httptest.NewRecorder()
		h.HandleSpeech(rec, httptest.NewRequest(http.MethodPost, "/v1/speech", strings.NewReader(`{"text":"hi"}`)))

		assert.Equal(t, http.StatusOK, rec.Code)
		var got models.SpeechFallbackResponse
		decode(t, rec, &got)
		assert.Equal(t, services.VoiceOfflineCaption, got.Caption)
	})

	t.Run("empty text", func(t *testing.T) {
		h := NewSpeechHandler(stubSpeech{err: services.ErrEmptyMessage})
		rec := httptest.NewRecorder()
		h.HandleSpeech(rec, httptest.NewRequest(http.MethodPost, "/v1/speech", strings.NewReader(`{"text":""}`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleTools(t *testing.T) {
	h := NewToolsHandler(stubTools{})

	rec := httptest.NewRecorder()
	h.HandleWeather(rec, httptest.NewRequest(http.MethodGet, "/v1/tools/weather?q=Boston", nil))
	var w models.WeatherResponse
	decode(t, rec, &w)
	assert.Equal(t, "Boston", w.Query)

	rec = httptest.NewRecorder()
	h.HandleNews(rec, httptest.NewRequest(http.MethodGet, "/v1/tools/news", nil))
	var n models.NewsResponse
	decode(t, rec, &n)
	assert.Equal(t, []string{"a"}, n.Headlines)
}

func TestHandleFacts(t *testing.T) {
	fact := &models.Fact{Content: "likes tea"}

	rec := httptest.NewRecorder()
	NewMemoryHandler(stubMemory{fact: fact}).HandleAddFact(rec,
		httptest.NewRequest(http.MethodPost, "/v1/facts", strings.NewReader(`{"content":"likes tea"}`)))
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	NewMemoryHandler(stubMemory{err: services.ErrValidation}).HandleAddFact(rec,
		httptest.NewRequest(http.MethodPost, "/v1/facts", strings.NewReader(`{"content":""}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	NewMemoryHandler(stubMemory{err: services.ErrFactsUnavailable}).HandleAddFact(rec,
		httptest.NewRequest(http.MethodPost, "/v1/facts", strings.NewReader(`{"content":"x"}`)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	NewMemoryHandler(stubMemory{facts: []models.Fact{*fact}}).HandleListFacts(rec,
		httptest.NewRequest(http.MethodGet, "/v1/facts", nil))
	var list models.ListFactsResponse
	decode(t, rec, &list)
	assert.Len(t, list.Facts, 1)

	rec = httptest.NewRecorder()
	NewMemoryHandler(stubMemory{err: errors.New("down")}).HandleListFacts(rec,
		httptest.NewRequest(http.MethodGet, "/v1/facts", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleLastAlert(t *testing.T) {
	rec := httptest.NewRecorder()
	NewMemoryHandler(stubMemory{}).HandleLastAlert(rec, httptest.NewRequest(http.MethodGet, "/v1/alerts/last", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"alert":null}`, rec.Body.String())
}

func TestStatusHandler(t *testing.T) {
	h := NewStatusHandler(stubStatus{}, stubChecker{})

	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.HandlePing(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	var ping map[string]any
	decode(t, rec, &ping)
	assert.Equal(t, true, ping["ok"])

	rec = httptest.NewRecorder()
	h.HandleLastTried(rec, httptest.NewRequest(http.MethodGet, "/v1/status/last-tried", nil))
	var lt models.LastTried
	decode(t, rec, &lt)
	assert.Equal(t, "openai", lt.Provider)

	rec = httptest.NewRecorder()
	h.HandleProviders(rec, httptest.NewRequest(http.MethodGet, "/v1/status/providers", nil))
	assert.NotContains(t, rec.Body.String(), "api_key")
	var pr models.ProvidersResponse
	decode(t, rec, &pr)
	require.Len(t, pr.Providers, 1)
	assert.True(t, pr.Providers[0].KeyPresent)

	rec = httptest.NewRecorder()
	h.HandleIntegrations(rec, httptest.NewRequest(http.MethodGet, "/v1/status/integrations", nil))
	var ir models.IntegrationsResponse
	decode(t, rec, &ir)
	require.Len(t, ir.Integrations, 1)
	assert.Equal(t, "slack", ir.Integrations[0].Name)

	rec = httptest.NewRecorder()
	NewStatusHandler(stubStatus{}, nil).HandleIntegrations(rec, httptest.NewRequest(http.MethodGet, "/v1/status/integrations", nil))
	assert.JSONEq(t, `{"integrations":[]}`, rec.Body.String())
}

// withURLParam attaches a chi route parameter the way the router would.
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestHandleCouncilLogs(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	entry := &models.CouncilLogResponse{
		HasLog:    true,
		SessionID: "sess-1",
		CreatedAt: &created,
		Events:    []models.CouncilEvent{{Role: "FINAL", Text: "answer"}},
	}
	h := NewMemoryHandler(stubMemory{council: entry})

	rec := httptest.NewRecorder()
	h.HandleLastCouncilLog(rec, httptest.NewRequest(http.MethodGet, "/v1/council/last", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var last models.CouncilLogResponse
	decode(t, rec, &last)
	assert.True(t, last.HasLog)
	assert.Equal(t, "sess-1", last.SessionID)

	rec = httptest.NewRecorder()
	h.HandleCouncilLog(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/v1/council/sess-1", nil), "sessionID", "sess-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.CouncilLogResponse
	decode(t, rec, &got)
	require.Len(t, got.Events, 1)
	assert.Equal(t, "answer", got.Events[0].Text)

	rec = httptest.NewRecorder()
	h.HandleCouncilLog(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/v1/council/other", nil), "sessionID", "other"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "No council log for that session.")

	rec = httptest.NewRecorder()
	NewMemoryHandler(stubMemory{err: services.ErrValidation}).HandleCouncilLog(rec,
		withURLParam(httptest.NewRequest(http.MethodGet, "/v1/council/x", nil), "sessionID", " "))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	NewMemoryHandler(stubMemory{err: errors.New("down")}).HandleLastCouncilLog(rec,
		httptest.NewRequest(http.MethodGet, "/v1/council/last", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatusHandler_Integration(t *testing.T) {
	h := NewStatusHandler(stubStatus{}, stubChecker{})
	get := func(h *StatusHandler, name string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.HandleIntegration(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/v1/status/integrations/"+name, nil), "name", name))
		return rec
	}

	rec := get(h, "slack")
	require.Equal(t, http.StatusOK, rec.Code)
	var st models.IntegrationStatus
	decode(t, rec, &st)
	assert.Equal(t, "slack", st.Name)
	assert.True(t, st.OK)

	assert.Equal(t, http.StatusNotFound, get(h, "jira").Code)
	assert.Equal(t, http.StatusInternalServerError, get(h, "broken").Code)
	assert.Equal(t, http.StatusNotFound, get(NewStatusHandler(stubStatus{}, nil), "slack").Code)
}
