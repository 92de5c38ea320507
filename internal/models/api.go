package models

import "time"

// --- Request Structs ---

// UnlockRequest is the body of POST /v1/auth/unlock.
type UnlockRequest struct {
	AccessCode string `json:"access_code"`
}

// QueryRequest is the body of POST /v1/chat/query.
type QueryRequest struct {
	Message       string `json:"message"`
	Provider      string `json:"provider,omitempty"` // "auto" or a provider name
	Model         string `json:"model,omitempty"`    // forces a single model
	ForceCouncil  bool   `json:"force_council,omitempty"`
	CouncilRounds int    `json:"council_rounds,omitempty"`
	Debug         bool   `json:"debug,omitempty"`
}

// SpeechRequest is the body of POST /v1/speech.
type SpeechRequest struct {
	Text string `json:"text"`
}

// FactRequest is the body of POST /v1/facts.
type FactRequest struct {
	Content string `json:"content"`
}

// --- Response Structs ---

// AuthResponse is returned after a successful unlock.
type AuthResponse struct {
	AccessToken string    `json:"access_token"`
	SessionID   string    `json:"session_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ErrorResponse defines the standard structure for API errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Attempt records one provider/model try made by the dispatcher.
type Attempt struct {
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
	OK       bool   `json:"ok"`
	Skipped  bool   `json:"skipped,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Error    string `json:"error,omitempty"`
	Status   int    `json:"status,omitempty"`
}

// CouncilEvent is one step of a council run.
type CouncilEvent struct {
	Role     string         `json:"role"`
	Text     string         `json:"text"`
	Provider string         `json:"provider,omitempty"`
	Model    string         `json:"model,omitempty"`
	Tools    map[string]any `json:"tools,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// QueryResponse is returned by POST /v1/chat/query.
type QueryResponse struct {
	OK        bool           `json:"ok"`
	Text      string         `json:"text"`
	Provider  string         `json:"provider,omitempty"`
	Model     string         `json:"model,omitempty"`
	Fallback  bool           `json:"fallback,omitempty"`
	Attempts  []Attempt      `json:"attempts,omitempty"`
	Council   []CouncilEvent `json:"council,omitempty"`
	SessionID string         `json:"session_id"`
	Timestamp int64          `json:"ts"`
}

// TranscriptResponse is returned by GET /v1/chat/transcript.
type TranscriptResponse struct {
	SessionID string    `json:"session_id"`
	Messages  []Message `json:"messages"`
}

// SpeechFallbackResponse replaces audio when synthesis is unavailable.
type SpeechFallbackResponse struct {
	Caption string `json:"caption"`
}

// WeatherResponse is returned by GET /v1/tools/weather.
type WeatherResponse struct {
	OK    bool   `json:"ok"`
	Query string `json:"query"`
	Line  string `json:"line"`
}

// NewsResponse is returned by GET /v1/tools/news.
type NewsResponse struct {
	OK        bool     `json:"ok"`
	Provider  string   `json:"provider,omitempty"`
	Headlines []string `json:"headlines"`
}

// ListFactsResponse is returned by GET /v1/facts.
type ListFactsResponse struct {
	Facts []Fact `json:"facts"`
}

// LastAlertResponse is returned by GET /v1/alerts/last.
type LastAlertResponse struct {
	Alert *Alert `json:"alert"`
}

// CouncilLogResponse is returned by GET /v1/council/last and GET /v1/council/{sessionID}.
type CouncilLogResponse struct {
	HasLog    bool           `json:"has_log"`
	SessionID string         `json:"session_id,omitempty"`
	CreatedAt *time.Time     `json:"created,omitempty"`
	Events    []CouncilEvent `json:"events"`
}

// LastTried describes the most recent provider attempt.
type LastTried struct {
	Timestamp int64  `json:"ts,omitempty"`
	Provider  string `json:"provider,omitempty"`
	Model     string `json:"model,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ProviderStatus describes one configured provider.
type ProviderStatus struct {
	Name       string   `json:"name"`
	Kind       string   `json:"kind"`
	KeyPresent bool     `json:"key_present"`
	Models     []string `json:"models"`
}

// ProvidersResponse is returned by GET /v1/status/providers.
type ProvidersResponse struct {
	Providers []ProviderStatus `json:"providers"`
}

// IntegrationStatus is the result of checking one external integration.
type IntegrationStatus struct {
	Name    string                 `json:"name"`
	OK      bool                   `json:"ok"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// IntegrationsResponse is returned by GET /v1/status/integrations.
type IntegrationsResponse struct {
	Integrations []IntegrationStatus `json:"integrations"`
}
