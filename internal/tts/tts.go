// Package tts turns reply text into speech audio.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	openAIBaseURL     = "https://api.openai.com/v1"
	openAITTSEndpoint = "/audio/speech"

	ModelTTS1 = "tts-1"
	VoiceOnyx = "onyx" // deep male voice

	DefaultMaxChars      = 1000
	defaultOpenAITimeout = 30 * time.Second
	maxAudioSize         = 16 << 20
	contentTypeMPEG      = "audio/mpeg"
)

var (
	ErrEmptyText     = errors.New("text is empty")
	ErrNotConfigured = errors.New("speech synthesis not configured")
)

// Synthesizer produces audio for text.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*Audio, error)
}

// Audio is a complete synthesized clip.
type Audio struct {
	Data        []byte
	ContentType string
}

// OpenAIService calls OpenAI's text-to-speech endpoint.
type OpenAIService struct {
	apiKey   string
	baseURL  string
	client   *http.Client
	model    string
	voice    string
	maxChars int
}

// OpenAIOption configures the OpenAI TTS service.
type OpenAIOption func(*OpenAIService)

// WithOpenAIBaseURL sets a custom base URL (for testing or proxies).
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(s *OpenAIService) {
		if url != "" {
			s.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithOpenAIClient sets a custom HTTP client.
func WithOpenAIClient(client *http.Client) OpenAIOption {
	return func(s *OpenAIService) {
		s.client = client
	}
}

// WithOpenAIModel sets the TTS model to use.
func WithOpenAIModel(model string) OpenAIOption {
	return func(s *OpenAIService) {
		if model != "" {
			s.model = model
		}
	}
}

// WithVoice sets the voice. Default is onyx.
func WithVoice(voice string) OpenAIOption {
	return func(s *OpenAIService) {
		if voice != "" {
			s.voice = voice
		}
	}
}

// WithMaxChars caps the characters sent for synthesis.
func WithMaxChars(n int) OpenAIOption {
	return func(s *OpenAIService) {
		if n > 0 {
			s.maxChars = n
		}
	}
}

// NewOpenAI creates an OpenAI TTS service.
func NewOpenAI(apiKey string, opts ...OpenAIOption) *OpenAIService {
	s := &OpenAIService{
		apiKey:   apiKey,
		baseURL:  openAIBaseURL,
		client:   &http.Client{Timeout: defaultOpenAITimeout},
		model:    ModelTTS1,
		voice:    VoiceOnyx,
		maxChars: DefaultMaxChars,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type openAIRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// Synthesize truncates text and returns MP3 audio.
func (s *OpenAIService) Synthesize(ctx context.Context, text string) (*Audio, error) {
	if s.apiKey == "" {
		return nil, ErrNotConfigured
	}
	text = Truncate(strings.TrimSpace(text), s.maxChars)
	if text == "" {
		return nil, ErrEmptyText
	}

	bodyBytes, err := json.Marshal(openAIRequest{
		Model:          s.model,
		Input:          text,
		Voice:          s.voice,
		ResponseFormat: "mp3",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+openAITTSEndpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("speech API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("speech API returned no audio")
	}
	return &Audio{Data: data, ContentType: contentTypeMPEG}, nil
}

// Truncate returns at most max runes of text. max <= 0 returns text unchanged.
func Truncate(text string, max int) string {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	i, n := 0, 0
	for i = range text {
		if n == max {
			break
		}
		n++
	}
	return text[:i]
}
