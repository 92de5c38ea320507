package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIService_Synthesize(t *testing.T) {
	var got openAIRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/speech", r.URL.Path)
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3fake-mp3"))
	}))
	defer srv.Close()

	s := NewOpenAI("sk-test", WithOpenAIBaseURL(srv.URL), WithMaxChars(5))
	audio, err := s.Synthesize(context.Background(), "  Hello commander  ")
	require.NoError(t, err)

	assert.Equal(t, "ID3fake-mp3", string(audio.Data))
	assert.Equal(t, "audio/mpeg", audio.ContentType)
	assert.Equal(t, "Bearer sk-test", auth)
	assert.Equal(t, "Hello", got.Input)
	assert.Equal(t, VoiceOnyx, got.Voice)
	assert.Equal(t, ModelTTS1, got.Model)
}

func TestOpenAIService_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"quota"}`))
	}))
	defer srv.Close()

	s := NewOpenAI("sk", WithOpenAIBaseURL(srv.URL))
	_, err := s.Synthesize(context.Background(), "hi")
	assert.ErrorContains(t, err, "429")

	_, err = s.Synthesize(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyText)

	_, err = NewOpenAI("").Synthesize(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestOpenAIService_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewOpenAI("sk", WithOpenAIBaseURL(url)).Synthesize(context.Background(), "hi")
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short", "abc", 10, "abc"},
		{"exact", "abc", 3, "abc"},
		{"cut", "abcdef", 4, "abcd"},
		{"no limit", "abcdef", 0, "abcdef"},
		{"multibyte", "héllo wörld", 7, "héllo w"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truncate(tt.in, tt.max))
		})
	}

	long := strings.Repeat("é", 1500)
	out := Truncate(long, DefaultMaxChars)
	assert.Equal(t, DefaultMaxChars, utf8.RuneCountInString(out))
	assert.True(t, utf8.ValidString(out))
}
