package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"arc-backend/internal/auth"

	"github.com/stretchr/testify/assert"
)

func sessionEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid, _ := auth.SessionIDFromContext(r.Context())
		_, _ = w.Write([]byte(sid))
	})
}

func TestJwtAuthMiddleware(t *testing.T) {
	mw := JwtAuthMiddleware(testSecret)(sessionEcho())

	valid, _, err := auth.NewSessionToken("sid-1", testSecret, time.Hour)
	assert.NoError(t, err)
	expired, _, err := auth.NewSessionToken("sid-1", testSecret, -time.Minute)
	assert.NoError(t, err)
	foreign, _, err := auth.NewSessionToken("sid-1", "other-secret", time.Hour)
	assert.NoError(t, err)

	tests := []struct {
		name   string
		header string
		code   int
		body   string
	}{
		{"valid", "Bearer " + valid, http.StatusOK, "sid-1"},
		{"lowercase scheme", "bearer " + valid, http.StatusOK, "sid-1"},
		{"missing", "", http.StatusUnauthorized, "Authorization header required"},
		{"malformed header", valid, http.StatusUnauthorized, "Malformed Authorization header"},
		{"expired", "Bearer " + expired, http.StatusUnauthorized, "Token has expired"},
		{"wrong secret", "Bearer " + foreign, http.StatusUnauthorized, "Invalid token"},
		{"garbage", "Bearer not.a.jwt", http.StatusUnauthorized, "Malformed token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/chat/transcript", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			mw.ServeHTTP(rec, req)
			assert.Equal(t, tt.code, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.body)
		})
	}
}

func TestUnlockLimiter_Disabled(t *testing.T) {
	l := NewUnlockLimiter(0, 0, nil)
	h := l.Middleware(sessionEcho())
	for i := 0; i < 20; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/auth/unlock", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestUnlockLimiter_PerIP(t *testing.T) {
	l := NewUnlockLimiter(1, 1, nil)
	h := l.Middleware(sessionEcho())

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/unlock", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("198.51.100.1:1000"))
	assert.Equal(t, http.StatusTooManyRequests, send("198.51.100.1:1001"))
	assert.Equal(t, http.StatusOK, send("198.51.100.2:1000"))
}

func TestUnlockLimiter_EvictsIdleBuckets(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewUnlockLimiter(5, 5, nil)
	l.now = func() time.Time { return clock }

	for _, ip := range []string{"198.51.100.1", "198.51.100.2", "198.51.100.3"} {
		l.limiter(ip)
	}
	assert.Equal(t, 3, l.tracked())

	clock = clock.Add(limiterIdleTTL / 2)
	l.limiter("198.51.100.1")
	assert.Equal(t, 3, l.tracked())

	clock = clock.Add(limiterIdleTTL)
	l.limiter("198.51.100.4")
	assert.Equal(t, 1, l.tracked())
}
