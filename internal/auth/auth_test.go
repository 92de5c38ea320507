package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAccessCode(t *testing.T) {
	sum := sha256.Sum256([]byte("jarvis"))
	shaHex := hex.EncodeToString(sum[:])
	bcryptHash, err := HashAccessCode("jarvis")
	require.NoError(t, err)

	tests := []struct {
		name   string
		code   string
		secret string
		want   bool
	}{
		{"sha256 match", "jarvis", shaHex, true},
		{"sha256 uppercase digest", "jarvis", toUpper(shaHex), true},
		{"sha256 mismatch", "ultron", shaHex, false},
		{"bcrypt match", "jarvis", bcryptHash, true},
		{"bcrypt mismatch", "ultron", bcryptHash, false},
		{"plaintext match", "jarvis", "jarvis", true},
		{"plaintext mismatch", "jarvi", "jarvis", false},
		{"empty code", "", "jarvis", false},
		{"empty secret", "jarvis", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckAccessCode(tt.code, tt.secret))
		})
	}
}

func toUpper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'f' {
			b[i] = c - 32
		}
	}
	return string(b)
}

func TestSessionToken_RoundTrip(t *testing.T) {
	token, exp, err := NewSessionToken("sess-1", "secret", time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := ParseSessionToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.Equal(t, "sess-1", claims.Subject)
}

func TestSessionToken_WrongSecret(t *testing.T) {
	token, _, err := NewSessionToken("sess-1", "secret", time.Hour)
	require.NoError(t, err)

	_, err = ParseSessionToken(token, "other")
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestSessionToken_Expired(t *testing.T) {
	token, _, err := NewSessionToken("sess-1", "secret", -time.Minute)
	require.NoError(t, err)

	_, err = ParseSessionToken(token, "secret")
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestSessionToken_MissingSession(t *testing.T) {
	token, _, err := NewSessionToken("", "secret", time.Hour)
	require.NoError(t, err)

	_, err = ParseSessionToken(token, "secret")
	assert.ErrorIs(t, err, ErrMissingSession)
}

func TestSessionContext(t *testing.T) {
	_, ok := SessionIDFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithSessionID(context.Background(), "abc")
	id, ok := SessionIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "abc", id)
}
