package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// HashAccessCode generates a bcrypt hash suitable for ACCESS_CODE_HASH.
func HashAccessCode(code string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// CheckAccessCode compares user input against the configured secret.
// The secret may be a bcrypt hash, a SHA-256 hex digest, or plaintext.
func CheckAccessCode(code, secret string) bool {
	if code == "" || secret == "" {
		return false
	}

	switch {
	case strings.HasPrefix(secret, "$2"):
		err := bcrypt.CompareHashAndPassword([]byte(secret), []byte(code))
		if err != nil && !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			log.Error().Err(err).Msg("comparing access code hash")
		}
		return err == nil
	case isSHA256Hex(secret):
		sum := sha256.Sum256([]byte(code))
		digest := hex.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(digest), []byte(strings.ToLower(secret))) == 1
	default:
		return subtle.ConstantTimeCompare([]byte(code), []byte(secret)) == 1
	}
}

func isSHA256Hex(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
