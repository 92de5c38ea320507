package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Snapshot backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendS3       = "s3"
	BackendNotion   = "notion"
)

var ErrMissingAccessCode = errors.New("ACCESS_CODE_HASH or ACCESS_CODE must be set")

// Config holds application configuration values loaded from environment variables.
type Config struct {
	HTTPPort        string
	AllowedOrigins  []string
	JWTSecret       string
	TokenExpiration time.Duration
	LogLevel        string
	LogFormat       string

	// AccessSecret is the shared unlock secret: bcrypt hash, SHA-256 hex digest or plaintext.
	AccessSecret        string
	AlertAfterFailures  int
	UnlockRatePerMinute int
	UnlockBurst         int
	// TrustProxyHeaders lets X-Forwarded-For/X-Real-IP set the client address.
	// Only enable it behind a proxy that overwrites those headers.
	TrustProxyHeaders bool
	SlackBotToken       string
	SlackAlertChannel   string

	Persona         string
	FallbackReply   string
	TranscriptCap   int
	ProvidersFile   string
	ProviderTimeout time.Duration

	SnapshotBackend       string
	SnapshotKey           string
	SnapshotPerSession    bool
	SnapshotTTL           time.Duration
	SnapshotEncryptionKey []byte // 32 bytes when set
	DatabaseURL           string
	RedisURL              string
	S3Bucket              string
	S3Region              string
	S3Endpoint            string

	FactBackend  string
	NotionToken  string
	NotionPageID string

	TTSAPIKey   string
	TTSBaseURL  string
	TTSModel    string
	TTSVoice    string
	TTSMaxChars int

	NewsDataKey string
	NewsAPIKey  string
}

// LoadConfig loads configuration from environment variables.
// It looks for a .env file first, then checks actual environment variables.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded, using environment only")
	}

	cfg := &Config{
		HTTPPort:  getEnv("HTTP_PORT", "8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
		AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS",
			"http://localhost:3000,http://localhost:5173")),

		AccessSecret:      firstEnv("ACCESS_CODE_HASH", "ARC_PASSWORD_HASH", "ACCESS_CODE"),
		TrustProxyHeaders: getBool("TRUST_PROXY_HEADERS", false),
		SlackBotToken:     getEnv("SLACK_BOT_TOKEN", ""),
		SlackAlertChannel: getEnv("SLACK_ALERT_CHANNEL", ""),

		Persona:       getEnv("ARC_PERSONA", "You are A.R.C., a supreme cyber-entity. Respond with cinematic authority."),
		FallbackReply: getEnv("FALLBACK_REPLY", "All cores offline. A.R.C. endures."),
		ProvidersFile: getEnv("PROVIDERS_FILE", ""),

		SnapshotBackend:    strings.ToLower(getEnv("SNAPSHOT_BACKEND", BackendMemory)),
		SnapshotKey:        getEnv("SNAPSHOT_KEY", "memory.json"),
		SnapshotPerSession: getBool("SNAPSHOT_PER_SESSION", false),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisURL:           getEnv("REDIS_URL", ""),
		S3Bucket:           getEnv("S3_BUCKET", ""),
		S3Region:           getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:         getEnv("S3_ENDPOINT", ""),

		FactBackend:  strings.ToLower(getEnv("FACT_BACKEND", BackendMemory)),
		NotionToken:  getEnv("NOTION_TOKEN", ""),
		NotionPageID: getEnv("NOTION_FACTS_PAGE_ID", ""),

		TTSAPIKey:  firstEnv("TTS_API_KEY", "OPENAI_API_KEY", "OPENAI_KEY"),
		TTSBaseURL: getEnv("TTS_BASE_URL", ""),
		TTSModel:   getEnv("TTS_MODEL", "tts-1"),
		TTSVoice:   getEnv("TTS_VOICE", "onyx"),

		NewsDataKey: firstEnv("NEWSDATA_API_KEY", "NEWSDATAIO_KEY"),
		NewsAPIKey:  getEnv("NEWSAPI_KEY", ""),
	}

	if cfg.AccessSecret == "" {
		return nil, ErrMissingAccessCode
	}

	cfg.JWTSecret = getEnv("JWT_SECRET", "")
	if cfg.JWTSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, fmt.Errorf("generating session secret: %w", err)
		}
		log.Warn().Msg("JWT_SECRET not set, generated an ephemeral secret; sessions end on restart")
		cfg.JWTSecret = secret
	}

	cfg.TokenExpiration = time.Hour * time.Duration(getInt("JWT_EXPIRATION_HOURS", 24))
	cfg.AlertAfterFailures = getInt("ALERT_AFTER_FAILURES", 3)
	cfg.UnlockRatePerMinute = getInt("UNLOCK_RATE_PER_MINUTE", 10)
	cfg.UnlockBurst = getInt("UNLOCK_BURST", 5)
	cfg.TranscriptCap = getInt("TRANSCRIPT_CAP", 50)
	cfg.ProviderTimeout = time.Duration(getInt("PROVIDER_TIMEOUT_SECONDS", 30)) * time.Second
	cfg.SnapshotTTL = time.Duration(getInt("SNAPSHOT_TTL_HOURS", 0)) * time.Hour
	cfg.TTSMaxChars = getInt("TTS_MAX_CHARS", 1000)

	if keyHex := getEnv("SNAPSHOT_ENCRYPTION_KEY", ""); keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err != nil {
			return nil, fmt.Errorf("decoding SNAPSHOT_ENCRYPTION_KEY from hex: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("SNAPSHOT_ENCRYPTION_KEY must be 32 bytes (64 hex characters), got %d bytes", len(key))
		}
		cfg.SnapshotEncryptionKey = key
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	log.Info().
		Str("port", cfg.HTTPPort).
		Str("snapshot_backend", cfg.SnapshotBackend).
		Str("fact_backend", cfg.FactBackend).
		Int("transcript_cap", cfg.TranscriptCap).
		Dur("token_exp", cfg.TokenExpiration).
		Bool("snapshot_encrypted", cfg.SnapshotEncryptionKey != nil).
		Msg("loaded config")

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.SnapshotBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("SNAPSHOT_BACKEND=postgres requires DATABASE_URL")
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return errors.New("SNAPSHOT_BACKEND=redis requires REDIS_URL")
		}
	case BackendS3:
		if c.S3Bucket == "" {
			return errors.New("SNAPSHOT_BACKEND=s3 requires S3_BUCKET")
		}
	default:
		return fmt.Errorf("unknown SNAPSHOT_BACKEND %q", c.SnapshotBackend)
	}

	switch c.FactBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("FACT_BACKEND=postgres requires DATABASE_URL")
		}
	case BackendNotion:
		if c.NotionToken == "" || c.NotionPageID == "" {
			return errors.New("FACT_BACKEND=notion requires NOTION_TOKEN and NOTION_FACTS_PAGE_ID")
		}
	default:
		return fmt.Errorf("unknown FACT_BACKEND %q", c.FactBackend)
	}
	return nil
}

// Secret reads a provider key from the environment, trimming whitespace.
func (c *Config) Secret(name string) string {
	return strings.TrimSpace(os.Getenv(name))
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return strings.TrimSpace(value)
	}
	return fallback
}

// firstEnv returns the first non-empty variable among keys.
func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func getInt(key string, fallback int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Int("default", fallback).Msg("invalid integer, using default")
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Bool("default", fallback).Msg("invalid boolean, using default")
		return fallback
	}
	return b
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
