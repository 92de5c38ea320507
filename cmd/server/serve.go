package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"arc-backend/internal/api"
	"arc-backend/internal/config"
	"arc-backend/internal/crypto"
	"arc-backend/internal/handlers"
	"arc-backend/internal/integrations"
	"arc-backend/internal/logger"
	"arc-backend/internal/metrics"
	"arc-backend/internal/notify"
	"arc-backend/internal/providers"
	"arc-backend/internal/services"
	"arc-backend/internal/store"
	"arc-backend/internal/store/memory"
	"arc-backend/internal/store/notion"
	"arc-backend/internal/store/postgres"
	redisstore "arc-backend/internal/store/redis"
	s3store "arc-backend/internal/store/s3"
	"arc-backend/internal/tts"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (default)",
	RunE:  runServe,
}

// backends groups the storage chosen by configuration.
type backends struct {
	snapshots store.SnapshotStore
	facts     store.FactStore
	alerts    store.AlertStore
	councils  store.CouncilLogStore
	closers   []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().Msg("Starting A.R.C. backend...")

	m := metrics.New(true)

	// 2. Provider chain
	chain, err := providers.LoadChain(cfg.ProvidersFile, cfg.Secret)
	if err != nil {
		return fmt.Errorf("loading provider chain: %w", err)
	}
	dispatcher := providers.NewDispatcher(chain,
		providers.WithFallback(cfg.FallbackReply),
		providers.WithTimeout(cfg.ProviderTimeout),
		providers.WithRecorder(m),
	)
	for _, st := range dispatcher.Status() {
		log.Info().Str("provider", st.Name).Bool("key_present", st.KeyPresent).Strs("models", st.Models).Msg("provider configured")
	}

	// 3. Storage
	setupCtx, setupCancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer setupCancel()
	b, err := openBackends(setupCtx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	// 4. Alerts and integration checks
	registry := integrations.NewRegistry()
	var notifier notify.Notifier = notify.Nop{}
	if cfg.SlackBotToken != "" && cfg.SlackAlertChannel != "" {
		slackNotifier, err := notify.NewSlackNotifier(cfg.SlackBotToken, cfg.SlackAlertChannel)
		if err != nil {
			return fmt.Errorf("creating slack notifier: %w", err)
		}
		notifier = slackNotifier
		registry.Register(integrations.NewSlackIntegration(cfg.SlackBotToken, cfg.SlackAlertChannel))
		log.Info().Str("channel", cfg.SlackAlertChannel).Msg("Slack security alerts enabled")
	}
	if cfg.FactBackend == config.BackendNotion {
		registry.Register(integrations.NewNotionIntegration(cfg.NotionToken, cfg.NotionPageID, nil))
	}
	// Failed checks are logged, not fatal.
	for _, st := range registry.CheckAll(setupCtx) {
		log.Info().Str("integration", st.Name).Bool("ok", st.OK).Str("message", st.Message).Msg("integration check")
	}

	// 5. Services
	var synth tts.Synthesizer
	if cfg.TTSAPIKey != "" {
		synth = tts.NewOpenAI(cfg.TTSAPIKey,
			tts.WithOpenAIBaseURL(cfg.TTSBaseURL),
			tts.WithOpenAIModel(cfg.TTSModel),
			tts.WithVoice(cfg.TTSVoice),
			tts.WithMaxChars(cfg.TTSMaxChars),
		)
	} else {
		log.Warn().Msg("no TTS key configured, speech requests get the offline caption")
	}

	accessService := services.NewAccessService(services.AccessConfig{
		Secret:             cfg.AccessSecret,
		JWTSecret:          cfg.JWTSecret,
		TokenExpiration:    cfg.TokenExpiration,
		AlertAfterFailures: cfg.AlertAfterFailures,
	}, notifier, b.alerts, m)
	toolsService := services.NewToolsService(cfg.NewsDataKey, cfg.NewsAPIKey)
	councilService := services.NewCouncilService(dispatcher, toolsService, b.councils, m)
	chatService := services.NewChatService(services.ChatConfig{
		Persona:       cfg.Persona,
		TranscriptCap: cfg.TranscriptCap,
		SnapshotKey:   cfg.SnapshotKey,
		PerSession:    cfg.SnapshotPerSession,
	}, dispatcher, councilService, b.snapshots, b.facts, m)
	speechService := services.NewSpeechService(synth, m)
	memoryService := services.NewMemoryService(b.facts, b.alerts, b.councils)

	// 6. Setup Router & Inject Dependencies
	router := api.NewRouter(api.RouterDependencies{
		AuthHandler:   handlers.NewAuthHandler(accessService),
		ChatHandler:   handlers.NewChatHandlers(chatService),
		SpeechHandler: handlers.NewSpeechHandler(speechService),
		ToolsHandler:  handlers.NewToolsHandler(toolsService),
		MemoryHandler: handlers.NewMemoryHandler(memoryService),
		StatusHandler: handlers.NewStatusHandler(dispatcher, registry),
		UnlockLimiter: api.NewUnlockLimiter(cfg.UnlockRatePerMinute, cfg.UnlockBurst, accessService.RecordLimited),
		Metrics:       m.Handler(),
		Observer:      m,
		Config:        cfg,
	})

	// 7. Configure and Start HTTP Server
	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Council runs make several sequential provider calls.
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("listening on %s: %w", cfg.HTTPPort, err)
		}
	case <-stopChan:
		log.Info().Msg("Shutdown signal received, initiating graceful shutdown...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	log.Info().Msg("Server shutdown complete.")
	return nil
}

// openBackends connects the snapshot, fact, alert and council log stores selected by cfg.
func openBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	b := &backends{}
	mem := memory.NewStore()

	var pg *postgres.PostgresStore
	if cfg.DatabaseURL != "" {
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		b.closers = append(b.closers, pool.Close)
		pg = postgres.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			b.close()
			return nil, fmt.Errorf("migrating database: %w", err)
		}
		log.Info().Msg("Database connection pool established and migrated.")
	}

	var blobs store.BlobStore
	switch cfg.SnapshotBackend {
	case config.BackendPostgres:
		blobs = pg
	case config.BackendRedis:
		client, err := redisstore.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			b.close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		b.closers = append(b.closers, func() { _ = client.Close() })
		blobs = redisstore.NewRedisStore(client, redisstore.WithTTL(cfg.SnapshotTTL))
	case config.BackendS3:
		client, err := s3store.NewClient(ctx, cfg.S3Region, cfg.S3Endpoint)
		if err != nil {
			b.close()
			return nil, fmt.Errorf("creating s3 client: %w", err)
		}
		blobs = s3store.NewS3Store(client, cfg.S3Bucket, "")
	default:
		blobs = mem
	}

	var sealer *crypto.Sealer
	if cfg.SnapshotEncryptionKey != nil {
		s, err := crypto.NewSealer(cfg.SnapshotEncryptionKey)
		if err != nil {
			b.close()
			return nil, fmt.Errorf("creating snapshot sealer: %w", err)
		}
		sealer = s
	}
	b.snapshots = store.NewSnapshots(blobs, sealer)

	switch cfg.FactBackend {
	case config.BackendPostgres:
		b.facts = pg
	case config.BackendNotion:
		b.facts = notion.NewFactStore(cfg.NotionToken, cfg.NotionPageID, nil)
	default:
		b.facts = mem
	}

	if pg != nil {
		b.alerts = pg
		b.councils = pg
	} else {
		b.alerts = mem
		b.councils = mem
	}

	log.Info().
		Str("snapshots", cfg.SnapshotBackend).
		Str("facts", cfg.FactBackend).
		Bool("encrypted", sealer != nil).
		Msg("storage ready")
	return b, nil
}
