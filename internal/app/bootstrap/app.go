package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/autoparts-voice-agent/internal/api/router"
	"github.com/wolfman30/autoparts-voice-agent/internal/audit"
	appconfig "github.com/wolfman30/autoparts-voice-agent/internal/config"
	"github.com/wolfman30/autoparts-voice-agent/internal/dialogue"
	"github.com/wolfman30/autoparts-voice-agent/internal/leads"
	"github.com/wolfman30/autoparts-voice-agent/internal/nlu"
	"github.com/wolfman30/autoparts-voice-agent/internal/observability/metrics"
	"github.com/wolfman30/autoparts-voice-agent/internal/voice"
	"github.com/wolfman30/autoparts-voice-agent/pkg/logging"
)

// App is the wired voice agent.
type App struct {
	Handler http.Handler
	Machine *dialogue.Machine
	closers []func()
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	if a == nil {
		return
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// Build wires storage, NLU, the dialogue machine and the HTTP surface.
func Build(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	app := &App{}
	fail := func(err error) (*App, error) {
		app.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	dialogueMetrics := metrics.NewDialogueMetrics(registry)

	pool, err := BuildPostgresPool(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}
	var repo leads.Repository
	var auditService *audit.Service
	if pool != nil {
		app.closers = append(app.closers, pool.Close)
		repo = leads.NewPostgresRepository(pool)
		sqlDB := stdlib.OpenDBFromPool(pool)
		app.closers = append(app.closers, func() { _ = sqlDB.Close() })
		auditService = audit.NewService(sqlDB)
	} else {
		logger.Warn("DATABASE_URL not set; leads are kept in memory")
		repo = leads.NewInMemoryRepository()
	}
	repo = leads.NewPublishingRepository(repo, logger, BuildLeadPublishers(cfg, awsCfg, logger)...)

	redisClient := BuildRedisClient(ctx, cfg, logger, cfg.SessionStore == "redis")
	if redisClient != nil {
		app.closers = append(app.closers, func() { _ = redisClient.Close() })
	}
	store, err := BuildSessionStore(cfg, redisClient, awsCfg, logger)
	if err != nil {
		return fail(err)
	}

	llm, err := BuildLLM(ctx, cfg, awsCfg, logger)
	if err != nil {
		return fail(err)
	}
	app.closers = append(app.closers, llm.Close)

	opts := []dialogue.Option{dialogue.WithMetrics(dialogueMetrics)}
	if llm.Client != nil {
		opts = append(opts, dialogue.WithClassifier(nlu.NewYesNoClassifier(llm.Client, llm.Model, logger, nlu.WithClassifyTimeout(cfg.NLUTimeout))))
	}
	if auditService != nil {
		opts = append(opts, dialogue.WithAudit(auditService))
	}
	app.Machine = dialogue.NewMachine(store, nlu.NewExtractor(llm.Client, llm.Model, logger, nlu.WithExtractTimeout(cfg.NLUTimeout)), repo, logger, opts...)

	var promptAudio *voice.PromptAudio
	if cfg.TTSServerURL != "" && cfg.AudioBucket != "" {
		promptAudio = voice.NewPromptAudio(
			voice.NewHTTPSynthesizer(cfg.TTSServerURL, &http.Client{Timeout: 5 * time.Second}),
			voice.NewS3AudioStore(s3.NewFromConfig(awsCfg), cfg.AudioBucket, cfg.AudioURLTTL),
			logger,
		)
		logger.Info("prompt audio enabled", "tts", cfg.TTSServerURL, "bucket", cfg.AudioBucket)
	}
	if cfg.TwilioAuthToken == "" && cfg.IsProduction() {
		logger.Warn("TWILIO_AUTH_TOKEN not set; voice webhooks are not signature checked")
	}

	voiceHandler := voice.NewHandler(voice.Config{
		Dialogue:      app.Machine,
		Sessions:      store,
		Renderer:      voice.NewRenderer(cfg.TwilioVoice, cfg.PublicBaseURL+"/voice/speech", cfg.TransferNumber),
		Audio:         promptAudio,
		AuthToken:     cfg.TwilioAuthToken,
		PublicBaseURL: cfg.PublicBaseURL,
		CountryPrefix: cfg.CallerCountryPrefix,
		Logger:        logger,
	})

	app.Handler = router.New(&router.Config{
		Logger:             logger,
		VoiceHandler:       voiceHandler,
		LeadsHandler:       leads.NewHandler(repo, logger),
		AuditHandler:       audit.NewHandler(auditService, logger),
		StatsHandler:       metrics.StatsHandler(registry),
		MetricsHandler:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		AdminRatePerSecond: cfg.AdminRatePerSecond,
		AdminRateBurst:     cfg.AdminRateBurst,
	})
	return app, nil
}
