package router

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/wolfman30/autoparts-voice-agent/internal/audit"
	httpmiddleware "github.com/wolfman30/autoparts-voice-agent/internal/http/middleware"
	"github.com/wolfman30/autoparts-voice-agent/internal/leads"
	"github.com/wolfman30/autoparts-voice-agent/internal/voice"
	"github.com/wolfman30/autoparts-voice-agent/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger          *logging.Logger
	VoiceHandler    *voice.Handler
	LeadsHandler    *leads.Handler
	AuditHandler    *audit.Handler
	StatsHandler    http.Handler
	MetricsHandler  http.Handler
	AdminAuthSecret string

	// Per-IP limits for the admin API. Zero disables limiting.
	AdminRatePerSecond float64
	AdminRateBurst     int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)

	// Public endpoints (webhooks, health checks)
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.VoiceHandler != nil {
			public.Route("/voice", func(r chi.Router) {
				// Telephony webhooks must answer well inside the provider's timeout.
				r.Use(middleware.Timeout(10 * time.Second))
				r.Post("/incoming", cfg.VoiceHandler.Incoming)
				r.Post("/speech", cfg.VoiceHandler.Speech)
				r.Post("/status", cfg.VoiceHandler.Status)
			})
		}
	})

	if cfg.AdminAuthSecret != "" {
		r.Route("/admin", func(admin chi.Router) {
			if cfg.AdminRatePerSecond > 0 {
				burst := cfg.AdminRateBurst
				if burst <= 0 {
					burst = 1
				}
				admin.Use(httpmiddleware.RateLimit(cfg.AdminRatePerSecond, burst))
			}
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Use(middleware.Compress(5))
			if cfg.LeadsHandler != nil {
				admin.Get("/leads", cfg.LeadsHandler.ListLeads)
				admin.Get("/leads/{leadID}", cfg.LeadsHandler.GetLead)
			}
			if cfg.AuditHandler != nil {
				admin.Get("/calls/{callID}/audit", cfg.AuditHandler.ListCallEvents)
			}
			if cfg.StatsHandler != nil {
				admin.Handle("/stats", cfg.StatsHandler)
			}
		})
	}

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
