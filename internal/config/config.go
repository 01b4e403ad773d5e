package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	LogFormat     string
	DatabaseURL   string

	// Session store
	SessionStore  string
	SessionTTL    time.Duration
	SessionTable  string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// NLU providers
	NLUProvider         string
	NLUFallbackProvider string
	NLUModel            string
	NLUFallbackModel    string
	GroqAPIKey          string
	GroqBaseURL         string
	OpenAIAPIKey        string
	GeminiAPIKey        string
	BedrockModelID      string
	NLUTimeout          time.Duration // zero leaves remote calls unbounded

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Telephony
	TwilioAuthToken     string
	TwilioVoice         string
	TransferNumber      string
	CallerCountryPrefix string
	TTSServerURL        string
	AudioBucket         string
	AudioURLTTL         time.Duration

	// Lead fan-out
	LeadEventsQueueURL string
	SalesNotifyEmail   string
	EmailProvider      string
	SendGridAPIKey     string
	EmailFrom          string
	EmailFromName      string

	AdminJWTSecret     string
	AdminRatePerSecond float64
	AdminRateBurst     int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", ""),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		SessionStore:  strings.ToLower(strings.TrimSpace(getEnv("SESSION_STORE", "memory"))),
		SessionTTL:    getEnvAsDuration("SESSION_TTL", 2*time.Hour),
		SessionTable:  getEnv("SESSION_TABLE", "call_sessions"),
		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		NLUProvider:         strings.ToLower(strings.TrimSpace(getEnv("NLU_PROVIDER", "groq"))),
		NLUFallbackProvider: strings.ToLower(strings.TrimSpace(getEnv("NLU_FALLBACK_PROVIDER", ""))),
		NLUModel:            getEnv("NLU_MODEL", ""),
		NLUFallbackModel:    getEnv("NLU_FALLBACK_MODEL", ""),
		GroqAPIKey:          getEnv("GROQ_API_KEY", ""),
		GroqBaseURL:         getEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", ""),
		NLUTimeout:          getEnvAsDuration("NLU_TIMEOUT", 0),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		TwilioAuthToken:     getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioVoice:         getEnv("TWILIO_VOICE", "Polly.Joanna"),
		TransferNumber:      getEnv("TRANSFER_NUMBER", ""),
		CallerCountryPrefix: getEnv("CALLER_COUNTRY_PREFIX", "+91"),
		TTSServerURL:        getEnv("TTS_SERVER_URL", ""),
		AudioBucket:         getEnv("AUDIO_BUCKET", ""),
		AudioURLTTL:         getEnvAsDuration("AUDIO_URL_TTL", 15*time.Minute),

		LeadEventsQueueURL: getEnv("LEAD_EVENTS_QUEUE_URL", ""),
		SalesNotifyEmail:   getEnv("SALES_NOTIFY_EMAIL", ""),
		EmailProvider:      strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "stub"))),
		SendGridAPIKey:     getEnv("SENDGRID_API_KEY", ""),
		EmailFrom:          getEnv("EMAIL_FROM", ""),
		EmailFromName:      getEnv("EMAIL_FROM_NAME", "Firstused Autoparts"),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		AdminRatePerSecond: getEnvAsFloat("ADMIN_RATE_PER_SECOND", 5),
		AdminRateBurst:     getEnvAsInt("ADMIN_RATE_BURST", 20),
	}
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
