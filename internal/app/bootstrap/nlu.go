package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/autoparts-voice-agent/internal/config"
	"github.com/wolfman30/autoparts-voice-agent/internal/nlu"
	"github.com/wolfman30/autoparts-voice-agent/pkg/logging"
)

const (
	providerGroq    = "groq"
	providerOpenAI  = "openai"
	providerBedrock = "bedrock"
	providerGemini  = "gemini"
	providerLocal   = "local"
)

// LLM is the resolved completion client and the model requests should name.
type LLM struct {
	Client nlu.LLMClient
	Model  string
	close  []func() error
}

// Close releases provider clients that hold connections.
func (l *LLM) Close() {
	if l == nil {
		return
	}
	for _, fn := range l.close {
		_ = fn()
	}
}

// BuildLLM resolves NLU_PROVIDER and the optional NLU_FALLBACK_PROVIDER. A
// nil Client means the dialogue runs on local patterns only.
func BuildLLM(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (*LLM, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	out := &LLM{}
	primary, model, err := buildProvider(ctx, cfg.NLUProvider, cfg.NLUModel, cfg, awsCfg, out)
	if err != nil {
		return nil, err
	}
	if primary == nil {
		logger.Warn("no nlu provider configured; using local extraction", "provider", cfg.NLUProvider)
		return out, nil
	}
	out.Client, out.Model = primary, model

	if name := cfg.NLUFallbackProvider; name != "" && name != cfg.NLUProvider {
		fallback, fallbackModel, err := buildProvider(ctx, name, cfg.NLUFallbackModel, cfg, awsCfg, out)
		if err != nil {
			logger.Warn("nlu fallback provider unavailable", "provider", name, "error", err)
		} else if fallback != nil {
			out.Client = nlu.NewFallbackLLMClient(primary, fallback, fallbackModel, logger.Logger)
			logger.Info("nlu fallback enabled", "provider", name, "model", fallbackModel)
		}
	}
	logger.Info("nlu provider configured", "provider", cfg.NLUProvider, "model", out.Model)
	return out, nil
}

func buildProvider(ctx context.Context, name, model string, cfg *appconfig.Config, awsCfg aws.Config, out *LLM) (nlu.LLMClient, string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case providerGroq:
		if cfg.GroqAPIKey == "" {
			return nil, "", nil
		}
		if model == "" {
			model = "llama-3.1-8b-instant"
		}
		client, err := nlu.NewOpenAILLMClient(cfg.GroqAPIKey, cfg.GroqBaseURL, model)
		if err != nil {
			return nil, "", fmt.Errorf("bootstrap: groq client: %w", err)
		}
		return client, model, nil
	case providerOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, "", nil
		}
		if model == "" {
			model = "gpt-4o-mini"
		}
		client, err := nlu.NewOpenAILLMClient(cfg.OpenAIAPIKey, "", model)
		if err != nil {
			return nil, "", fmt.Errorf("bootstrap: openai client: %w", err)
		}
		return client, model, nil
	case providerBedrock:
		if model == "" {
			model = cfg.BedrockModelID
		}
		if model == "" {
			return nil, "", nil
		}
		return nlu.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg)), model, nil
	case providerGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, "", nil
		}
		client, err := nlu.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, model)
		if err != nil {
			return nil, "", fmt.Errorf("bootstrap: gemini client: %w", err)
		}
		out.close = append(out.close, client.Close)
		return client, model, nil
	case providerLocal, "":
		return nil, "", nil
	default:
		return nil, "", fmt.Errorf("bootstrap: unknown nlu provider %q", name)
	}
}
