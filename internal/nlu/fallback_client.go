package nlu

import (
	"context"
	"log/slog"
)

// FallbackLLMClient tries a primary provider and retries once on a secondary.
type FallbackLLMClient struct {
	primary       LLMClient
	fallback      LLMClient
	fallbackModel string
	logger        *slog.Logger
}

// NewFallbackLLMClient wraps primary. A nil fallback disables the retry.
// When fallbackModel is set it replaces the request model on the retry.
func NewFallbackLLMClient(primary, fallback LLMClient, fallbackModel string, logger *slog.Logger) *FallbackLLMClient {
	if primary == nil {
		panic("nlu: primary llm client required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackLLMClient{
		primary:       primary,
		fallback:      fallback,
		fallbackModel: fallbackModel,
		logger:        logger,
	}
}

func (c *FallbackLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	resp, err := c.primary.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}

	c.logger.Warn("primary nlu provider failed, attempting fallback",
		"error", err.Error(),
		"fallback_available", c.fallback != nil,
	)
	if c.fallback == nil {
		return LLMResponse{}, err
	}

	if c.fallbackModel != "" {
		req.Model = c.fallbackModel
	}
	fallbackResp, fallbackErr := c.fallback.Complete(ctx, req)
	if fallbackErr != nil {
		c.logger.Error("fallback nlu provider also failed",
			"primary_error", err.Error(),
			"fallback_error", fallbackErr.Error(),
		)
		return LLMResponse{}, fallbackErr
	}
	return fallbackResp, nil
}
