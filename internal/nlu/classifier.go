package nlu

import (
	"context"
	"strings"
	"time"

	"github.com/wolfman30/autoparts-voice-agent/pkg/logging"
)

// YesNoClassifier resolves confirmation answers, trying keywords first and
// the remote model only when keywords are inconclusive.
type YesNoClassifier struct {
	client  LLMClient
	model   string
	timeout time.Duration
	logger  *logging.Logger
}

type ClassifierOption func(*YesNoClassifier)

// WithClassifyTimeout bounds each remote classification.
func WithClassifyTimeout(d time.Duration) ClassifierOption {
	return func(c *YesNoClassifier) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func NewYesNoClassifier(client LLMClient, model string, logger *logging.Logger, opts ...ClassifierOption) *YesNoClassifier {
	if logger == nil {
		logger = logging.Default()
	}
	c := &YesNoClassifier{client: client, model: model, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ClassifyYesNo returns IntentConfirm, IntentDeny or IntentUnclear.
func (c *YesNoClassifier) ClassifyYesNo(ctx context.Context, utterance string) Intent {
	if strings.TrimSpace(utterance) == "" {
		return IntentUnclear
	}
	if intent, ok := LocalYesNo(utterance); ok {
		return intent
	}
	if c == nil || c.client == nil {
		return IntentUnclear
	}

	ctx, span := tracer.Start(ctx, "nlu.classify_yes_no")
	defer span.End()
	ctx, cancel := withOptionalTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Complete(ctx, LLMRequest{
		Model:       c.model,
		System:      []string{yesNoSystemPrompt},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: utterance}},
		MaxTokens:   20,
		Temperature: 0,
		JSONOutput:  true,
	})
	if err != nil {
		span.RecordError(err)
		c.logger.Warn("yes/no classification failed", "error", err)
		return IntentUnclear
	}

	var decoded struct {
		Answer string `json:"answer"`
	}
	if err := decodeJSONObject(resp.Text, &decoded); err != nil {
		c.logger.Warn("yes/no classification returned unusable output", "error", err)
		return IntentUnclear
	}
	switch strings.ToLower(strings.TrimSpace(decoded.Answer)) {
	case "yes":
		return IntentConfirm
	case "no":
		return IntentDeny
	default:
		return IntentUnclear
	}
}
