package nlu

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/autoparts-voice-agent/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("autoparts.internal.nlu")

const extractMaxTokens = 200

// Extractor interprets utterances with an optional remote model. It never
// returns an error: any remote failure degrades to local patterns.
type Extractor struct {
	client  LLMClient
	model   string
	timeout time.Duration
	logger  *logging.Logger
}

type ExtractorOption func(*Extractor)

// WithExtractTimeout bounds each remote call. Without it a stalled model
// stalls only the turn that issued the call.
func WithExtractTimeout(d time.Duration) ExtractorOption {
	return func(e *Extractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewExtractor builds an extractor. A nil client makes it local-only.
func NewExtractor(client LLMClient, model string, logger *logging.Logger, opts ...ExtractorOption) *Extractor {
	if logger == nil {
		logger = logging.Default()
	}
	e := &Extractor{client: client, model: model, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract interprets utterance for the slots in c.Targets.
func (e *Extractor) Extract(ctx context.Context, utterance string, c Context) Outcome {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return Outcome{Kind: OutcomeFailed, Result: LocalExtract(""), Err: ErrEmptyUtterance}
	}
	if e.client == nil {
		return Outcome{Kind: OutcomeFallback, Result: LocalExtract(utterance), Err: ErrNoClient}
	}

	ctx, span := tracer.Start(ctx, "nlu.extract")
	defer span.End()
	span.SetAttributes(attribute.String("autoparts.step", c.Step))

	result, err := e.remote(ctx, utterance, c)
	if err != nil {
		span.RecordError(err)
		e.logger.Warn("nlu extraction fell back to local patterns", "step", c.Step, "error", err)
		return Outcome{Kind: OutcomeFallback, Result: LocalExtract(utterance), Err: err}
	}
	span.SetAttributes(
		attribute.String("autoparts.nlu.intent", string(result.Intent)),
		attribute.Float64("autoparts.nlu.confidence", result.Confidence),
	)
	return Outcome{Kind: OutcomeParsed, Result: MergeLocal(result, utterance)}
}

func (e *Extractor) remote(ctx context.Context, utterance string, c Context) (ExtractionResult, error) {
	ctx, cancel := withOptionalTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.Complete(ctx, LLMRequest{
		Model:       e.model,
		System:      []string{extractionSystemPrompt},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: buildExtractionPrompt(utterance, c)}},
		MaxTokens:   extractMaxTokens,
		Temperature: 0,
		JSONOutput:  true,
	})
	if err != nil {
		return ExtractionResult{}, fmt.Errorf("nlu: extract: %w", err)
	}
	return ParseExtraction(resp.Text)
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
