// Package nlu turns a transcribed caller utterance into an intent and slot
// entities, using an LLM when one is configured and local patterns otherwise.
package nlu

import (
	"errors"

	"github.com/wolfman30/autoparts-voice-agent/internal/slots"
)

// Intent classifies what the caller is trying to do in one utterance.
type Intent string

const (
	IntentConfirm     Intent = "confirm"
	IntentDeny        Intent = "deny"
	IntentAskPrice    Intent = "ask_price"
	IntentAskWarranty Intent = "ask_warranty"
	IntentProvideSlot Intent = "provide_slot"
	IntentUnclear     Intent = "unclear"
)

// Interruption reports whether the intent is an off-script question that is
// answered without advancing the conversation.
func (i Intent) Interruption() bool {
	return i == IntentAskPrice || i == IntentAskWarranty
}

func parseIntent(raw string) Intent {
	switch Intent(raw) {
	case IntentConfirm, IntentDeny, IntentAskPrice, IntentAskWarranty, IntentProvideSlot, IntentUnclear:
		return Intent(raw)
	case "other":
		return IntentProvideSlot
	default:
		return IntentUnclear
	}
}

// TentativeThreshold is the confidence below which a result is treated as a guess.
const TentativeThreshold = 0.7

// ExtractionResult is the interpreted form of one utterance. Entities holds
// only values that passed validation.
type ExtractionResult struct {
	Intent     Intent       `json:"intent"`
	Entities   slots.Values `json:"entities"`
	Confidence float64      `json:"confidence"`
}

// Tentative reports whether the result is below the confidence threshold.
func (r ExtractionResult) Tentative() bool {
	return r.Confidence < TentativeThreshold
}

// OutcomeKind tags how an ExtractionResult was produced.
type OutcomeKind string

const (
	// OutcomeParsed means the remote model answered with usable JSON.
	OutcomeParsed OutcomeKind = "parsed"
	// OutcomeFallback means local patterns produced the result.
	OutcomeFallback OutcomeKind = "fallback"
	// OutcomeFailed means there was nothing to interpret.
	OutcomeFailed OutcomeKind = "failed"
)

// Outcome is the extractor's answer. Err carries the reason for a fallback
// and is informational only.
type Outcome struct {
	Kind   OutcomeKind
	Result ExtractionResult
	Err    error
}

// Turn is a single exchange kept for extraction context.
type Turn struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

const (
	SpeakerCaller = "caller"
	SpeakerAgent  = "agent"
)

// Context is what the extractor knows about the conversation.
type Context struct {
	Step    string
	Targets []slots.Key
	Recent  []Turn
}

var (
	ErrNoClient       = errors.New("nlu: no llm client configured")
	ErrNoJSON         = errors.New("nlu: response contained no json object")
	ErrEmptyUtterance = errors.New("nlu: empty utterance")
)
