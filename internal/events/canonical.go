// Package events publishes versioned domain events about captured leads.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Source stamps every envelope leaving this service.
const Source = "autoparts-voice-agent"

// LeadEvent is a versioned event about one saved lead, such as
// LeadCreatedV1. LeadKey returns the lead id the event belongs to.
type LeadEvent interface {
	EventType() string
	LeadKey() string
}

// Envelope is the wire form of a lead event on the lead-events queue.
// Aggregate is "lead:<lead id>" and CorrelationID carries the telephony call
// id, so consumers can line the event up with the call's audit trail.
type Envelope struct {
	EventID         uuid.UUID       `json:"event_id"`
	EventType       string          `json:"event_type"`
	Source          string          `json:"source"`
	Aggregate       string          `json:"aggregate"`
	TimestampMicros int64           `json:"timestamp"`
	CorrelationID   string          `json:"correlation_id,omitempty"`
	Payload         json.RawMessage `json:"payload"`
}

type EnvelopeOption func(*Envelope)

// WithEventID pins the event id. The zero UUID is ignored.
func WithEventID(id uuid.UUID) EnvelopeOption {
	return func(e *Envelope) {
		if id != uuid.Nil {
			e.EventID = id
		}
	}
}

// WithTimestamp stamps the envelope with ts, normally the lead's creation
// time. A zero ts keeps the publish time.
func WithTimestamp(ts time.Time) EnvelopeOption {
	return func(e *Envelope) {
		if !ts.IsZero() {
			e.TimestampMicros = ts.UTC().UnixMicro()
		}
	}
}

var (
	errMissingLead = errors.New("events: lead id is required")
	errNilEvent    = errors.New("events: lead event required")
	nowFunc        = time.Now
)

func leadAggregate(leadID string) string {
	return "lead:" + leadID
}

// NewEnvelope wraps a lead event for the queue. callID becomes the
// correlation id.
func NewEnvelope(callID string, evt LeadEvent, opts ...EnvelopeOption) (Envelope, error) {
	if evt == nil {
		return Envelope{}, errNilEvent
	}
	leadID := strings.TrimSpace(evt.LeadKey())
	if leadID == "" {
		return Envelope{}, errMissingLead
	}
	eventType := strings.TrimSpace(evt.EventType())
	if eventType == "" {
		return Envelope{}, fmt.Errorf("events: event type missing for lead %s", leadID)
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return Envelope{}, fmt.Errorf("events: marshal %s: %w", eventType, err)
	}
	env := Envelope{
		EventID:         uuid.New(),
		EventType:       eventType,
		Source:          Source,
		Aggregate:       leadAggregate(leadID),
		TimestampMicros: nowFunc().UTC().UnixMicro(),
		CorrelationID:   strings.TrimSpace(callID),
		Payload:         payload,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&env)
		}
	}
	return env, nil
}
