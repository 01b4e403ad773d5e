package dialogue

import (
	"time"

	"github.com/wolfman30/autoparts-voice-agent/internal/nlu"
	"github.com/wolfman30/autoparts-voice-agent/internal/slots"
)

// maxHistory bounds the transcript carried in state.
const maxHistory = 40

// ConversationState is everything the machine needs between turns. Version
// is owned by the session store and increments on every successful Put.
type ConversationState struct {
	CallID              string         `json:"callId"`
	Step                Step           `json:"step"`
	Slots               slots.Values   `json:"slots"`
	RetryCounts         map[string]int `json:"retryCounts"`
	History             []nlu.Turn     `json:"history"`
	LeadSaved           bool           `json:"leadSaved"`
	LeadID              string         `json:"leadId,omitempty"`
	CallerPhone         string         `json:"callerPhone,omitempty"`
	CallerPhoneDeclined bool           `json:"callerPhoneDeclined,omitempty"`
	TransferFrom        Step           `json:"transferFrom,omitempty"`
	Turns               int            `json:"turns"`
	Version             int64          `json:"version"`
	StartedAt           time.Time      `json:"startedAt"`
	UpdatedAt           time.Time      `json:"updatedAt"`
}

// NewConversationState returns the default state for a call that has no
// stored session.
func NewConversationState(callID string) *ConversationState {
	return &ConversationState{
		CallID:      callID,
		Step:        StepGreeting,
		Slots:       slots.Values{},
		RetryCounts: map[string]int{},
	}
}

// normalize repairs fields a decoder may leave nil.
func (s *ConversationState) normalize() {
	if s.Slots == nil {
		s.Slots = slots.Values{}
	}
	if s.RetryCounts == nil {
		s.RetryCounts = map[string]int{}
	}
	if !s.Step.Valid() {
		s.Step = StepGreeting
	}
}

func (s *ConversationState) record(speaker, text string) {
	if text == "" {
		return
	}
	s.History = append(s.History, nlu.Turn{Speaker: speaker, Text: text})
	if len(s.History) > maxHistory {
		s.History = s.History[len(s.History)-maxHistory:]
	}
}

func (s *ConversationState) recent(n int) []nlu.Turn {
	if len(s.History) <= n {
		return s.History
	}
	return s.History[len(s.History)-n:]
}

func (s *ConversationState) retry(key slots.Key) int {
	s.RetryCounts[string(key)]++
	return s.RetryCounts[string(key)]
}

func (s *ConversationState) resetRetry(key slots.Key) {
	delete(s.RetryCounts, string(key))
}
