package dialogue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/wolfman30/autoparts-voice-agent/internal/audit"
	"github.com/wolfman30/autoparts-voice-agent/internal/leads"
	"github.com/wolfman30/autoparts-voice-agent/internal/nlu"
)

// fakeStore round-trips state through JSON so tests see what a real store
// would return, and enforces the version check.
type fakeStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	puts   int
	getErr error
	putErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string][]byte{}}
}

func (s *fakeStore) Get(_ context.Context, callID string) (*ConversationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	raw, ok := s.data[callID]
	if !ok {
		return NewConversationState(callID), nil
	}
	var st ConversationState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *fakeStore) Put(_ context.Context, st *ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	var stored int64
	if raw, ok := s.data[st.CallID]; ok {
		var prev ConversationState
		_ = json.Unmarshal(raw, &prev)
		stored = prev.Version
	}
	if stored != st.Version {
		return ErrConflict
	}
	st.Version++
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	s.data[st.CallID] = raw
	s.puts++
	return nil
}

func (s *fakeStore) Delete(_ context.Context, callID string) error {
	s.mu.Lock()
	delete(s.data, callID)
	s.mu.Unlock()
	return nil
}

// seed stores st as-is, bypassing the version check.
func (s *fakeStore) seed(st *ConversationState) {
	raw, _ := json.Marshal(st)
	s.mu.Lock()
	s.data[st.CallID] = raw
	s.mu.Unlock()
}

func (s *fakeStore) state(callID string) *ConversationState {
	st, _ := s.Get(context.Background(), callID)
	return st
}

type failingLeadWriter struct {
	calls int
}

func (w *failingLeadWriter) Create(context.Context, *leads.LeadRecord) (*leads.LeadRecord, error) {
	w.calls++
	return nil, errors.New("database unavailable")
}

type recordingAudit struct {
	events []audit.CallEvent
}

func (a *recordingAudit) LogCallEvent(_ context.Context, event audit.CallEvent) error {
	a.events = append(a.events, event)
	return nil
}

func (a *recordingAudit) types() []audit.EventType {
	out := make([]audit.EventType, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e.EventType)
	}
	return out
}

// scriptedExtractor returns fixed outcomes keyed by utterance and falls back
// to local patterns for anything else.
type scriptedExtractor struct {
	outcomes map[string]nlu.Outcome
}

func (e scriptedExtractor) Extract(_ context.Context, utterance string, _ nlu.Context) nlu.Outcome {
	if out, ok := e.outcomes[utterance]; ok {
		return out
	}
	return nlu.Outcome{Kind: nlu.OutcomeFallback, Result: nlu.LocalExtract(utterance)}
}

type stubClassifier struct {
	intent nlu.Intent
	calls  int
}

func (c *stubClassifier) ClassifyYesNo(context.Context, string) nlu.Intent {
	c.calls++
	return c.intent
}
