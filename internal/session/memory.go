package session

import (
	"context"
	"sync"
	"time"

	"github.com/wolfman30/autoparts-voice-agent/internal/dialogue"
)

type memoryEntry struct {
	data    []byte
	version int64
	expires time.Time
}

// MemoryStore keeps sessions in process memory. It is suitable for a single
// instance and for tests.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]memoryEntry),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, callID string) (*dialogue.ConversationState, error) {
	s.mu.Lock()
	entry, ok := s.sessions[callID]
	if ok && s.ttl > 0 && s.now().After(entry.expires) {
		delete(s.sessions, callID)
		ok = false
	}
	s.mu.Unlock()

	if !ok {
		return dialogue.NewConversationState(callID), nil
	}
	return decodeState(entry.data, entry.version)
}

func (s *MemoryStore) Put(ctx context.Context, state *dialogue.ConversationState) error {
	data, err := encodeState(state)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.sessions[state.CallID]
	if ok && s.ttl > 0 && s.now().After(current.expires) {
		ok = false
	}
	var stored int64
	if ok {
		stored = current.version
	}
	if stored != state.Version {
		return ErrConflict
	}

	next := state.Version + 1
	s.sessions[state.CallID] = memoryEntry{data: data, version: next, expires: s.now().Add(s.ttl)}
	state.Version = next
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, callID string) error {
	s.mu.Lock()
	delete(s.sessions, callID)
	s.mu.Unlock()
	return nil
}
