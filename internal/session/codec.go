// Package session stores per-call dialogue state with optimistic
// concurrency: every Put must present the version it read.
package session

import (
	"encoding/json"
	"fmt"

	"github.com/wolfman30/autoparts-voice-agent/internal/dialogue"
)

// ErrConflict is returned when another writer updated the session first.
var ErrConflict = dialogue.ErrConflict

func encodeState(state *dialogue.ConversationState) ([]byte, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("session: marshal state: %w", err)
	}
	return data, nil
}

func decodeState(data []byte, version int64) (*dialogue.ConversationState, error) {
	var state dialogue.ConversationState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("session: unmarshal state: %w", err)
	}
	state.Version = version
	return &state, nil
}
