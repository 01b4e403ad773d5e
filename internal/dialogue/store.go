package dialogue

import (
	"context"
	"errors"
)

// ErrConflict is returned by Store.Put when the stored version moved on
// since the state was read.
var ErrConflict = errors.New("dialogue: session version conflict")

// Store persists ConversationState per call.
type Store interface {
	// Get returns the stored state or a fresh default when none exists.
	Get(ctx context.Context, callID string) (*ConversationState, error)
	// Put writes state if state.Version still matches the stored version and
	// then advances state.Version.
	Put(ctx context.Context, state *ConversationState) error
	Delete(ctx context.Context, callID string) error
}
