package store

import (
	"log/slog"

	"github.com/deepai/deepai-client/pkg/sessionid"
	"github.com/deepai/deepai-client/pkg/storage"
)

// DefaultState is the state of a client that has never saved anything:
// one empty session titled DefaultTitle, active, in MyFavorites mode.
func DefaultState(key Key) State {
	return State{
		Active:  key,
		History: []Session{{Key: key, Title: DefaultTitle}},
		Chat:    []Conversation{{Key: key, Messages: []Message{}}},
		AiMode:  ModeMyFavorites,
	}
}

// loadState overlays the stored state on the default one.
func loadState(kv storage.Store, key Key) State {
	st := DefaultState(key)
	if _, err := kv.Get(storage.KeyChat, &st); err != nil {
		slog.Error("failed to load chat state, using defaults", "error", err)
		return DefaultState(key)
	}
	if st.AiMode == "" {
		st.AiMode = ModeMyFavorites
	}
	return st
}

func newKey() Key {
	return Key(sessionid.New())
}
