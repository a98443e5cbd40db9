package store

import "context"

// Navigator moves the front end between views. The terminal client and the
// bridge each provide one; the store calls it after changing the active session.
type Navigator interface {
	// Navigate shows the chat view of the session. Pending means no session.
	Navigate(key Key)

	// Home shows the landing view of the mode.
	Home(mode AiMode)
}

// HistoryAPI is the backend that persists session metadata.
type HistoryAPI interface {
	// CreateSessionMeta registers a new session.
	CreateSessionMeta(ctx context.Context, s Session) (Session, error)

	// UpdateSessionMeta changes fields of the session with the given backend id
	// and returns the stored result.
	UpdateSessionMeta(ctx context.Context, id string, fields map[string]any) (Session, error)

	// DeleteSessionMeta removes a session by backend id.
	DeleteSessionMeta(ctx context.Context, id string) error

	// DeleteSessionMetaByTitle removes a session by title.
	DeleteSessionMetaByTitle(ctx context.Context, title string) error

	// ListSessionMeta returns every session stored under any of the modes.
	ListSessionMeta(ctx context.Context, modes []AiMode) ([]Session, error)
}

// NopNavigator ignores navigation.
type NopNavigator struct{}

func (NopNavigator) Navigate(Key) {}
func (NopNavigator) Home(AiMode)  {}
