// Package store holds the chat session state of the client: the ordered
// session list ("history"), one message list per session, the active session
// pointer and the AI mode. Every mutation is persisted to a storage.Store and
// announced to subscribers.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/deepai/deepai-client/pkg/storage"
)

// Store is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	state State

	kv     storage.Store
	api    HistoryAPI
	nav    Navigator
	newKey func() Key

	subMu sync.RWMutex
	subs  []chan Key
}

type Option func(*Store)

// WithHistoryAPI sets the backend for session metadata. Without one the
// store is local only and remote operations skip the backend call.
func WithHistoryAPI(api HistoryAPI) Option {
	return func(s *Store) { s.api = api }
}

func WithNavigator(nav Navigator) Option {
	return func(s *Store) { s.nav = nav }
}

// WithKeyFunc replaces the session key generator.
func WithKeyFunc(fn func() Key) Option {
	return func(s *Store) { s.newKey = fn }
}

// New loads the persisted state from kv, falling back to DefaultState.
// The prompt buffer and the selected model always start empty.
func New(kv storage.Store, opts ...Option) *Store {
	s := &Store{
		kv:     kv,
		nav:    NopNavigator{},
		newKey: newKey,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.state = loadState(kv, s.newKey())
	s.state.Prompt = ""
	s.state.SelectedModel = ""
	return s
}

// Subscribe returns a channel that emits the key of the session affected by
// each change. Slow subscribers miss events rather than block the store.
func (s *Store) Subscribe() <-chan Key {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	ch := make(chan Key, 64)
	s.subs = append(s.subs, ch)
	return ch
}

// Unsubscribe stops delivery to ch and closes it.
func (s *Store) Unsubscribe(ch <-chan Key) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for i, sub := range s.subs {
		if sub == ch {
			s.subs = slices.Delete(s.subs, i, i+1)
			close(sub)
			return
		}
	}
}

func (s *Store) publish(key Key) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	for _, sub := range s.subs {
		// Non-blocking send
		select {
		case sub <- key:
		default:
		}
	}
}

// recordLocked writes the full state to storage. Failures are logged only.
func (s *Store) recordLocked() {
	if err := s.kv.Set(storage.KeyChat, s.state); err != nil {
		slog.Error("failed to persist chat state", "error", err)
	}
}

// State returns a deep copy of the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// ---- mode, prompt buffer, selected model ----

func (s *Store) Mode() AiMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.AiMode
}

func (s *Store) SetMode(mode AiMode) {
	s.mu.Lock()
	s.state.AiMode = mode
	s.recordLocked()
	active := s.state.Active
	s.mu.Unlock()
	s.publish(active)
}

// Home navigates to the landing view of the current mode.
func (s *Store) Home() {
	s.nav.Home(s.Mode())
}

func (s *Store) Prompt() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Prompt
}

func (s *Store) SetPrompt(prompt string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Prompt = prompt
}

func (s *Store) SelectedModel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.SelectedModel
}

func (s *Store) SetSelectedModel(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.SelectedModel = model
}

// ---- history ----

func (s *Store) Active() Key {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Active
}

// SetActive points the store at key and navigates to it. The key is not validated.
func (s *Store) SetActive(key Key) {
	s.mu.Lock()
	s.state.Active = key
	s.recordLocked()
	s.mu.Unlock()

	if key != Pending {
		s.nav.Navigate(key)
	}
	s.publish(key)
}

// ActiveSession returns the history entry of the active session.
func (s *Store) ActiveSession() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.historyIndexLocked(s.state.Active)
	if i == -1 {
		return Session{}, false
	}
	return s.state.History[i], true
}

func (s *Store) Session(key Key) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.historyIndexLocked(key)
	if i == -1 {
		return Session{}, false
	}
	return s.state.History[i], true
}

func (s *Store) SessionByTitle(title string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, h := range s.state.History {
		if h.Title == title {
			return h, true
		}
	}
	return Session{}, false
}

// History returns a copy of the session list.
func (s *Store) History() []Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.state.History)
}

// HistoryByMode returns the sessions listed under mode.
func (s *Store) HistoryByMode(mode AiMode) []Session {
	modes := mode.HistoryModes()

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Session{}
	for _, h := range s.state.History {
		if slices.Contains(modes, h.AiMode) {
			out = append(out, h)
		}
	}
	return out
}

// FetchHistory replaces the history with the sessions the backend holds for
// the current mode. Message lists are rebuilt to match the new history:
// existing lists are kept by key and lists of vanished sessions are dropped.
func (s *Store) FetchHistory(ctx context.Context) ([]Session, error) {
	if s.api == nil {
		return s.History(), nil
	}

	mode := s.Mode()
	remote, err := s.api.ListSessionMeta(ctx, mode.HistoryModes())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}

	s.mu.Lock()
	history := make([]Session, 0, len(remote))
	chat := make([]Conversation, 0, len(remote))
	for _, r := range remote {
		r.IsEdit = false
		history = append(history, r)

		msgs := []Message{}
		if i := s.chatIndexLocked(r.Key); i != -1 {
			msgs = s.state.Chat[i].Messages
		}
		chat = append(chat, Conversation{Key: r.Key, Messages: msgs})
	}
	s.state.History = history
	s.state.Chat = chat
	s.recordLocked()
	out := slices.Clone(history)
	active := s.state.Active
	s.mu.Unlock()

	s.publish(active)
	return out, nil
}

// AddSession registers sess with the backend, then puts it at the front of
// the history with msgs as its message list, makes it active and navigates
// to it. A Pending key is replaced by a generated one.
func (s *Store) AddSession(ctx context.Context, sess Session, msgs []Message) (Session, error) {
	if sess.Key == Pending {
		sess.Key = s.newKey()
	}
	sess.IsEdit = false

	if _, exists := s.Session(sess.Key); exists {
		return Session{}, fmt.Errorf("session %d already exists", sess.Key)
	}

	if s.api != nil {
		created, err := s.api.CreateSessionMeta(ctx, sess)
		if err != nil {
			return Session{}, fmt.Errorf("failed to create session: %w", err)
		}
		if created.ID != "" {
			sess.ID = created.ID
		}
		if created.UserID != "" {
			sess.UserID = created.UserID
		}
	}
	if msgs == nil {
		msgs = []Message{}
	}

	s.mu.Lock()
	if s.historyIndexLocked(sess.Key) != -1 {
		s.mu.Unlock()
		return Session{}, fmt.Errorf("session %d already exists", sess.Key)
	}
	s.state.History = slices.Insert(s.state.History, 0, sess)
	s.state.Chat = slices.Insert(s.state.Chat, 0, Conversation{Key: sess.Key, Messages: cloneMessages(msgs)})
	s.state.Active = sess.Key
	s.recordLocked()
	s.mu.Unlock()

	s.nav.Navigate(sess.Key)
	s.publish(sess.Key)
	return sess, nil
}

// UpdateSession merges patch into the local history entry of key.
func (s *Store) UpdateSession(key Key, patch SessionPatch) bool {
	s.mu.Lock()
	i := s.historyIndexLocked(key)
	if i == -1 {
		s.mu.Unlock()
		return false
	}
	h := &s.state.History[i]
	if patch.Title != nil {
		h.Title = *patch.Title
	}
	if patch.IsEdit != nil {
		h.IsEdit = *patch.IsEdit
	}
	if patch.Meta != nil {
		h.Meta = *patch.Meta
	}
	if patch.KnowledgeBaseID != nil {
		h.KnowledgeBaseID = *patch.KnowledgeBaseID
	}
	if patch.Icon != nil {
		h.Icon = *patch.Icon
	}
	if patch.Description != nil {
		h.Description = *patch.Description
	}
	if patch.Greetings != nil {
		h.Greetings = *patch.Greetings
	}
	s.recordLocked()
	s.mu.Unlock()

	s.publish(key)
	return true
}

// UpdateSessionMeta changes fields of a remote session and replaces the
// matching local entry with what the backend returned.
func (s *Store) UpdateSessionMeta(ctx context.Context, id string, fields map[string]any) error {
	if s.api == nil {
		return errors.New("no history backend configured")
	}
	updated, err := s.api.UpdateSessionMeta(ctx, id, fields)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	s.mu.Lock()
	i := s.historyIndexLocked(updated.Key)
	if i == -1 {
		s.mu.Unlock()
		return nil
	}
	updated.IsEdit = s.state.History[i].IsEdit
	s.state.History[i] = updated
	s.recordLocked()
	s.mu.Unlock()

	s.publish(updated.Key)
	return nil
}

// DeleteSession removes the session at index from both the history and the
// message container, then picks the new active session:
//
//  1. history now empty: no active session, navigate to the default view
//  2. 0 < index <= len: the entry now at index-1
//  3. index == 0: the entry now at 0
//  4. index > len: the last entry
//
// A negative index is ignored.
func (s *Store) DeleteSession(index int) {
	if index < 0 {
		return
	}

	s.mu.Lock()
	if index < len(s.state.History) {
		s.state.History = slices.Delete(s.state.History, index, index+1)
	}
	if index < len(s.state.Chat) {
		s.state.Chat = slices.Delete(s.state.Chat, index, index+1)
	}

	n := len(s.state.History)
	var next Key
	switch {
	case n == 0:
		next = Pending
	case index > 0 && index <= n:
		next = s.state.History[index-1].Key
	case index == 0:
		next = s.state.History[0].Key
	default:
		next = s.state.History[n-1].Key
	}
	s.state.Active = next
	s.recordLocked()
	s.mu.Unlock()

	s.nav.Navigate(next)
	s.publish(next)
}

// DeleteSessionMeta deletes a remote session by id, or by title when no id
// is given, then empties the local message list named by ref.Key or, failing
// that, the one of the session with ref.Title.
func (s *Store) DeleteSessionMeta(ctx context.Context, ref SessionRef) error {
	if ref.ID == "" && ref.Title == "" {
		return errors.New("session id or title is required")
	}
	if s.api != nil {
		var err error
		if ref.ID != "" {
			err = s.api.DeleteSessionMeta(ctx, ref.ID)
		} else {
			err = s.api.DeleteSessionMetaByTitle(ctx, ref.Title)
		}
		if err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
	}

	key := ref.Key
	if key == Pending && ref.ID == "" {
		if h, ok := s.SessionByTitle(ref.Title); ok {
			key = h.Key
		}
	}
	if key != Pending {
		s.ClearMessages(key)
	}
	return nil
}

// ---- messages ----

// AppendMessage adds msg to the end of the session's message list and
// returns the key of the list it went to, or Pending if none matched.
//
// With Pending and an empty history a new session is created around msg,
// titled with its text, made active and navigated to. With Pending and a
// non-empty history the first list receives msg.
//
// A session still titled DefaultTitle is renamed to the text of its first
// user message, except in MyFavorites mode where titles are chosen by the user.
func (s *Store) AppendMessage(key Key, msg Message) Key {
	s.mu.Lock()

	if key == Pending && len(s.state.History) == 0 {
		k := s.newKey()
		s.state.History = append(s.state.History, Session{Key: k, Title: msg.Text})
		s.state.Chat = append(s.state.Chat, Conversation{Key: k, Messages: cloneMessages([]Message{msg})})
		s.state.Active = k
		s.recordLocked()
		s.mu.Unlock()

		s.nav.Navigate(k)
		s.publish(k)
		return k
	}

	i := s.resolveLocked(key)
	if i == -1 {
		s.mu.Unlock()
		return Pending
	}
	c := &s.state.Chat[i]
	c.Messages = append(c.Messages, cloneMessages([]Message{msg})...)
	if msg.Role == RoleUser && s.state.AiMode != ModeMyFavorites {
		if h := s.historyIndexLocked(c.Key); h != -1 && s.state.History[h].Title == DefaultTitle {
			s.state.History[h].Title = msg.Text
		}
	}
	resolved := c.Key
	s.recordLocked()
	s.mu.Unlock()

	s.publish(resolved)
	return resolved
}

// ReplaceMessageAt overwrites the message at index.
func (s *Store) ReplaceMessageAt(key Key, index int, msg Message) bool {
	return s.mutateMessage(key, index, func(Message) Message {
		return cloneMessages([]Message{msg})[0]
	})
}

// PatchMessageAt merges patch into the message at index.
func (s *Store) PatchMessageAt(key Key, index int, patch MessagePatch) bool {
	return s.mutateMessage(key, index, patch.Apply)
}

func (s *Store) mutateMessage(key Key, index int, fn func(Message) Message) bool {
	s.mu.Lock()
	i := s.resolveLocked(key)
	if i == -1 || index < 0 || index >= len(s.state.Chat[i].Messages) {
		s.mu.Unlock()
		return false
	}
	c := &s.state.Chat[i]
	c.Messages[index] = fn(c.Messages[index])
	resolved := c.Key
	s.recordLocked()
	s.mu.Unlock()

	s.publish(resolved)
	return true
}

// DeleteMessageAt removes the message at index; later messages shift down by one.
func (s *Store) DeleteMessageAt(key Key, index int) bool {
	s.mu.Lock()
	i := s.resolveLocked(key)
	if i == -1 || index < 0 || index >= len(s.state.Chat[i].Messages) {
		s.mu.Unlock()
		return false
	}
	c := &s.state.Chat[i]
	c.Messages = slices.Delete(c.Messages, index, index+1)
	resolved := c.Key
	s.recordLocked()
	s.mu.Unlock()

	s.publish(resolved)
	return true
}

// ClearMessages empties the session's message list, keeping the session.
func (s *Store) ClearMessages(key Key) {
	s.mu.Lock()
	i := s.resolveLocked(key)
	if i == -1 {
		s.mu.Unlock()
		return
	}
	s.state.Chat[i].Messages = []Message{}
	resolved := s.state.Chat[i].Key
	s.recordLocked()
	s.mu.Unlock()

	s.publish(resolved)
}

// Resolve returns the key of the list a message mutation on key would touch,
// or Pending if there is none.
func (s *Store) Resolve(key Key) Key {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.resolveLocked(key)
	if i == -1 {
		return Pending
	}
	return s.state.Chat[i].Key
}

// MessagesOf returns a copy of the session's messages. Pending reads the active session.
func (s *Store) MessagesOf(key Key) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if key == Pending {
		key = s.state.Active
	}
	i := s.chatIndexLocked(key)
	if i == -1 {
		return []Message{}
	}
	return cloneMessages(s.state.Chat[i].Messages)
}

// MessageAt returns the message at index. Pending reads the first list.
func (s *Store) MessageAt(key Key, index int) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.resolveLocked(key)
	if i == -1 || index < 0 || index >= len(s.state.Chat[i].Messages) {
		return Message{}, false
	}
	return cloneMessages(s.state.Chat[i].Messages[index : index+1])[0], true
}

// ModelInput projects the session's messages to {role, content} pairs,
// skipping empty texts. topK < 0 returns all of them, otherwise at most the
// last topK. Pending reads the active session.
func (s *Store) ModelInput(key Key, topK int) []ModelMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if key == Pending {
		key = s.state.Active
	}
	out := []ModelMessage{}
	i := s.chatIndexLocked(key)
	if i == -1 {
		return out
	}
	for _, m := range s.state.Chat[i].Messages {
		if m.Text == "" {
			continue
		}
		out = append(out, ModelMessage{Role: m.Role, Content: m.Text})
	}
	if topK >= 0 && len(out) > topK {
		out = out[len(out)-topK:]
	}
	return out
}

// ---- lookups ----

func (s *Store) historyIndexLocked(key Key) int {
	return slices.IndexFunc(s.state.History, func(h Session) bool { return h.Key == key })
}

func (s *Store) chatIndexLocked(key Key) int {
	return slices.IndexFunc(s.state.Chat, func(c Conversation) bool { return c.Key == key })
}

// resolveLocked maps a message-list address to a container index.
func (s *Store) resolveLocked(key Key) int {
	if key == Pending {
		if len(s.state.Chat) == 0 {
			return -1
		}
		return 0
	}
	return s.chatIndexLocked(key)
}
