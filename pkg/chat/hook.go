// Package chat runs one request/stream exchange per send, for each of the
// streaming chat modes. All hooks share a Lifecycle, so exchanges are
// serialized across modes and sessions.
//
// An exchange appends the user message and an assistant placeholder, then
// overwrites the placeholder with the cumulative reply text as it streams in.
// Failures never reach the caller: they become the placeholder's text.
package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/deepai/deepai-client/pkg/api"
	"github.com/deepai/deepai-client/pkg/store"
)

// DefaultContextSize is how many recent messages are sent with a request.
const DefaultContextSize = 8

const timeLayout = "2006/1/2 15:04:05"

type Option func(*hook)

// WithContextSize overrides DefaultContextSize. Values below 1 are ignored.
func WithContextSize(n int) Option {
	return func(h *hook) {
		if n > 0 {
			h.contextSize = n
		}
	}
}

// WithClock replaces time.Now for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(h *hook) { h.now = now }
}

type streamFunc func(ctx context.Context, progress api.ProgressFunc) (string, error)

type hook struct {
	name        string
	store       *store.Store
	life        *Lifecycle
	contextSize int
	now         func() time.Time
}

func newHook(name string, s *store.Store, life *Lifecycle, opts []Option) hook {
	h := hook{
		name:        name,
		store:       s,
		life:        life,
		contextSize: DefaultContextSize,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(&h)
	}
	return h
}

// exchange addresses the placeholder being filled.
type exchange struct {
	ctx    context.Context
	key    store.Key
	index  int
	prompt string
}

// start takes the pending prompt, appends the user message and the
// placeholder, and claims the lifecycle.
func (h *hook) start(parent context.Context, key store.Key) (*exchange, bool) {
	prompt := h.store.Prompt()
	if strings.TrimSpace(prompt) == "" {
		return nil, false
	}
	ctx, ok := h.life.TryBegin(parent)
	if !ok {
		slog.Debug("send dropped, exchange in flight", "hook", h.name)
		return nil, false
	}

	key = h.store.AppendMessage(key, h.message(store.RoleUser, prompt, prompt))
	if key == store.Pending {
		slog.Warn("send dropped, unknown session", "hook", h.name)
		h.life.End()
		return nil, false
	}
	placeholder := h.message(store.RoleAssistant, "", prompt)
	placeholder.Loading = true
	placeholder.RequestOptions.Options = emptyOptions
	h.store.AppendMessage(key, placeholder)
	h.store.SetPrompt("")

	return &exchange{
		ctx:    ctx,
		key:    key,
		index:  len(h.store.MessagesOf(key)) - 1,
		prompt: prompt,
	}, true
}

// restart claims the lifecycle and resets the message at index to a
// placeholder for its original prompt.
func (h *hook) restart(parent context.Context, key store.Key, index int) (*exchange, bool) {
	ctx, ok := h.life.TryBegin(parent)
	if !ok {
		slog.Debug("regenerate dropped, exchange in flight", "hook", h.name)
		return nil, false
	}

	key = h.store.Resolve(key)
	msg, ok := h.store.MessageAt(key, index)
	if key == store.Pending || !ok {
		slog.Warn("regenerate dropped, no such message", "hook", h.name, "session", key, "index", index)
		h.life.End()
		return nil, false
	}
	prompt := msg.RequestOptions.Prompt
	placeholder := h.message(store.RoleAssistant, "", prompt)
	placeholder.Loading = true
	placeholder.RequestOptions.Options = emptyOptions
	h.store.ReplaceMessageAt(key, index, placeholder)

	return &exchange{ctx: ctx, key: key, index: index, prompt: prompt}, true
}

// run streams into the placeholder and settles it. It always releases the lifecycle.
func (h *hook) run(x *exchange, call streamFunc) {
	defer h.life.End()

	text, err := call(x.ctx, func(text string) {
		msg := h.message(store.RoleAssistant, text, x.prompt)
		msg.Loading = true
		h.store.ReplaceMessageAt(x.key, x.index, msg)
	})

	switch {
	case err == nil:
		h.store.PatchMessageAt(x.key, x.index, store.MessagePatch{Text: &text, Loading: new(bool)})
	case api.IsCanceled(err):
		slog.Info("exchange canceled", "hook", h.name, "session", x.key)
		h.store.PatchMessageAt(x.key, x.index, store.MessagePatch{Loading: new(bool)})
	default:
		slog.Error("exchange failed", "hook", h.name, "session", x.key, "error", err)
		msg := h.message(store.RoleAssistant, api.UserMessage(err), x.prompt)
		msg.Error = true
		h.store.ReplaceMessageAt(x.key, x.index, msg)
	}
}

func (h *hook) message(role store.Role, text, prompt string) store.Message {
	return store.Message{
		Timestamp:      h.now().Format(timeLayout),
		Text:           text,
		Role:           role,
		RequestOptions: store.RequestOptions{Prompt: prompt},
	}
}

var emptyOptions = json.RawMessage("{}")
