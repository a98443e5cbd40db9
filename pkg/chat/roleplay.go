package chat

import (
	"context"

	"github.com/deepai/deepai-client/pkg/api"
	"github.com/deepai/deepai-client/pkg/store"
)

const (
	rolePlayMaxTokens   = 2048
	rolePlayTemperature = 1.0
)

type RolePlayAPI interface {
	ChatWithRole(ctx context.Context, req api.ChatRequest, progress api.ProgressFunc) (string, error)
}

// RolePlay chats in character over the prompts saved as favorites.
type RolePlay struct {
	hook
	api RolePlayAPI
}

func NewRolePlay(s *store.Store, life *Lifecycle, client RolePlayAPI, opts ...Option) *RolePlay {
	return &RolePlay{hook: newHook("roleplay", s, life, opts), api: client}
}

// Send runs an exchange for the pending prompt. It reports false if the
// send was dropped.
func (r *RolePlay) Send(ctx context.Context, key store.Key) bool {
	x, ok := r.start(ctx, key)
	if !ok {
		return false
	}
	r.run(x, r.stream(x))
	return true
}

// Regenerate reruns the prompt that produced the message at index.
func (r *RolePlay) Regenerate(ctx context.Context, key store.Key, index int) bool {
	x, ok := r.restart(ctx, key, index)
	if !ok {
		return false
	}
	r.run(x, r.stream(x))
	return true
}

// Greet appends the character's greeting as an assistant message. No
// request is made. It returns the key of the session that received it.
func (r *RolePlay) Greet(key store.Key, greetings string) store.Key {
	if greetings == "" {
		return key
	}
	return r.store.AppendMessage(key, r.message(store.RoleAssistant, greetings, greetings))
}

func (r *RolePlay) stream(x *exchange) streamFunc {
	return func(ctx context.Context, progress api.ProgressFunc) (string, error) {
		return r.api.ChatWithRole(ctx, r.request(x.key), progress)
	}
}

func (r *RolePlay) request(key store.Key) api.ChatRequest {
	temperature := rolePlayTemperature
	return api.ChatRequest{
		Model:       r.store.SelectedModel(),
		Messages:    r.store.ModelInput(key, r.contextSize),
		MaxTokens:   rolePlayMaxTokens,
		Temperature: &temperature,
		Key:         key,
	}
}
