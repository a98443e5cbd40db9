package chat

import (
	"context"

	"github.com/deepai/deepai-client/pkg/api"
	"github.com/deepai/deepai-client/pkg/store"
)

type ChatLLMAPI interface {
	ChatLLM(ctx context.Context, req api.ChatRequest, progress api.ProgressFunc) (string, error)
}

// ChatLLM chats through the unified endpoint with the selected model.
type ChatLLM struct {
	hook
	api ChatLLMAPI
}

func NewChatLLM(s *store.Store, life *Lifecycle, client ChatLLMAPI, opts ...Option) *ChatLLM {
	return &ChatLLM{hook: newHook("chatllm", s, life, opts), api: client}
}

// Send runs an exchange for the pending prompt, tagged with mode.
func (c *ChatLLM) Send(ctx context.Context, key store.Key, mode store.AiMode) bool {
	x, ok := c.start(ctx, key)
	if !ok {
		return false
	}
	c.run(x, c.stream(x, mode))
	return true
}

func (c *ChatLLM) Regenerate(ctx context.Context, key store.Key, index int, mode store.AiMode) bool {
	x, ok := c.restart(ctx, key, index)
	if !ok {
		return false
	}
	c.run(x, c.stream(x, mode))
	return true
}

func (c *ChatLLM) stream(x *exchange, mode store.AiMode) streamFunc {
	return func(ctx context.Context, progress api.ProgressFunc) (string, error) {
		req := api.ChatRequest{
			Model:    c.store.SelectedModel(),
			Messages: c.store.ModelInput(x.key, c.contextSize),
			AiMode:   mode,
		}
		return c.api.ChatLLM(ctx, req, progress)
	}
}
