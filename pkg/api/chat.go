package api

import (
	"context"

	"github.com/deepai/deepai-client/pkg/store"
)

// ChatRequest is the body of the role-play and unified chat endpoints.
type ChatRequest struct {
	Model       string               `json:"model,omitempty"`
	Messages    []store.ModelMessage `json:"messages"`
	AiMode      store.AiMode         `json:"ai_mode,omitempty"`
	MaxTokens   int                  `json:"max_tokens,omitempty"`
	Temperature *float64             `json:"temperature,omitempty"`
	TopP        *float64             `json:"top_p,omitempty"`
	Key         store.Key            `json:"uuid,omitempty"`
}

// LocalAIRole tags a turn of the retrieval chat history.
type LocalAIRole string

const (
	LocalAIRoleAI    LocalAIRole = "AI"
	LocalAIRoleHuman LocalAIRole = "Human"
)

type LocalAIMessage struct {
	Who     LocalAIRole `json:"who"`
	Message string      `json:"message"`
}

// LocalAIRequest is the body of the knowledge-base chat endpoint.
type LocalAIRequest struct {
	Text            string           `json:"text"`
	KnowledgeBaseID string           `json:"knowledge_base_id"`
	ChatHistory     []LocalAIMessage `json:"chat_history"`
}

// ChatWithRole streams a role-play reply.
func (c *Client) ChatWithRole(ctx context.Context, req ChatRequest, progress ProgressFunc) (string, error) {
	return c.Stream(ctx, "/chat-with-role/ask", req, progress)
}

// ChatLLM streams a reply from the unified multi-model endpoint.
func (c *Client) ChatLLM(ctx context.Context, req ChatRequest, progress ProgressFunc) (string, error) {
	return c.Stream(ctx, "/chat-llm/chat", req, progress)
}

// AskBot streams a retrieval-augmented reply from a knowledge base.
func (c *Client) AskBot(ctx context.Context, req LocalAIRequest, progress ProgressFunc) (string, error) {
	return c.Stream(ctx, "/local-ai/async-ask-bot", req, progress)
}

// IngestText adds raw text to the local vector store.
func (c *Client) IngestText(ctx context.Context, text string) error {
	_, err := post[none](ctx, c, "/local-ai/ingest-text", map[string]string{"text": text})
	return err
}
