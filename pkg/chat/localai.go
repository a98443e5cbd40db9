package chat

import (
	"context"

	"github.com/deepai/deepai-client/pkg/api"
	"github.com/deepai/deepai-client/pkg/store"
)

type LocalAIAPI interface {
	AskBot(ctx context.Context, req api.LocalAIRequest, progress api.ProgressFunc) (string, error)
}

// LocalAI answers from the knowledge base linked to the active session.
type LocalAI struct {
	hook
	api LocalAIAPI
}

func NewLocalAI(s *store.Store, life *Lifecycle, client LocalAIAPI, opts ...Option) *LocalAI {
	return &LocalAI{hook: newHook("localai", s, life, opts), api: client}
}

func (l *LocalAI) Send(ctx context.Context, key store.Key) bool {
	kb := l.knowledgeBaseID()
	x, ok := l.start(ctx, key)
	if !ok {
		return false
	}
	l.run(x, l.stream(x, kb))
	return true
}

func (l *LocalAI) Regenerate(ctx context.Context, key store.Key, index int) bool {
	x, ok := l.restart(ctx, key, index)
	if !ok {
		return false
	}
	l.run(x, l.stream(x, l.knowledgeBaseID()))
	return true
}

// knowledgeBaseID is read from the active session, whatever session the
// exchange writes to. A session without one sends an empty id.
func (l *LocalAI) knowledgeBaseID() string {
	sess, _ := l.store.ActiveSession()
	return sess.KnowledgeBaseID
}

func (l *LocalAI) stream(x *exchange, kb string) streamFunc {
	return func(ctx context.Context, progress api.ProgressFunc) (string, error) {
		return l.api.AskBot(ctx, l.request(x, kb), progress)
	}
}

// request sends the recent turns as history, minus the last one, which is
// the question itself.
func (l *LocalAI) request(x *exchange, kb string) api.LocalAIRequest {
	msgs := l.store.ModelInput(x.key, l.contextSize)
	if len(msgs) > 0 {
		msgs = msgs[:len(msgs)-1]
	}
	history := make([]api.LocalAIMessage, 0, len(msgs))
	for _, m := range msgs {
		who := api.LocalAIRoleHuman
		if m.Role == store.RoleAssistant {
			who = api.LocalAIRoleAI
		}
		history = append(history, api.LocalAIMessage{Who: who, Message: m.Content})
	}
	return api.LocalAIRequest{
		Text:            x.prompt,
		KnowledgeBaseID: kb,
		ChatHistory:     history,
	}
}
