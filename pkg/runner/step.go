package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/deepai/deepai-client/pkg/store"
)

var (
	// ErrDropped is returned when the hook ignored the job: blank prompt,
	// exchange in flight, or no such session or message.
	ErrDropped = errors.New("exchange dropped")

	// ErrUnsupportedMode is returned for modes without a chat exchange.
	ErrUnsupportedMode = errors.New("mode has no chat exchange")
)

type Kind string

const (
	KindSend       Kind = "send"
	KindRegenerate Kind = "regenerate"
)

// Job is one send or regenerate request.
type Job struct {
	Kind Kind
	Key  store.Key
	// Index addresses the message to regenerate.
	Index int
	// Prompt, when set, replaces the pending prompt before a send.
	Prompt string
	// Model, when set, becomes the selected model.
	Model string
}

// Step runs job to completion through the hook for the store's current mode.
func (r *Runner) Step(ctx context.Context, job Job) error {
	if job.Model != "" {
		r.store.SetSelectedModel(job.Model)
	}
	if job.Kind == KindSend && job.Prompt != "" {
		r.store.SetPrompt(job.Prompt)
	}

	mode := r.store.Mode()
	slog.Debug("Running chat job", "kind", job.Kind, "mode", mode, "session", job.Key)

	var ran bool
	switch job.Kind {
	case KindSend:
		switch mode {
		case store.ModeMyFavorites:
			ran = r.rolePlay.Send(ctx, job.Key)
		case store.ModeChatLLM, store.ModeDigitalPerson:
			ran = r.chatLLM.Send(ctx, job.Key, mode)
		case store.ModeKnowledgeBase, store.ModeLocalAI:
			ran = r.localAI.Send(ctx, job.Key)
		default:
			return fmt.Errorf("%w: %s", ErrUnsupportedMode, mode)
		}
	case KindRegenerate:
		switch mode {
		case store.ModeMyFavorites:
			ran = r.rolePlay.Regenerate(ctx, job.Key, job.Index)
		case store.ModeChatLLM, store.ModeDigitalPerson:
			ran = r.chatLLM.Regenerate(ctx, job.Key, job.Index, mode)
		case store.ModeKnowledgeBase, store.ModeLocalAI:
			ran = r.localAI.Regenerate(ctx, job.Key, job.Index)
		default:
			return fmt.Errorf("%w: %s", ErrUnsupportedMode, mode)
		}
	default:
		return fmt.Errorf("unknown job kind %q", job.Kind)
	}

	if !ran {
		return ErrDropped
	}
	return nil
}
