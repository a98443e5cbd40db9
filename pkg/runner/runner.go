// Package runner accepts chat exchanges from any front end and runs them,
// one at a time, through the hook that serves the current AI mode.
package runner

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/deepai/deepai-client/pkg/chat"
	"github.com/deepai/deepai-client/pkg/store"
)

// ErrBusy is returned by Submit while an exchange is running or queued.
var ErrBusy = errors.New("an exchange is already in flight")

// Backend streams replies for every chat mode.
type Backend interface {
	chat.RolePlayAPI
	chat.ChatLLMAPI
	chat.LocalAIAPI
}

// Runner coordinates the chat hooks around one shared lifecycle.
type Runner struct {
	store    *store.Store
	life     *chat.Lifecycle
	rolePlay *chat.RolePlay
	chatLLM  *chat.ChatLLM
	localAI  *chat.LocalAI

	// busy is held from Submit until Start finishes the job, covering the
	// gap before the hook claims the lifecycle.
	mu   sync.Mutex
	busy bool

	jobs      chan Job
	ErrorChan chan error
}

func New(s *store.Store, backend Backend, opts ...chat.Option) *Runner {
	life := chat.NewLifecycle()
	return &Runner{
		store:     s,
		life:      life,
		rolePlay:  chat.NewRolePlay(s, life, backend, opts...),
		chatLLM:   chat.NewChatLLM(s, life, backend, opts...),
		localAI:   chat.NewLocalAI(s, life, backend, opts...),
		jobs:      make(chan Job, 1),
		ErrorChan: make(chan error, 10),
	}
}

// Start runs submitted jobs until ctx is done.
func (r *Runner) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case job := <-r.jobs:
			err := r.Step(ctx, job)
			r.release()
			if err != nil {
				slog.Error("Error running chat job", "kind", job.Kind, "session", job.Key, "error", err)
				select {
				case r.ErrorChan <- err:
				default:
				}
			}
		}
	}
}

// Submit queues job for Start. It never blocks: a job submitted while
// another is running or waiting is refused with ErrBusy.
func (r *Runner) Submit(job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.busy || r.life.Loading() {
		return ErrBusy
	}
	select {
	case r.jobs <- job:
		r.busy = true
		return nil
	default:
		return ErrBusy
	}
}

func (r *Runner) release() {
	r.mu.Lock()
	r.busy = false
	r.mu.Unlock()
}

// Cancel aborts the running exchange, if any.
func (r *Runner) Cancel() bool {
	return r.life.Cancel()
}

// Loading reports whether a job is queued or an exchange is running.
func (r *Runner) Loading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.busy || r.life.Loading()
}

// Greet appends a role-play greeting to the session.
func (r *Runner) Greet(key store.Key, greetings string) store.Key {
	return r.rolePlay.Greet(key, greetings)
}
