package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/deepai/deepai-client/pkg/runner"
	"github.com/deepai/deepai-client/pkg/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const pingPeriod = 30 * time.Second

// Event is pushed to websocket clients after each store change.
type Event struct {
	Session  store.Key       `json:"session"`
	Messages []store.Message `json:"messages"`
	Loading  bool            `json:"loading"`
}

// Command is read from websocket clients.
type Command struct {
	Type    string    `json:"type"` // send, regenerate or cancel
	Session store.Key `json:"session"`
	Prompt  string    `json:"prompt,omitempty"`
	Model   string    `json:"model,omitempty"`
	Index   int       `json:"index,omitempty"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade websocket", "error", err)
		return
	}
	defer ws.Close()

	clientID := uuid.NewString()
	log := slog.With("client", clientID)
	log.Debug("Bridge client connected")

	updates := s.store.Subscribe()
	defer s.store.Unsubscribe(updates)

	// Writes come from the pusher and from command errors.
	var writeMu sync.Mutex
	write := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return ws.WriteJSON(v)
	}

	// Initial Sync
	if err := write(s.event(s.store.Active())); err != nil {
		log.Error("Failed initial sync", "error", err)
		return
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	// Writer Loop (Pusher)
	go func() {
		defer wg.Done()
		defer ws.Close()

		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case key, ok := <-updates:
				if !ok {
					return
				}
				if err := write(s.event(key)); err != nil {
					log.Debug("Failed to push event", "error", err)
					return
				}
			case <-ticker.C:
				writeMu.Lock()
				err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
				writeMu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()

	// Reader Loop
	for {
		var cmd Command
		if err := ws.ReadJSON(&cmd); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("WebSocket read error", "error", err)
			}
			break
		}
		if err := s.command(cmd); err != nil {
			if werr := write(map[string]string{"error": err.Error()}); werr != nil {
				break
			}
		}
	}

	close(done)
	wg.Wait()
	log.Debug("Bridge client disconnected")
}

func (s *Server) command(cmd Command) error {
	switch strings.ToLower(cmd.Type) {
	case "send":
		return s.runner.Submit(runner.Job{Kind: runner.KindSend, Key: cmd.Session, Prompt: cmd.Prompt, Model: cmd.Model})
	case "regenerate":
		return s.runner.Submit(runner.Job{Kind: runner.KindRegenerate, Key: cmd.Session, Index: cmd.Index})
	case "cancel":
		s.runner.Cancel()
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd.Type)
	}
}

func (s *Server) event(key store.Key) Event {
	return Event{
		Session:  key,
		Messages: s.store.MessagesOf(key),
		Loading:  s.runner.Loading(),
	}
}
