package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepai/deepai-client/pkg/api"
	"github.com/deepai/deepai-client/pkg/runner"
	"github.com/deepai/deepai-client/pkg/storage"
	"github.com/deepai/deepai-client/pkg/store"
)

type stubBackend struct {
	mu    sync.Mutex
	block chan struct{}
}

func (b *stubBackend) reply(ctx context.Context, progress api.ProgressFunc) (string, error) {
	b.mu.Lock()
	block := b.block
	b.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", api.ErrCanceled
		}
	}
	progress("pong")
	return "pong", nil
}

func (b *stubBackend) ChatWithRole(ctx context.Context, _ api.ChatRequest, progress api.ProgressFunc) (string, error) {
	return b.reply(ctx, progress)
}

func (b *stubBackend) ChatLLM(ctx context.Context, _ api.ChatRequest, progress api.ProgressFunc) (string, error) {
	return b.reply(ctx, progress)
}

func (b *stubBackend) AskBot(ctx context.Context, _ api.LocalAIRequest, progress api.ProgressFunc) (string, error) {
	return b.reply(ctx, progress)
}

func (b *stubBackend) hold() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.block = make(chan struct{})
}

type fixture struct {
	store   *store.Store
	runner  *runner.Runner
	backend *stubBackend
	srv     *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	next := store.Key(1)
	s := store.New(storage.NewMemory(), store.WithKeyFunc(func() store.Key {
		k := next
		next++
		return k
	}))
	backend := &stubBackend{}
	r := runner.New(s, backend)

	ctx, cancel := context.WithCancel(context.Background())
	go r.Start(ctx)

	srv := httptest.NewServer(New(s, r).Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return &fixture{store: s, runner: r, backend: backend, srv: srv}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.srv.URL+path, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestListAndGetSessions(t *testing.T) {
	f := newFixture(t)
	f.store.AppendMessage(1, store.Message{Text: "hi", Role: store.RoleUser})

	resp := f.do(t, http.MethodGet, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sessions := decodeBody[[]store.Session](t, resp)
	require.Len(t, sessions, 1)
	assert.Equal(t, store.Key(1), sessions[0].Key)

	resp = f.do(t, http.MethodGet, "/api/sessions/1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeBody[struct {
		Session  store.Session   `json:"session"`
		Messages []store.Message `json:"messages"`
	}](t, resp)
	assert.Equal(t, store.DefaultTitle, got.Session.Title)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "hi", got.Messages[0].Text)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/sessions/99", nil).StatusCode)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/sessions/abc", nil).StatusCode)
}

func TestSendRunsExchange(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/sessions/1/send", map[string]string{"prompt": "ping"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		msgs := f.store.MessagesOf(1)
		return len(msgs) == 2 && msgs[1].Text == "pong" && !msgs[1].Loading
	}, time.Second, 5*time.Millisecond)

	resp = f.do(t, http.MethodPost, "/api/sessions/1/regenerate", map[string]int{"index": 1})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestSendValidation(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/sessions/1/send", map[string]string{"prompt": "  "}).StatusCode)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/sessions/-1/send", map[string]string{"prompt": "x"}).StatusCode)
}

func TestSendWhileBusyConflicts(t *testing.T) {
	f := newFixture(t)
	f.backend.hold()

	require.Equal(t, http.StatusAccepted, f.do(t, http.MethodPost, "/api/sessions/1/send", map[string]string{"prompt": "one"}).StatusCode)
	require.Eventually(t, f.runner.Loading, time.Second, 5*time.Millisecond)

	resp := f.do(t, http.MethodPost, "/api/sessions/1/send", map[string]string{"prompt": "two"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/cancel", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]bool{"canceled": true}, decodeBody[map[string]bool](t, resp))

	require.Eventually(t, func() bool { return !f.runner.Loading() }, time.Second, 5*time.Millisecond)
	m, ok := f.store.MessageAt(1, 1)
	require.True(t, ok)
	assert.False(t, m.Loading)
	assert.False(t, m.Error)
}

func TestDeleteSession(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodDelete, "/api/sessions/x", nil).StatusCode)
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/sessions/0", nil).StatusCode)
	assert.Empty(t, f.store.History())
}

func TestStateAndMode(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPut, "/api/mode", map[string]string{"mode": "chatllm"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, store.ModeChatLLM, f.store.Mode())

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, "/api/mode", map[string]string{"mode": "bogus"}).StatusCode)

	resp = f.do(t, http.MethodGet, "/api/state", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decodeBody[store.State](t, resp)
	assert.Equal(t, store.ModeChatLLM, st.AiMode)
	assert.Equal(t, store.Key(1), st.Active)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodOptions, "/api/sessions", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestEventsWebSocket(t *testing.T) {
	f := newFixture(t)

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/api/events"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	var ev Event
	require.NoError(t, ws.ReadJSON(&ev))
	assert.Equal(t, store.Key(1), ev.Session)
	assert.Empty(t, ev.Messages)

	require.NoError(t, ws.WriteJSON(Command{Type: "send", Session: 1, Prompt: "ping"}))

	deadline := time.Now().Add(2 * time.Second)
	for {
		require.NoError(t, ws.SetReadDeadline(deadline))
		var ev Event
		require.NoError(t, ws.ReadJSON(&ev))
		if len(ev.Messages) == 2 && ev.Messages[1].Text == "pong" && !ev.Messages[1].Loading {
			break
		}
	}

	require.NoError(t, ws.WriteJSON(Command{Type: "dance"}))
	for {
		var msg map[string]any
		require.NoError(t, ws.ReadJSON(&msg))
		if e, ok := msg["error"]; ok {
			assert.Contains(t, e, "unknown command")
			break
		}
	}
}
