package runner_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepai/deepai-client/pkg/api"
	"github.com/deepai/deepai-client/pkg/auth"
	"github.com/deepai/deepai-client/pkg/runner"
	"github.com/deepai/deepai-client/pkg/storage"
	"github.com/deepai/deepai-client/pkg/store"
)

func TestRunnerIntegration_Backend(t *testing.T) {
	baseURL := os.Getenv("DEEPAI_TEST_API_URL")
	token := os.Getenv("DEEPAI_TEST_TOKEN")
	if baseURL == "" || token == "" {
		t.Skip("Skipping integration test: DEEPAI_TEST_API_URL or DEEPAI_TEST_TOKEN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	kv := storage.NewMemory()
	tokens := auth.NewTokens(kv)
	require.NoError(t, tokens.SetTokens(token, os.Getenv("DEEPAI_TEST_REFRESH_TOKEN")))

	client, err := api.New(baseURL, tokens)
	require.NoError(t, err)

	s := store.New(kv)
	s.SetMode(store.ModeChatLLM)
	r := runner.New(s, client)

	key := s.Active()
	err = r.Step(ctx, runner.Job{Kind: runner.KindSend, Key: key, Prompt: "Reply with the single word: pong", Model: os.Getenv("DEEPAI_TEST_MODEL")})
	require.NoError(t, err)

	msgs := s.MessagesOf(key)
	require.Len(t, msgs, 2)
	reply := msgs[1]
	assert.False(t, reply.Loading)
	assert.False(t, reply.Error, "reply: %s", reply.Text)
	assert.True(t, strings.Contains(strings.ToLower(reply.Text), "pong"), "reply: %s", reply.Text)
}
