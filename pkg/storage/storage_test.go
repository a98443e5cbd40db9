package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestMemoryRoundTrip(t *testing.T) {
	m := NewMemory()

	var got sample
	ok, err := m.Get(KeyChat, &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(KeyChat, sample{Name: "a", Count: 2}))
	ok, err = m.Get(KeyChat, &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, sample{Name: "a", Count: 2}, got)
}

func TestMemoryCopiesValues(t *testing.T) {
	m := NewMemory()
	in := []string{"x"}
	require.NoError(t, m.Set(KeyPrompt, in))
	in[0] = "mutated"

	var out []string
	_, err := m.Get(KeyPrompt, &out)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, out)
}

func TestMemoryRemoveAndClear(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Set(KeyToken, "t"))
	require.NoError(t, m.Set(KeyRefreshToken, "r"))

	require.NoError(t, m.Remove(KeyToken))
	require.NoError(t, m.Remove("missing"))

	var s string
	ok, _ := m.Get(KeyToken, &s)
	assert.False(t, ok)
	ok, _ = m.Get(KeyRefreshToken, &s)
	assert.True(t, ok)

	require.NoError(t, m.Clear())
	ok, _ = m.Get(KeyRefreshToken, &s)
	assert.False(t, ok)
}
