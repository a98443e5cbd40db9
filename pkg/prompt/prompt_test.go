package prompt

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepai/deepai-client/pkg/storage"
)

type fakeAPI struct {
	all   []Prompt
	page  []Prompt
	total int
	err   error
	liked map[string]bool
}

func (f *fakeAPI) ListPrompts(ctx context.Context, term string) ([]Prompt, error) {
	return f.all, f.err
}

func (f *fakeAPI) PromptsByPage(ctx context.Context, q Query) ([]Prompt, int, error) {
	return f.page, f.total, f.err
}

func (f *fakeAPI) CreatePrompt(ctx context.Context, p Prompt) (Prompt, error) {
	p.ID = "new"
	return p, f.err
}

func (f *fakeAPI) UpdatePrompt(ctx context.Context, id string, fields map[string]any) (Prompt, error) {
	return Prompt{ID: id, Title: fields["title"].(string)}, f.err
}

func (f *fakeAPI) LikePrompt(ctx context.Context, id string, like bool) (Prompt, error) {
	if f.liked == nil {
		f.liked = map[string]bool{}
	}
	f.liked[id] = like
	return Prompt{ID: id, Likes: 1}, f.err
}

func (f *fakeAPI) DeletePrompt(ctx context.Context, id string) error               { return f.err }
func (f *fakeAPI) TogglePrompt(ctx context.Context, id string, enabled bool) error { return f.err }
func (f *fakeAPI) BulkInsertPrompts(ctx context.Context, prompts []Prompt) error   { return f.err }

func TestSetListPersists(t *testing.T) {
	kv := storage.NewMemory()
	s := New(kv, &fakeAPI{})
	s.SetList([]Prompt{{Title: "Poet", Greetings: "Hi, I rhyme."}})

	reloaded := New(kv, &fakeAPI{})
	p, ok := reloaded.Find("Poet")
	require.True(t, ok)
	assert.Equal(t, "Hi, I rhyme.", p.Greetings)
}

func TestFetch(t *testing.T) {
	api := &fakeAPI{all: []Prompt{{Title: "a"}, {Title: "b"}}, page: nil, total: 12}
	s := New(storage.NewMemory(), api)
	ctx := context.Background()

	require.NoError(t, s.Fetch(ctx))
	assert.Len(t, s.List(), 2)

	total, err := s.FetchPage(ctx, Query{Page: 2, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 12, total)
	assert.NotNil(t, s.List())
	assert.Empty(t, s.List())
}

func TestMutations(t *testing.T) {
	api := &fakeAPI{}
	s := New(storage.NewMemory(), api)
	ctx := context.Background()

	created, err := s.Create(ctx, Prompt{Title: "x"})
	require.NoError(t, err)
	assert.Equal(t, "new", created.ID)

	updated, err := s.Update(ctx, "p1", map[string]any{"title": "y"})
	require.NoError(t, err)
	assert.Equal(t, "y", updated.Title)

	_, err = s.Like(ctx, "p1", true)
	require.NoError(t, err)
	assert.True(t, api.liked["p1"])

	api.err = errors.New("rejected")
	assert.ErrorContains(t, s.Delete(ctx, "p1"), "rejected")
	assert.Error(t, s.Toggle(ctx, "p1", false))
	assert.Error(t, s.BulkInsert(ctx, []Prompt{{Title: "z"}}))
}
