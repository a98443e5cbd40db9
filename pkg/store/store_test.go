package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepai/deepai-client/pkg/storage"
)

// fakeAPI records calls and returns canned results.
type fakeAPI struct {
	created   []Session
	updated   map[string]map[string]any
	deleted   []string
	byTitle   []string
	listModes []AiMode
	list      []Session
	err       error
}

func (f *fakeAPI) CreateSessionMeta(ctx context.Context, s Session) (Session, error) {
	if f.err != nil {
		return Session{}, f.err
	}
	f.created = append(f.created, s)
	s.ID = "remote-" + s.Title
	return s, nil
}

func (f *fakeAPI) UpdateSessionMeta(ctx context.Context, id string, fields map[string]any) (Session, error) {
	if f.err != nil {
		return Session{}, f.err
	}
	if f.updated == nil {
		f.updated = map[string]map[string]any{}
	}
	f.updated[id] = fields
	for _, s := range f.list {
		if s.ID == id {
			if t, ok := fields["title"].(string); ok {
				s.Title = t
			}
			return s, nil
		}
	}
	return Session{}, errors.New("not found")
}

func (f *fakeAPI) DeleteSessionMeta(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return f.err
}

func (f *fakeAPI) DeleteSessionMetaByTitle(ctx context.Context, title string) error {
	f.byTitle = append(f.byTitle, title)
	return f.err
}

func (f *fakeAPI) ListSessionMeta(ctx context.Context, modes []AiMode) ([]Session, error) {
	f.listModes = modes
	return f.list, f.err
}

type navRecorder struct {
	navigated []Key
	home      []AiMode
}

func (n *navRecorder) Navigate(k Key) { n.navigated = append(n.navigated, k) }
func (n *navRecorder) Home(m AiMode)  { n.home = append(n.home, m) }

// seqKeys returns a key generator yielding 100, 101, ...
func seqKeys() func() Key {
	next := Key(100)
	return func() Key {
		k := next
		next++
		return k
	}
}

func newTestStore(t *testing.T, opts ...Option) (*Store, storage.Store) {
	t.Helper()
	kv := storage.NewMemory()
	opts = append([]Option{WithKeyFunc(seqKeys())}, opts...)
	return New(kv, opts...), kv
}

func assertAligned(t *testing.T, s *Store) {
	t.Helper()
	st := s.State()
	require.Len(t, st.Chat, len(st.History))
	for i := range st.History {
		assert.Equal(t, st.History[i].Key, st.Chat[i].Key, "index %d", i)
	}
}

func userMsg(text string) Message {
	return Message{Text: text, Role: RoleUser, RequestOptions: RequestOptions{Prompt: text}}
}

func TestDefaultState(t *testing.T) {
	s, _ := newTestStore(t)
	st := s.State()

	require.Len(t, st.History, 1)
	assert.Equal(t, DefaultTitle, st.History[0].Title)
	assert.Equal(t, Key(100), st.Active)
	assert.Equal(t, ModeMyFavorites, st.AiMode)
	assertAligned(t, s)
}

func TestLoadPersistedStateResetsBuffers(t *testing.T) {
	kv := storage.NewMemory()
	require.NoError(t, kv.Set(storage.KeyChat, State{
		Active:        7,
		History:       []Session{{Key: 7, Title: "kept"}},
		Chat:          []Conversation{{Key: 7, Messages: []Message{userMsg("hi")}}},
		AiMode:        ModeChatLLM,
		Prompt:        "draft",
		SelectedModel: "gpt-4",
	}))

	s := New(kv)
	assert.Equal(t, Key(7), s.Active())
	assert.Equal(t, ModeChatLLM, s.Mode())
	assert.Empty(t, s.Prompt())
	assert.Empty(t, s.SelectedModel())
	assert.Len(t, s.MessagesOf(7), 1)
}

func TestStateRoundTrip(t *testing.T) {
	cases := []State{
		{AiMode: ModeAdmin},
		{History: []Session{}, Chat: []Conversation{}, AiMode: ModeLocalAI},
		{
			Active: 2,
			History: []Session{
				{Key: 2, Title: "b", ID: "x", AiMode: ModeLocalAI, KnowledgeBaseID: "kb1", IsEdit: true, Meta: "m"},
				{Key: 1, Title: "a"},
			},
			Chat: []Conversation{
				{Key: 2, Messages: []Message{
					{Timestamp: "t", Text: "hi", Role: RoleUser, RequestOptions: RequestOptions{Prompt: "hi"}},
					{Text: "oops", Role: RoleAssistant, Error: true, RequestOptions: RequestOptions{Prompt: "hi", Options: json.RawMessage(`{"a":1}`)}},
				}},
				{Key: 1, Messages: []Message{}},
			},
			AiMode:        ModeChatLLM,
			Prompt:        "p",
			SelectedModel: "m",
		},
	}
	for _, want := range cases {
		kv := storage.NewMemory()
		require.NoError(t, kv.Set(storage.KeyChat, want))
		var got State
		ok, err := kv.Get(storage.KeyChat, &got)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestAddSession(t *testing.T) {
	api := &fakeAPI{}
	nav := &navRecorder{}
	s, kv := newTestStore(t, WithHistoryAPI(api), WithNavigator(nav))

	sess, err := s.AddSession(context.Background(), Session{Title: "first", AiMode: ModeChatLLM}, nil)
	require.NoError(t, err)
	assert.Equal(t, Key(101), sess.Key)
	assert.Equal(t, "remote-first", sess.ID)

	st := s.State()
	assert.Equal(t, Key(101), st.History[0].Key)
	assert.Equal(t, Key(101), st.Active)
	assert.Equal(t, []Key{101}, nav.navigated)
	require.Len(t, api.created, 1)
	assertAligned(t, s)

	var persisted State
	_, err = kv.Get(storage.KeyChat, &persisted)
	require.NoError(t, err)
	assert.Equal(t, st, persisted)
}

func TestAddSessionRejected(t *testing.T) {
	api := &fakeAPI{err: errors.New("quota exceeded")}
	s, _ := newTestStore(t, WithHistoryAPI(api))

	_, err := s.AddSession(context.Background(), Session{Title: "x"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Len(t, s.History(), 1)
}

func TestAddSessionDuplicateKey(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.AddSession(context.Background(), Session{Key: 100, Title: "dup"}, nil)
	assert.Error(t, err)
}

func TestAddSessionConcurrentSameKey(t *testing.T) {
	s, _ := newTestStore(t)

	const n = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		oks  int
		errs int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.AddSession(context.Background(), Session{Key: 500, Title: "race"}, nil)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs++
				return
			}
			oks++
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, oks)
	assert.Equal(t, n-1, errs)
	count := 0
	for _, sess := range s.History() {
		if sess.Key == 500 {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assertAligned(t, s)
}

func TestDeleteSessionPrecedence(t *testing.T) {
	setup := func(t *testing.T) (*Store, *navRecorder) {
		nav := &navRecorder{}
		s, _ := newTestStore(t, WithNavigator(nav))
		// History after setup: [103, 102, 101, 100]
		for i := 0; i < 3; i++ {
			_, err := s.AddSession(context.Background(), Session{Title: "s"}, nil)
			require.NoError(t, err)
		}
		nav.navigated = nil
		return s, nav
	}

	tests := []struct {
		name   string
		index  int
		active Key
		left   int
	}{
		{name: "first", index: 0, active: 102, left: 3},
		{name: "middle", index: 2, active: 102, left: 3},
		{name: "last", index: 3, active: 101, left: 3},
		{name: "one past end", index: 4, active: 100, left: 4},
		{name: "far past end", index: 9, active: 100, left: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, nav := setup(t)
			s.DeleteSession(tt.index)
			assert.Equal(t, tt.active, s.Active())
			assert.Len(t, s.History(), tt.left)
			assert.Equal(t, []Key{tt.active}, nav.navigated)
			assertAligned(t, s)
		})
	}
}

func TestDeleteSessionToEmpty(t *testing.T) {
	nav := &navRecorder{}
	s, _ := newTestStore(t, WithNavigator(nav))

	s.DeleteSession(0)
	assert.Equal(t, Pending, s.Active())
	assert.Empty(t, s.History())
	assert.Equal(t, []Key{Pending}, nav.navigated)
	assertAligned(t, s)

	_, ok := s.ActiveSession()
	assert.False(t, ok)
}

func TestDeleteSessionNegativeIndex(t *testing.T) {
	s, _ := newTestStore(t)
	before := s.State()
	s.DeleteSession(-1)
	assert.Equal(t, before, s.State())
}

func TestAddDeleteSequenceStaysAligned(t *testing.T) {
	s, _ := newTestStore(t)
	ops := []int{-1, 0, -1, -1, 1, 5, -1, 0, 0, 0, -1, 2}
	for _, op := range ops {
		if op < 0 {
			_, err := s.AddSession(context.Background(), Session{Title: "n"}, nil)
			require.NoError(t, err)
		} else {
			s.DeleteSession(op)
		}
		assertAligned(t, s)
	}
}

func TestAppendMessagePendingCreatesSession(t *testing.T) {
	nav := &navRecorder{}
	s, _ := newTestStore(t, WithNavigator(nav))
	s.DeleteSession(0)
	nav.navigated = nil

	key := s.AppendMessage(Pending, userMsg("hello"))
	assert.Equal(t, Key(101), key)

	st := s.State()
	require.Len(t, st.History, 1)
	assert.Equal(t, "hello", st.History[0].Title)
	assert.Equal(t, key, st.Active)
	assert.Equal(t, []Key{key}, nav.navigated)
	assert.Len(t, s.MessagesOf(key), 1)
	assertAligned(t, s)
}

func TestAppendMessagePendingUsesFirstList(t *testing.T) {
	s, _ := newTestStore(t)
	s.SetMode(ModeChatLLM)
	_, err := s.AddSession(context.Background(), Session{Title: DefaultTitle}, nil)
	require.NoError(t, err)
	s.SetActive(100)

	key := s.AppendMessage(Pending, userMsg("question"))
	assert.Equal(t, Key(101), key)
	assert.Len(t, s.MessagesOf(101), 1)
	assert.Empty(t, s.MessagesOf(100))

	h, _ := s.Session(101)
	assert.Equal(t, "question", h.Title)
}

func TestAppendMessageRename(t *testing.T) {
	t.Run("renames outside favorites", func(t *testing.T) {
		s, _ := newTestStore(t)
		s.SetMode(ModeChatLLM)
		s.AppendMessage(100, userMsg("first question"))
		s.AppendMessage(100, userMsg("second question"))
		h, _ := s.Session(100)
		assert.Equal(t, "first question", h.Title)
	})

	t.Run("keeps title in favorites", func(t *testing.T) {
		s, _ := newTestStore(t)
		s.AppendMessage(100, userMsg("first question"))
		h, _ := s.Session(100)
		assert.Equal(t, DefaultTitle, h.Title)
	})

	t.Run("assistant messages do not rename", func(t *testing.T) {
		s, _ := newTestStore(t)
		s.SetMode(ModeChatLLM)
		s.AppendMessage(100, Message{Text: "greeting", Role: RoleAssistant})
		h, _ := s.Session(100)
		assert.Equal(t, DefaultTitle, h.Title)
	})
}

func TestAppendMessageUnknownKey(t *testing.T) {
	s, _ := newTestStore(t)
	assert.Equal(t, Pending, s.AppendMessage(42, userMsg("x")))
}

func TestResolve(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.AddSession(context.Background(), Session{Title: "second"}, nil)
	require.NoError(t, err)

	assert.Equal(t, Key(101), s.Resolve(Pending))
	assert.Equal(t, Key(100), s.Resolve(100))
	assert.Equal(t, Pending, s.Resolve(42))

	s.DeleteSession(0)
	s.DeleteSession(0)
	assert.Equal(t, Pending, s.Resolve(Pending))
}

func TestMessageMutations(t *testing.T) {
	s, _ := newTestStore(t)
	s.AppendMessage(100, userMsg("a"))
	s.AppendMessage(100, Message{Role: RoleAssistant, Loading: true})
	s.AppendMessage(100, userMsg("c"))

	assert.True(t, s.ReplaceMessageAt(100, 1, Message{Text: "b", Role: RoleAssistant, Loading: true}))
	loading := false
	assert.True(t, s.PatchMessageAt(100, 1, MessagePatch{Loading: &loading}))

	m, ok := s.MessageAt(100, 1)
	require.True(t, ok)
	assert.Equal(t, "b", m.Text)
	assert.False(t, m.Loading)

	assert.False(t, s.ReplaceMessageAt(100, 3, Message{}))
	assert.False(t, s.PatchMessageAt(100, -1, MessagePatch{}))
	assert.False(t, s.PatchMessageAt(999, 0, MessagePatch{}))

	assert.True(t, s.DeleteMessageAt(100, 0))
	msgs := s.MessagesOf(100)
	require.Len(t, msgs, 2)
	assert.Equal(t, "b", msgs[0].Text)
	assert.Equal(t, "c", msgs[1].Text)

	s.ClearMessages(100)
	assert.Empty(t, s.MessagesOf(100))
	assert.Len(t, s.History(), 1)
}

func TestMessagesOfReturnsCopy(t *testing.T) {
	s, _ := newTestStore(t)
	s.AppendMessage(100, userMsg("a"))
	msgs := s.MessagesOf(100)
	msgs[0].Text = "changed"
	m, _ := s.MessageAt(100, 0)
	assert.Equal(t, "a", m.Text)
}

func TestModelInput(t *testing.T) {
	s, _ := newTestStore(t)
	for i := 0; i < 12; i++ {
		s.AppendMessage(100, userMsg(string(rune('a'+i))))
		s.AppendMessage(100, Message{Role: RoleAssistant})
	}

	all := s.ModelInput(100, -1)
	assert.Len(t, all, 12)

	last := s.ModelInput(100, 8)
	require.Len(t, last, 8)
	assert.Equal(t, "e", last[0].Content)
	assert.Equal(t, "l", last[7].Content)
	for _, m := range last {
		assert.NotEmpty(t, m.Content)
	}

	assert.Equal(t, last, s.ModelInput(Pending, 8), "pending reads the active session")
	assert.Empty(t, s.ModelInput(999, 8))
}

func TestFetchHistory(t *testing.T) {
	api := &fakeAPI{list: []Session{
		{Key: 100, Title: "kept", ID: "a", AiMode: ModeLocalAI, IsEdit: true},
		{Key: 200, Title: "new", ID: "b", AiMode: ModeLocalAI},
	}}
	s, _ := newTestStore(t, WithHistoryAPI(api))
	s.AppendMessage(100, userMsg("keep me"))
	_, err := s.AddSession(context.Background(), Session{Title: "orphan"}, nil)
	require.NoError(t, err)
	s.SetMode(ModeKnowledgeBase)

	got, err := s.FetchHistory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []AiMode{ModeLocalAI}, api.listModes)
	require.Len(t, got, 2)
	assert.False(t, got[0].IsEdit)

	assertAligned(t, s)
	assert.Len(t, s.MessagesOf(100), 1)
	assert.Empty(t, s.MessagesOf(200))
	assert.Len(t, s.HistoryByMode(ModeKnowledgeBase), 2)
	assert.Empty(t, s.HistoryByMode(ModeChatLLM))
}

func TestFetchHistoryError(t *testing.T) {
	api := &fakeAPI{err: errors.New("boom")}
	s, _ := newTestStore(t, WithHistoryAPI(api))
	_, err := s.FetchHistory(context.Background())
	assert.Error(t, err)
	assert.Len(t, s.History(), 1)
}

func TestUpdateSession(t *testing.T) {
	s, _ := newTestStore(t)
	title, edit := "renamed", true
	assert.True(t, s.UpdateSession(100, SessionPatch{Title: &title, IsEdit: &edit}))
	h, _ := s.Session(100)
	assert.Equal(t, "renamed", h.Title)
	assert.True(t, h.IsEdit)
	assert.False(t, s.UpdateSession(1, SessionPatch{Title: &title}))

	found, ok := s.SessionByTitle("renamed")
	require.True(t, ok)
	assert.Equal(t, Key(100), found.Key)
}

func TestUpdateSessionMeta(t *testing.T) {
	api := &fakeAPI{list: []Session{{Key: 100, Title: DefaultTitle, ID: "r1"}}}
	s, _ := newTestStore(t, WithHistoryAPI(api))

	require.NoError(t, s.UpdateSessionMeta(context.Background(), "r1", map[string]any{"title": "remote title"}))
	h, _ := s.Session(100)
	assert.Equal(t, "remote title", h.Title)
	assert.Equal(t, "r1", h.ID)

	assert.Error(t, s.UpdateSessionMeta(context.Background(), "missing", nil))
}

func TestDeleteSessionMeta(t *testing.T) {
	api := &fakeAPI{}
	s, _ := newTestStore(t, WithHistoryAPI(api))
	s.AppendMessage(100, userMsg("x"))

	require.NoError(t, s.DeleteSessionMeta(context.Background(), SessionRef{Title: DefaultTitle}))
	assert.Equal(t, []string{DefaultTitle}, api.byTitle)
	assert.Empty(t, s.MessagesOf(100))

	s.AppendMessage(100, userMsg("y"))
	require.NoError(t, s.DeleteSessionMeta(context.Background(), SessionRef{ID: "abc", Key: 100}))
	assert.Equal(t, []string{"abc"}, api.deleted)
	assert.Empty(t, s.MessagesOf(100))

	assert.Error(t, s.DeleteSessionMeta(context.Background(), SessionRef{}))
}

func TestSubscribe(t *testing.T) {
	s, _ := newTestStore(t)
	ch := s.Subscribe()

	s.AppendMessage(100, userMsg("x"))
	select {
	case k := <-ch:
		assert.Equal(t, Key(100), k)
	default:
		t.Fatal("expected an event")
	}
}

func TestUnsubscribe(t *testing.T) {
	s, _ := newTestStore(t)
	ch := s.Subscribe()
	s.Unsubscribe(ch)

	s.AppendMessage(100, userMsg("x"))
	_, open := <-ch
	assert.False(t, open)

	s.Unsubscribe(ch)
}

func TestHomeUsesMode(t *testing.T) {
	nav := &navRecorder{}
	s, _ := newTestStore(t, WithNavigator(nav))
	s.SetMode(ModeTextToImage)
	s.Home()
	assert.Equal(t, []AiMode{ModeTextToImage}, nav.home)
}
