package user

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepai/deepai-client/pkg/storage"
)

type fakeAPI struct {
	personal map[string]any
	updates  map[string]map[string]any
	users    []Info
	total    int
	err      error
}

func (f *fakeAPI) UpdatePersonalInfo(ctx context.Context, id string, fields map[string]any) error {
	f.personal = fields
	return f.err
}

func (f *fakeAPI) CreateAccount(ctx context.Context, email string) (Account, error) {
	return Account{Email: email, Password: "generated"}, f.err
}

func (f *fakeAPI) ListUsers(ctx context.Context, q Query) ([]Info, int, error) {
	return f.users, f.total, f.err
}

func (f *fakeAPI) DeleteUser(ctx context.Context, id string) error { return f.err }

func (f *fakeAPI) UpdateUser(ctx context.Context, id string, fields map[string]any) error {
	if f.updates == nil {
		f.updates = map[string]map[string]any{}
	}
	f.updates[id] = fields
	return f.err
}

func TestTiers(t *testing.T) {
	tests := []struct {
		typ       Type
		premiumUp bool
		adminUp   bool
	}{
		{Normal, false, false},
		{Premium, true, false},
		{Admin, true, true},
		{SuperAdmin, true, true},
		{"", false, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.premiumUp, tt.typ.AtLeast(Premium), "%q", tt.typ)
		assert.Equal(t, tt.adminUp, tt.typ.AtLeast(Admin), "%q", tt.typ)
	}
}

func TestDefaultsAndPersistence(t *testing.T) {
	kv := storage.NewMemory()
	s := New(kv, &fakeAPI{})
	assert.Equal(t, DefaultInfo(), s.Info())

	s.Update(Info{ID: "u1", Type: Premium, Nickname: "neo"})
	assert.True(t, s.IsPremium())
	assert.True(t, s.IsPremiumAndAbove())
	assert.False(t, s.IsAdminAndAbove())

	reloaded := New(kv, &fakeAPI{})
	got := reloaded.Info()
	assert.Equal(t, "u1", got.ID)
	assert.Equal(t, "neo", got.Nickname)
	assert.Equal(t, DefaultInfo().Model, got.Model)

	reloaded.Clear()
	assert.Equal(t, Info{}, reloaded.Info())
	reloaded.Reset()
	assert.Equal(t, DefaultInfo(), reloaded.Info())
}

func TestUpdateModel(t *testing.T) {
	api := &fakeAPI{}
	s := New(storage.NewMemory(), api)
	s.Update(Info{ID: "u1"})

	require.NoError(t, s.UpdateModel(context.Background(), "gpt-4o"))
	assert.Equal(t, "gpt-4o", s.Info().Model)
	assert.Equal(t, map[string]any{"model": "gpt-4o"}, api.personal)

	api.err = errors.New("down")
	assert.Error(t, s.UpdateModel(context.Background(), "qwen-max"))
	assert.Equal(t, "qwen-max", s.Info().Model, "local change is kept")
}

func TestAdminOperations(t *testing.T) {
	api := &fakeAPI{users: []Info{{ID: "a"}, {ID: "b"}}, total: 7}
	s := New(storage.NewMemory(), api)
	ctx := context.Background()

	total, err := s.FetchUsers(ctx, Query{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	assert.Len(t, s.Users(), 2)

	require.NoError(t, s.UpgradeToPremium(ctx, "a", 50))
	assert.Equal(t, Premium, api.updates["a"]["type"])
	assert.Equal(t, 50, api.updates["a"]["total_image_requests"])

	acc, err := s.CreateAccount(ctx, "x@y.z")
	require.NoError(t, err)
	assert.Equal(t, "x@y.z", acc.Email)

	api.err = errors.New("forbidden")
	_, err = s.FetchUsers(ctx, Query{})
	assert.Error(t, err)
	assert.Empty(t, s.Users())
}
