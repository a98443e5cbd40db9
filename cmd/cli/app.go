package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/deepai/deepai-client/pkg/api"
	"github.com/deepai/deepai-client/pkg/auth"
	"github.com/deepai/deepai-client/pkg/chat"
	"github.com/deepai/deepai-client/pkg/config"
	"github.com/deepai/deepai-client/pkg/image"
	"github.com/deepai/deepai-client/pkg/knowledge"
	"github.com/deepai/deepai-client/pkg/models"
	"github.com/deepai/deepai-client/pkg/prompt"
	"github.com/deepai/deepai-client/pkg/runner"
	"github.com/deepai/deepai-client/pkg/storage"
	"github.com/deepai/deepai-client/pkg/storage/file"
	"github.com/deepai/deepai-client/pkg/storage/sqlite"
	"github.com/deepai/deepai-client/pkg/store"
	"github.com/deepai/deepai-client/pkg/user"
)

// app holds everything a subcommand needs.
type app struct {
	cfg config.Config
	log io.WriteCloser
	kv  storage.Store

	client    *api.Client
	auth      *auth.Service
	users     *user.Store
	store     *store.Store
	prompts   *prompt.Store
	knowledge *knowledge.Store
	images    *image.Store
	catalog   *models.Catalog
	runner    *runner.Runner
	nav       *navigator

	// signedOut receives when the backend reports the session as unauthorized.
	signedOut chan struct{}
}

func newApp(envfile string) (*app, error) {
	cfg, err := config.Load(envfile)
	if err != nil {
		return nil, err
	}

	logFile, err := cfg.OpenLog()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(cfg.NewLogger(logFile))
	slog.Info("Logging initialized", "level", cfg.Level(), "file", cfg.Log)

	kv, err := openStorage(cfg)
	if err != nil {
		logFile.Close()
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		log:       logFile,
		kv:        kv,
		nav:       newNavigator(),
		signedOut: make(chan struct{}, 1),
	}

	tokens := auth.NewTokens(kv)
	a.client, err = api.New(cfg.APIURL, tokens,
		api.WithTimeout(cfg.Timeout),
		api.WithUnauthorizedHandler(a.unauthorized),
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.users = user.New(kv, a.client)
	a.auth = auth.NewService(tokens, a.client, a.users)
	a.store = store.New(kv, store.WithHistoryAPI(a.client), store.WithNavigator(a.nav))
	a.prompts = prompt.New(kv, a.client)
	a.knowledge = knowledge.New(a.client)
	a.images = image.New(a.client)
	a.catalog = models.NewCatalog(a.users)
	a.runner = runner.New(a.store, a.client, chat.WithContextSize(cfg.ContextSize))
	return a, nil
}

func openStorage(cfg config.Config) (storage.Store, error) {
	if cfg.Storage == config.StorageSQLite {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		db, err := sqlite.New(filepath.Join(cfg.DataDir, "deepai.db"))
		if err != nil {
			return nil, err
		}
		return db, nil
	}
	fs, err := file.New(filepath.Join(cfg.DataDir, "storage"))
	if err != nil {
		return nil, err
	}
	return fs, nil
}

func (a *app) unauthorized() {
	slog.Warn("Session expired, sign in again")
	select {
	case a.signedOut <- struct{}{}:
	default:
	}
}

// refresh loads the profile and the session list when signed in.
func (a *app) refresh(ctx context.Context) {
	if !a.auth.SignedIn() {
		return
	}
	if _, err := a.auth.Session(ctx); err != nil {
		slog.Warn("Failed to load session", "error", err)
		return
	}
	if _, err := a.store.FetchHistory(ctx); err != nil {
		slog.Warn("Failed to fetch history", "error", err)
	}
}

// defaultModel picks the model for new exchanges: the profile's choice when
// the catalog allows it, otherwise the first enabled model.
func (a *app) defaultModel(ctx context.Context) string {
	if m := a.users.Info().Model; a.catalog.Allowed(m) {
		return m
	}
	names, err := a.catalog.List(ctx)
	if err != nil || len(names) == 0 {
		return models.DefaultModel
	}
	return names[0]
}

func (a *app) Close() error {
	if a.kv != nil {
		if err := a.kv.Close(); err != nil {
			slog.Error("Failed to close storage", "error", err)
		}
	}
	return a.log.Close()
}

func requireSignIn(a *app) error {
	if !a.auth.SignedIn() {
		return fmt.Errorf("not signed in, run %q first", "deepai login")
	}
	return nil
}

// navigator forwards the store's navigation requests to the terminal UI.
type navigator struct {
	keys chan store.Key
}

var _ store.Navigator = (*navigator)(nil)

func newNavigator() *navigator {
	return &navigator{keys: make(chan store.Key, 8)}
}

func (n *navigator) Navigate(key store.Key) {
	select {
	case n.keys <- key:
	default:
		slog.Debug("Dropped navigation", "key", key)
	}
}

func (n *navigator) Home(mode store.AiMode) {
	slog.Debug("Navigate home", "mode", mode)
	n.Navigate(store.Pending)
}
