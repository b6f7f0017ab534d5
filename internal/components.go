package internal

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/livepad/internal/console"
	"github.com/starford/livepad/internal/ident"
	"github.com/starford/livepad/internal/kv"
	"github.com/starford/livepad/internal/preview"
	"github.com/starford/livepad/internal/tree"
	"github.com/starford/livepad/internal/workspace"
)

// components are the pieces every entry point shares.
type components struct {
	store  kv.Store
	tree   *tree.Store
	live   *preview.Live
	bridge *console.Bridge
	svc    *workspace.Service
}

func (c *components) Close() error {
	return c.store.Close()
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// newLogger installs the JSON logger as the process default.
func (a *application) newLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// openComponents opens the configured store and loads the tree from it.
func (a *application) openComponents(logger *slog.Logger) (*components, error) {
	cfg := a.config

	store, err := kv.Open(cfg.Storage.Driver, cfg.Storage.Location())
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	ids, err := ident.New(cfg.Tree.IDScheme)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("init ids: %w", err)
	}

	t := tree.Load(store, ids, logger)
	live := preview.NewLive(t, cfg.Preview.AutoUpdate, logger)
	bridge := console.NewBridge(cfg.Console.QueueSize, logger)

	return &components{
		store:  store,
		tree:   t,
		live:   live,
		bridge: bridge,
		svc:    workspace.NewService(t, live, bridge),
	}, nil
}
