package crux

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cruxhq/crux/pkg/httpapi"
	"github.com/cruxhq/crux/pkg/scenario"
	"github.com/cruxhq/crux/pkg/store"
)

// App is the assembled application: store, vendors and HTTP front end.
type App struct {
	cfg    Config
	logger *slog.Logger
	store  store.Store
	server *httpapi.Server
}

// NewApp builds the application from config. Vendor construction fails fast
// on missing credentials so a misconfigured server never accepts games.
func NewApp(ctx context.Context, cfg Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	st, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.SeedScenarios {
		inserted, err := store.Seed(ctx, st, scenario.Builtin())
		if err != nil {
			_ = st.Close(ctx)
			return nil, fmt.Errorf("seed scenarios: %w", err)
		}
		if inserted > 0 {
			logger.Info("scenarios_seeded", slog.Int("inserted", inserted))
		}
	}

	registry := DefaultRegistry(logger)
	transcribers, err := registry.BuildSTT(cfg)
	if err != nil {
		_ = st.Close(ctx)
		return nil, err
	}
	synth, err := registry.BuildTTS(cfg)
	if err != nil {
		_ = st.Close(ctx)
		return nil, err
	}
	generator, scenarios, err := registry.BuildLLM(ctx, cfg)
	if err != nil {
		_ = st.Close(ctx)
		return nil, err
	}

	server := httpapi.New(cfg.Server, httpapi.Deps{
		Store:        st,
		Transcribers: transcribers,
		Synth:        synth,
		Generator:    generator,
		Scenarios:    scenarios,
		Game:         cfg.Game,
		Logger:       logger,
	})

	return &App{cfg: cfg, logger: logger, store: st, server: server}, nil
}

// Run serves until the context is cancelled, then releases the store.
func (a *App) Run(ctx context.Context) error {
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.store.Close(closeCtx); err != nil {
			a.logger.Warn("store_close_failed", slog.String("error", err.Error()))
		}
	}()
	return a.server.Start(ctx)
}

func buildStore(ctx context.Context, cfg Config) (store.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Store.Provider)) {
	case "", "memory":
		return store.NewMemory(), nil
	case "mongo":
		return store.NewMongo(ctx, cfg.Store.Mongo)
	default:
		return nil, fmt.Errorf("unknown store provider: %s", cfg.Store.Provider)
	}
}
