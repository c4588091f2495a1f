package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/roboricindustries/raycon-multichat/internal/cache"
	"github.com/roboricindustries/raycon-multichat/internal/config"
	"github.com/roboricindustries/raycon-multichat/internal/events"
	"github.com/roboricindustries/raycon-multichat/internal/handlers"
	"github.com/roboricindustries/raycon-multichat/internal/ingest"
	"github.com/roboricindustries/raycon-multichat/internal/ingest/adapters/evolution"
	"github.com/roboricindustries/raycon-multichat/internal/ingest/adapters/greenapi"
	"github.com/roboricindustries/raycon-multichat/internal/ingest/adapters/wazzup"
	"github.com/roboricindustries/raycon-multichat/internal/logger"
	"github.com/roboricindustries/raycon-multichat/internal/prune"
	"github.com/roboricindustries/raycon-multichat/internal/server"
	"github.com/roboricindustries/raycon-multichat/internal/store"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook ingestion server",
		RunE: func(cmd *cobra.Command, args []string) error {
			runServe()
			return nil
		},
	}
}

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			providePool,
			provideSeenCache,
			provideBroker,
			provideRegistry,
			store.NewMessages,
			store.NewClients,
			store.NewChats,
			store.NewAudit,
			store.NewIntegrations,
			providePipeline,
			provideAuditPruner,
			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(handlers.NewWebhookHandler),
			provideServer,
		),
		fx.Invoke(
			startAuditPruner,
			startServer,
		),
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig() (config.Config, error) {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func providePool(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	pool, err := store.NewPool(ctx, log, cfg.Postgres)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})
	return pool, nil
}

func provideSeenCache(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) (*cache.SeenCache, error) {
	if cfg.Redis.Disabled {
		log.Info("dedupe cache disabled")
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	seen, err := cache.NewSeenCache(ctx, log, cfg.Redis)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return seen.Close()
		},
	})
	return seen, nil
}

func provideBroker(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) (*events.Broker, error) {
	if cfg.Rabbit.Disabled {
		log.Info("event publishing disabled")
		return nil, nil
	}
	broker, err := events.NewBroker(log, cfg.Rabbit)
	if err != nil {
		return nil, fmt.Errorf("connect rabbit: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return broker.Close()
		},
	})
	return broker, nil
}

func provideRegistry(log *slog.Logger) *ingest.Registry {
	registry := ingest.NewRegistry()
	registry.MustRegister(greenapi.New(log))
	registry.MustRegister(wazzup.New(log))
	registry.MustRegister(evolution.New(log))
	return registry
}

func providePipeline(
	log *slog.Logger,
	cfg config.Config,
	registry *ingest.Registry,
	messages *store.Messages,
	clients *store.Clients,
	chats *store.Chats,
	audit *store.Audit,
	integrations *store.Integrations,
	seen *cache.SeenCache,
	broker *events.Broker,
) *ingest.Pipeline {
	// A nil *SeenCache must stay a nil interface inside the
	// deduplicator, likewise the broker.
	var seenCache ingest.SeenCache
	if seen != nil {
		seenCache = seen
	}
	var publisher ingest.EventPublisher
	if broker != nil {
		publisher = broker
	}

	return ingest.NewPipeline(log, ingest.PipelineParams{
		Registry:     registry,
		Resolver:     ingest.NewIdentityResolver(log, clients),
		Dedup:        ingest.NewDeduplicator(log, seenCache, messages),
		Tracker:      ingest.NewConversationTracker(log, chats),
		Applier:      ingest.NewStatusApplier(log, messages),
		Messages:     messages,
		Audit:        audit,
		Integrations: integrations,
		Publisher:    publisher,
		StoreTimeout: time.Duration(cfg.Ingest.StoreTimeoutSeconds) * time.Second,
	})
}

func provideAuditPruner(log *slog.Logger, cfg config.Config, audit *store.Audit) *prune.AuditPruner {
	return prune.NewAuditPruner(log, audit, cfg.Audit.RetentionDays, cfg.Audit.PruneSchedule)
}

func provideServer(params serverParams) *server.Server {
	return server.New(params.Logger, params.Config.Server.Addr, params.Handlers)
}

type serverParams struct {
	fx.In

	Logger   *slog.Logger
	Config   config.Config
	Handlers []server.Handler `group:"server_handlers"`
}

func startAuditPruner(lc fx.Lifecycle, pruner *prune.AuditPruner) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return pruner.Start()
		},
		OnStop: func(context.Context) error {
			pruner.Stop()
			return nil
		},
	})
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
