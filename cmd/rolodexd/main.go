package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/jackc/pgx/v5/pgxpool"

	migrations "github.com/rolodexhq/rolodex/db"
	"github.com/rolodexhq/rolodex/internal/config"
	"github.com/rolodexhq/rolodex/internal/contacts"
	"github.com/rolodexhq/rolodex/internal/db"
	"github.com/rolodexhq/rolodex/internal/dedupe"
	"github.com/rolodexhq/rolodex/internal/handlers"
	"github.com/rolodexhq/rolodex/internal/importer"
	"github.com/rolodexhq/rolodex/internal/logger"
	"github.com/rolodexhq/rolodex/internal/notes"
	"github.com/rolodexhq/rolodex/internal/ratelimit"
	"github.com/rolodexhq/rolodex/internal/schedule"
	"github.com/rolodexhq/rolodex/internal/server"
	"github.com/rolodexhq/rolodex/internal/tags"
	"github.com/rolodexhq/rolodex/internal/users"
	"github.com/rolodexhq/rolodex/internal/version"
)

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		runMigrate(os.Args[2:])
		return
	}

	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,

			users.NewService,
			contacts.NewService,
			tags.NewService,
			notes.NewService,
			importer.NewService,
			provideDedupeService,
			provideScheduleService,
			provideRateLimiter,

			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(provideAuthHandler),
			provideServerHandler(handlers.NewSwaggerHandler),
			provideServerHandler(handlers.NewContactsHandler),
			provideServerHandler(handlers.NewTagsHandler),
			provideServerHandler(handlers.NewNotesHandler),
			provideServerHandler(handlers.NewDedupeHandler),
			provideServerHandler(handlers.NewImportsHandler),
			provideServerHandler(handlers.NewUsersHandler),

			provideServer,
		),
		fx.Invoke(
			startScheduleService,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func runMigrate(args []string) {
	cfg, err := provideConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := provideLogger(cfg)

	command := "up"
	if len(args) > 0 {
		command = args[0]
		args = args[1:]
	}
	migrationsFS, err := fs.Sub(migrations.MigrationsFS, "migrations")
	if err != nil {
		log.Error("migrations fs", slog.Any("error", err))
		os.Exit(1)
	}
	if err := db.RunMigrate(log, cfg.Postgres, migrationsFS, command, args); err != nil {
		log.Error("migrate", slog.Any("error", err))
		os.Exit(1)
	}
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	conn, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			conn.Close()
			return nil
		},
	})
	return conn, nil
}

func provideDedupeService(log *slog.Logger, pool *pgxpool.Pool, cfg config.Config) *dedupe.Service {
	svc := dedupe.NewService(log, pool)
	svc.SetPairCap(cfg.Dedupe.PairLimit)
	svc.SetRunCap(cfg.Dedupe.MaxLimit)
	return svc
}

func provideScheduleService(log *slog.Logger, dedupeService *dedupe.Service, cfg config.Config) *schedule.Service {
	return schedule.NewService(log, dedupeService, cfg.Dedupe.CronSpec, cfg.Dedupe.DefaultLimit)
}

func provideRateLimiter(cfg config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.RateLimit)
}

func provideAuthHandler(log *slog.Logger, userService *users.Service, cfg config.Config) (*handlers.AuthHandler, error) {
	expiresIn, err := time.ParseDuration(cfg.Auth.JWTExpiresIn)
	if err != nil {
		return nil, fmt.Errorf("parse jwt_expires_in: %w", err)
	}
	return handlers.NewAuthHandler(log, userService, cfg.Auth.JWTSecret, expiresIn), nil
}

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	Config         config.Config
	Limiter        *ratelimit.Limiter
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.Config.Auth.JWTSecret, params.Limiter, params.ServerHandlers...)
}

func startScheduleService(lc fx.Lifecycle, scheduleService *schedule.Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return scheduleService.Start()
		},
		OnStop: func(ctx context.Context) error {
			return scheduleService.Stop(ctx)
		},
	})
}

func startServer(
	lc fx.Lifecycle,
	logger *slog.Logger,
	srv *server.Server,
	shutdowner fx.Shutdowner,
	cfg config.Config,
	userService *users.Service,
) {
	fmt.Printf("Starting Rolodex %s\n", version.GetInfo())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := userService.EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Password); err != nil {
				return err
			}

			go func() {
				if err := srv.Start(); err != nil { // block until server is stopped
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
