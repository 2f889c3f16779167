package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"anoa.com/forumboard/internal/bootstrap"
	"anoa.com/forumboard/internal/config"
	"anoa.com/forumboard/internal/server"
	"anoa.com/forumboard/pkg/database"
	"anoa.com/forumboard/pkg/logger"
	"github.com/urfave/cli/v2"
	"gorm.io/gorm"
)

func main() {
	app := cli.App{
		Name:  "forumboard",
		Usage: "discussion board API with moderation and ForumBot auto replies",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "max-db-connections",
				Usage:   "size of the database connection pool",
				Value:   20,
				EnvVars: []string{"DB_MAX_CONNECTIONS"},
			},
		},
		Action: runServe,
	}
	app.Commands = []*cli.Command{
		&cli.Command{
			Name:   "serve",
			Usage:  "run the HTTP API and background agents",
			Action: runServe,
		},
		&cli.Command{
			Name:   "migrate",
			Usage:  "apply database migrations",
			Action: runMigrate,
		},
		&cli.Command{
			Name:   "seed",
			Usage:  "create the ForumBot user and, in development, demo accounts",
			Action: runSeed,
		},
		&cli.Command{
			Name:      "run-agent",
			Usage:     "run a registered background agent once",
			ArgsUsage: "<agent-name>",
			Action:    runAgent,
		},
	}
	app.RunAndExitOnError()
}

type env struct {
	cfg    *config.Config
	log    *slog.Logger
	db     *gorm.DB
	closer func()
}

func setup(cctx *cli.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.Init(cfg.LogLevel)

	db, err := database.Open(cfg.DatabaseURL, cctx.Int("max-db-connections"))
	if err != nil {
		return nil, err
	}
	closer := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return &env{cfg: cfg, log: log, db: db, closer: closer}, nil
}

func runMigrate(cctx *cli.Context) error {
	e, err := setup(cctx)
	if err != nil {
		return err
	}
	defer e.closer()

	if err := bootstrap.Migrate(e.db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	e.log.Info("migrations applied")
	return nil
}

func runSeed(cctx *cli.Context) error {
	e, err := setup(cctx)
	if err != nil {
		return err
	}
	defer e.closer()

	if err := bootstrap.Migrate(e.db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	if err := bootstrap.SeedForumBot(e.db, e.cfg.ForumBotID, e.log); err != nil {
		return fmt.Errorf("failed to seed ForumBot: %w", err)
	}
	if e.cfg.IsDevelopment() {
		if err := bootstrap.SeedDevUsers(e.db, e.log); err != nil {
			return fmt.Errorf("failed to seed dev users: %w", err)
		}
	}
	return nil
}

// build wires every collaborator from configuration into a server.
func build(ctx context.Context, e *env) (*server.Server, func(), error) {
	rdb, err := server.NewRedis(ctx, e.cfg.RedisURL, e.log)
	if err != nil {
		return nil, nil, err
	}
	ai, err := server.NewAI(ctx, e.cfg, e.log)
	if err != nil {
		return nil, nil, err
	}
	files, err := server.NewFileStorage(e.cfg, e.log)
	if err != nil {
		ai.Close()
		return nil, nil, fmt.Errorf("failed to initialize file storage: %w", err)
	}

	srv, err := server.NewServer(server.Deps{
		Config:      e.cfg,
		DB:          e.db,
		Redis:       rdb,
		Meili:       server.NewSearchClient(e.cfg, e.log),
		FileStorage: files,
		Completer:   ai.Completer,
		Classifier:  ai.Classifier,
		Logger:      e.log,
	})
	cleanup := func() {
		ai.Close()
		if rdb != nil {
			_ = rdb.Close()
		}
	}
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return srv, cleanup, nil
}

func runServe(cctx *cli.Context) error {
	e, err := setup(cctx)
	if err != nil {
		return err
	}
	defer e.closer()

	if err := bootstrap.Migrate(e.db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	if err := bootstrap.SeedForumBot(e.db, e.cfg.ForumBotID, e.log); err != nil {
		return fmt.Errorf("failed to seed ForumBot: %w", err)
	}

	ctx, stop := signal.NotifyContext(cctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, cleanup, err := build(ctx, e)
	if err != nil {
		return err
	}
	defer cleanup()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(":" + e.cfg.Port)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server exited with error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	e.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func runAgent(cctx *cli.Context) error {
	name := cctx.Args().First()
	if name == "" {
		return fmt.Errorf("need to provide an agent name")
	}

	e, err := setup(cctx)
	if err != nil {
		return err
	}
	defer e.closer()

	srv, cleanup, err := build(cctx.Context, e)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := srv.Scheduler().RunAgentByName(cctx.Context, name); err != nil {
		return fmt.Errorf("%w (registered: %v)", err, srv.Scheduler().GetRegisteredAgents())
	}
	e.log.Info("agent finished", "agent", name)
	return nil
}
