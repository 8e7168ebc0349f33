package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Freeeeeet/lesson_scheduler/internal/app"
	"github.com/Freeeeeet/lesson_scheduler/internal/config"
)

var CLI struct {
	Version  kong.VersionFlag
	LogLevel string `help:"Log level." default:"warn" env:"LOG_LEVEL"`

	Migrate struct {
		Up      MigrateUpCmd      `cmd:"" help:"Apply pending migrations."`
		Down    MigrateDownCmd    `cmd:"" help:"Roll back the latest migration."`
		Version MigrateVersionCmd `cmd:"" help:"Print the current schema version."`
	} `cmd:"" help:"Manage database schema."`
	Free    FreeCmd    `cmd:"" help:"Print free intervals of a user."`
	Suggest SuggestCmd `cmd:"" help:"Suggest common free slots for a teacher and a student."`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("schedctl"),
		kong.Description("Lesson scheduler maintenance tool"),
		kong.UsageOnError(),
		kong.Vars{"version": "v0.1.0"},
	)

	if err := run(kctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(kctx *kong.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, _ := app.NewLogger(cfg.Environment, CLI.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer pool.Close()

	return kctx.Run(&Context{
		Ctx:    ctx,
		Config: cfg,
		Pool:   pool,
		Logger: logger,
		Out:    os.Stdout,
	})
}
