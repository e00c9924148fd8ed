// Command migrate applies, inspects and rolls back the StackIt schema.
//
//	migrate up           apply pending SQL migrations (PostgreSQL)
//	migrate auto         run GORM AutoMigrate (development, SQLite)
//	migrate status       print the schema policy and pending versions
//	migrate down <ver>   roll back one SQL migration
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"stackit/internal/config"
	"stackit/internal/database"
	"stackit/internal/middleware"

	"gorm.io/gorm"
)

type command struct {
	args int
	run  func(ctx context.Context, db *gorm.DB, cfg *config.Config, args []string) error
}

var commands = map[string]command{
	"up": {run: func(ctx context.Context, db *gorm.DB, _ *config.Config, _ []string) error {
		return database.RunMigrations(ctx, db)
	}},
	"auto": {run: func(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
		cfg.DBSchemaMode = database.SchemaModeAuto
		return database.ApplySchema(ctx, db, cfg)
	}},
	"status": {run: status},
	"down": {args: 1, run: func(ctx context.Context, db *gorm.DB, _ *config.Config, args []string) error {
		version, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[0], err)
		}
		return database.RollbackMigration(ctx, db, version)
	}},
}

func main() {
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: migrate <up|auto|status|down> [version]")
	}
	flag.Parse()

	if err := run(flag.Args()); err != nil {
		middleware.Logger.Error("migrate failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		flag.Usage()
		return fmt.Errorf("missing command")
	}
	name := strings.ToLower(strings.TrimSpace(args[0]))
	cmd, ok := commands[name]
	if !ok || len(args)-1 < cmd.args {
		flag.Usage()
		return fmt.Errorf("bad command %q", strings.Join(args, " "))
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = database.Close(db) }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	start := time.Now()
	if err := cmd.run(ctx, db, cfg, args[1:]); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	middleware.Logger.Info("migrate done", slog.String("command", name), slog.Duration("took", time.Since(start)))
	return nil
}

func status(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
	st, err := database.GetSchemaStatus(ctx, db, cfg)
	if err != nil {
		return err
	}
	middleware.Logger.Info("schema status",
		slog.String("driver", st.Driver),
		slog.String("mode", st.Mode),
		slog.String("env", st.Environment),
		slog.Bool("run_sql", st.WillRunSQL),
		slog.Bool("run_auto", st.WillRunAutoMigrate),
		slog.Int("applied", len(st.AppliedVersions)),
		slog.Int("pending", len(st.PendingMigrations)),
	)
	for _, m := range st.PendingMigrations {
		middleware.Logger.Info("pending migration", slog.String("migration", m.String()))
	}
	return nil
}
