package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/google/subcommands"
	"github.com/rs/zerolog"

	"github.com/jask/arkark/internal/config"
	"github.com/jask/arkark/internal/database"
	"github.com/jask/arkark/internal/logger"
	"github.com/jask/arkark/internal/service"
	"github.com/jask/arkark/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})

	commander := newCommander(newApp(cfg, log, os.Stdout), flag.CommandLine, path.Base(os.Args[0]))
	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

// app carries what every subcommand needs: configuration, the logger and the
// store registry.
type app struct {
	cfg      config.Config
	log      zerolog.Logger
	registry *database.Registry
	out      io.Writer
	now      func() time.Time
}

func newApp(cfg config.Config, log zerolog.Logger, out io.Writer) *app {
	opts := database.Options{
		Mode: database.Mode(cfg.Database.Mode),
		Path: cfg.Database.Path,
		AfterMigrate: func(ctx context.Context, db *sql.DB) error {
			return service.SeedDefaults(ctx, db)
		},
		Log: log,
	}
	if opts.Mode == database.ModeSnapshot {
		opts.Gateway = storage.NewTiered(cfg.Database.Path, cfg.Storage.FallbackPath, log)
	}
	return &app{
		cfg:      cfg,
		log:      log,
		registry: database.NewRegistry(opts),
		out:      out,
		now:      time.Now,
	}
}

func newCommander(a *app, fs *flag.FlagSet, name string) *subcommands.Commander {
	c := subcommands.NewCommander(fs, name)
	c.Register(c.HelpCommand(), "")
	c.Register(c.FlagsCommand(), "")
	c.Register(c.CommandsCommand(), "")
	for _, cmd := range []subcommands.Command{
		&migrateCmd{app: a},
		&accountsCmd{app: a},
		&balancesCmd{app: a},
		&assetsCmd{app: a},
		&healthCmd{app: a},
	} {
		c.Register(cmd, "views")
	}
	for _, cmd := range []subcommands.Command{
		&exportCmd{app: a},
		&importCmd{app: a},
		&ingestCmd{app: a},
		&categoriesCmd{app: a},
		&seedDemoCmd{app: a},
		&resetCmd{app: a},
	} {
		c.Register(cmd, "data")
	}
	return c
}

// withStore opens the store, runs fn and closes the store again, which
// persists it. In snapshot mode the image is also flushed on the configured
// schedule while fn runs.
func (a *app) withStore(ctx context.Context, fn func(ctx context.Context, db *sql.DB) error) subcommands.ExitStatus {
	store, err := a.registry.Acquire(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		return subcommands.ExitFailure
	}
	var auto *database.AutoPersist
	if store.Mode() == database.ModeSnapshot && a.cfg.Persist.Schedule != "" {
		auto, err = database.NewAutoPersist(a.registry, a.cfg.Persist.Schedule, a.log)
		if err != nil {
			a.log.Warn().Err(err).Msg("auto persist disabled")
		} else {
			auto.Start()
		}
	}

	err = fn(ctx, store.DB)
	if auto != nil {
		auto.Stop()
	}
	if cerr := a.registry.Close(ctx); cerr != nil {
		err = errors.Join(err, cerr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// asOf parses a YYYY-MM-DD flag value, defaulting to today.
func (a *app) asOf(s string) (time.Time, error) {
	if s == "" {
		return a.now().UTC(), nil
	}
	return time.Parse(time.DateOnly, s)
}
