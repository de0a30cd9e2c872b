package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/example/event-scheduler/internal/application"
	"github.com/example/event-scheduler/internal/config"
	"github.com/example/event-scheduler/internal/logging"
	"github.com/example/event-scheduler/internal/metrics"
	"github.com/example/event-scheduler/internal/persistence/sqlite"
	"github.com/example/event-scheduler/internal/scheduler"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout, os.Stderr).RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "scheduler:", err)
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "scheduler",
		Usage:     "Plan event bookings and check volunteer assignments.",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env-file", Value: ".env", Usage: "dotenv file loaded before the configuration"},
			&cli.StringFlag{Name: "config", Usage: "TOML configuration file", EnvVars: []string{"SCHEDULER_CONFIG_FILE"}},
			&cli.StringFlag{Name: "dsn", Usage: "SQLite data source name, overrides the configuration"},
		},
		Before: func(c *cli.Context) error {
			if path := c.String("env-file"); path != "" {
				if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("load env file %s: %w", path, err)
				}
			}
			if c.IsSet("config") {
				return os.Setenv("SCHEDULER_CONFIG_FILE", c.String("config"))
			}
			return nil
		},
		Commands: []*cli.Command{
			migrateCommand(),
			importCommand(),
			gridCommand(),
			scheduleCommand(),
			validateCommand(),
			bookCommand(),
			assignCommand(),
			unassignCommand(),
			rescheduleCommand(),
			weightedCommand(),
			classifyCommand(),
		},
	}
}

// runtime holds the services shared by every command.
type runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	store       *sqlite.Storage
	recorder    *metrics.PromRecorder
	assignments *application.AssignmentService
	grids       *application.GridService
}

// openRuntime loads the configuration and opens the database. Schema
// migrations are applied unless migrate is false.
func openRuntime(c *cli.Context, migrate bool) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if dsn := strings.TrimSpace(c.String("dsn")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	logger, err := logging.New(c.App.ErrWriter, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.Open(c.Context, cfg.SQLiteDSN, logger)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		return nil, err
	}
	if migrate {
		if err := store.Migrate(c.Context); err != nil {
			logger.Error("failed to apply migrations", "error", err)
			_ = store.Close()
			return nil, err
		}
	}

	recorder, err := metrics.NewPromRecorder(nil)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	grids := application.NewGridService(store, application.GridServiceConfig{
		CacheTTL:        cfg.GridCacheTTL,
		CacheMaxEntries: cfg.GridCacheEntries,
		Collation:       cfg.Collation,
	}, time.Now, logger, recorder)
	assignments := application.NewAssignmentService(store,
		application.WithPipelineOptions(scheduler.PipelineOptions{EnforceAttendance: cfg.EnforceAttendance}),
		application.WithLogger(logger),
		application.WithMetrics(recorder),
		application.WithCommitHook(grids.InvalidateEvent),
	)

	return &runtime{
		cfg:         cfg,
		logger:      logger,
		store:       store,
		recorder:    recorder,
		assignments: assignments,
		grids:       grids,
	}, nil
}

// Close flushes metrics to the configured textfile and closes the database.
func (rt *runtime) Close() error {
	var errs []error
	if rt.cfg.MetricsTextfile != "" {
		if err := rt.recorder.WriteTextfile(rt.cfg.MetricsTextfile); err != nil {
			rt.logger.Error("failed to write metrics textfile", "path", rt.cfg.MetricsTextfile, "error", err)
			errs = append(errs, err)
		}
	}
	if err := rt.store.Close(); err != nil {
		rt.logger.Error("failed to close storage", "error", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// withRuntime opens the runtime for one command and closes it afterwards.
func withRuntime(fn func(c *cli.Context, rt *runtime) error) cli.ActionFunc {
	return func(c *cli.Context) (err error) {
		rt, err := openRuntime(c, true)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := rt.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		ctx := logging.ContextWithLogger(c.Context, rt.logger.With("command", c.Command.Name))
		c.Context = ctx
		return fn(c, rt)
	}
}
