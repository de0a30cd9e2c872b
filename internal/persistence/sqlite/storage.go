package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/example/event-scheduler/internal/persistence"
	"github.com/example/event-scheduler/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Storage implements persistence.Store on top of SQLite.
type Storage struct {
	db     *sql.DB
	retry  *RetryHelper
	logger *slog.Logger
	now    func() time.Time
}

var _ persistence.Store = (*Storage)(nil)

// Open connects to the database identified by dsn using DefaultOptions.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Storage, error) {
	return OpenWithOptions(ctx, dsn, DefaultOptions(), logger)
}

// OpenWithOptions connects to the database identified by dsn.
func OpenWithOptions(ctx context.Context, dsn string, opts Options, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := openDB(ctx, dsn, opts)
	if err != nil {
		return nil, err
	}
	return &Storage{
		db:     db,
		retry:  NewRetryHelper(opts.Retry),
		logger: logger.With("component", "sqlite"),
		now:    time.Now,
	}, nil
}

// Close releases the database handle.
func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	manager := migration.NewManager(migration.NewExecutor(s.db), migrationFiles, "migrations", s.logger)
	if err := manager.Run(ctx); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// MigrationStatus reports applied and pending schema migrations.
func (s *Storage) MigrationStatus(ctx context.Context) (migration.Status, error) {
	manager := migration.NewManager(migration.NewExecutor(s.db), migrationFiles, "migrations", s.logger)
	return manager.Status(ctx)
}

func (s *Storage) timestamp() string {
	return formatTime(s.now())
}

// timestampLayout keeps nanoseconds at a fixed width so that text comparison
// in SQL (ordering, CHECK constraints) matches time order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func formatOptionalTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse timestamp %q: %w", value, err)
	}
	return t.UTC(), nil
}

func parseOptionalTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	t, err := parseTime(value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func seconds(d time.Duration) int64 {
	return int64(d / time.Second)
}

// exec builds and executes a statement on the executor carried by ctx.
func (s *Storage) exec(ctx context.Context, builder sq.Sqlizer) (sql.Result, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: build query: %w", err)
	}
	res, err := s.executorFor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	return res, nil
}

// query builds and runs a select on the executor carried by ctx.
func (s *Storage) query(ctx context.Context, builder sq.Sqlizer) (*sql.Rows, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: build query: %w", err)
	}
	rows, err := s.executorFor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	return rows, nil
}

func (s *Storage) queryRow(ctx context.Context, builder sq.Sqlizer) (*sql.Row, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: build query: %w", err)
	}
	return s.executorFor(ctx).QueryRowContext(ctx, query, args...), nil
}

// expectAffected turns an update that touched no rows into ErrNotFound.
func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
