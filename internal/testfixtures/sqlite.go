package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/event-scheduler/internal/persistence"
	"github.com/example/event-scheduler/internal/persistence/memory"
	"github.com/example/event-scheduler/internal/persistence/sqlite"
)

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewSQLiteStore opens a migrated database file in a temporary directory and
// closes it when the test ends.
func NewSQLiteStore(tb testing.TB) *sqlite.Storage {
	tb.Helper()

	ctx := context.Background()
	path := filepath.Join(tb.TempDir(), "scheduler.db")
	store, err := sqlite.Open(ctx, path, DiscardLogger())
	if err != nil {
		tb.Fatalf("open sqlite store: %v", err)
	}
	tb.Cleanup(func() {
		if err := store.Close(); err != nil {
			tb.Errorf("close sqlite store: %v", err)
		}
	})

	if err := store.Migrate(ctx); err != nil {
		tb.Fatalf("migrate sqlite store: %v", err)
	}
	return store
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore(tb testing.TB) *memory.Storage {
	tb.Helper()
	return memory.New()
}

// StoreFactory creates a fresh store for one test.
type StoreFactory func(tb testing.TB) persistence.Store

// StoreFactories lists every persistence backend by name.
func StoreFactories() map[string]StoreFactory {
	return map[string]StoreFactory{
		"memory": func(tb testing.TB) persistence.Store { return NewMemoryStore(tb) },
		"sqlite": func(tb testing.TB) persistence.Store { return NewSQLiteStore(tb) },
	}
}

// SeedFestival stores a fresh Festival in store.
func SeedFestival(tb testing.TB, store persistence.Store) Festival {
	tb.Helper()
	f := NewFestival()
	if err := f.Dataset.Seed(context.Background(), store); err != nil {
		tb.Fatalf("seed festival: %v", err)
	}
	return f
}
