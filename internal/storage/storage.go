package storage

import (
	"context"

	"github.com/steveyegge/swarm/internal/events"
	"github.com/steveyegge/swarm/internal/storage/sqlite"
	"github.com/steveyegge/swarm/internal/types"
)

// DefaultPath is where run history lives relative to the working directory
const DefaultPath = ".swarm/history.db"

// Store defines the interface for run history backends
type Store interface {
	// Runs
	CreateRun(ctx context.Context, run *types.RunRecord) error
	CompleteRun(ctx context.Context, run *types.RunRecord) error
	GetRun(ctx context.Context, id string) (*types.RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]*types.RunRecord, error)
	PruneRuns(ctx context.Context, keep int) (int, error)

	// Per-file outcomes
	RecordFile(ctx context.Context, runID string, rec *types.FileRecord) error
	GetFileRecords(ctx context.Context, runID string) ([]*types.FileRecord, error)

	// Event log
	StoreEvent(ctx context.Context, event *events.Event) error
	GetEvents(ctx context.Context, runID string, limit int) ([]*events.Event, error)

	// Lifecycle
	Close() error
}

// Config holds database configuration
type Config struct {
	// Path is the SQLite database file path
	// Default: ".swarm/history.db"
	// Special value ":memory:" creates an in-memory database (useful for tests)
	Path string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Path: DefaultPath,
	}
}

// NewStore opens the SQLite run history
func NewStore(ctx context.Context, cfg *Config) (Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}

	return sqlite.New(ctx, cfg.Path)
}
