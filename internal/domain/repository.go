package domain

import (
	"context"
	"time"
)

// Repository defines the interface for the passive audit store. The
// classification core never reads it mid-run; it is written after the fact
// so compliance reviews can reconstruct what happened.
type Repository interface {
	// Dataset operations
	SaveDataset(ctx context.Context, ds *Dataset) error
	GetDataset(ctx context.Context, datasetID string) (*Dataset, error)
	SaveAccounts(ctx context.Context, datasetID string, records []AccountRecord) error
	ListAccounts(ctx context.Context, datasetID string) ([]AccountRecord, error)

	// Classification run log
	SaveRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, datasetID string) ([]*Run, error)
	CountRuns(ctx context.Context) (int64, error)

	// Dormancy flag ledger (one row per account, last instruction wins)
	SaveFlag(ctx context.Context, entry *FlagEntry) error
	CountFlags(ctx context.Context) (int64, error)

	// Internal dormant ledger
	SaveLedgerEntry(ctx context.Context, entry *LedgerEntry) error
	CountLedgerEntries(ctx context.Context) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
