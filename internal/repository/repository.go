// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/opensource-finance/kestrel/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveDataset stores a dataset descriptor.
func (r *SQLRepository) SaveDataset(ctx context.Context, ds *domain.Dataset) error {
	if ds.ID == "" {
		return fmt.Errorf("%w: dataset id is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO datasets (id, name, record_count, skipped_count, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		ds.ID, ds.Name, ds.RecordCount, ds.SkippedCount, ds.CreatedAt,
	)
	return err
}

// GetDataset retrieves a dataset descriptor by ID.
func (r *SQLRepository) GetDataset(ctx context.Context, datasetID string) (*domain.Dataset, error) {
	if datasetID == "" {
		return nil, fmt.Errorf("%w: dataset id is required", ErrInvalidInput)
	}

	query := `
		SELECT id, name, record_count, skipped_count, created_at
		FROM datasets
		WHERE id = ?
	`

	var ds domain.Dataset
	err := r.db.QueryRowContext(ctx, r.rebind(query), datasetID).Scan(
		&ds.ID, &ds.Name, &ds.RecordCount, &ds.SkippedCount, &ds.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &ds, nil
}

// SaveAccounts stores a dataset's account records in one transaction.
// Balances are stored as exact decimal strings, never floats.
func (r *SQLRepository) SaveAccounts(ctx context.Context, datasetID string, records []domain.AccountRecord) error {
	if datasetID == "" {
		return fmt.Errorf("%w: dataset id is required", ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO accounts (
			dataset_id, account_id, account_type, branch, customer_type,
			balance, kyc_status, account_status, last_transaction_date,
			email_attempt, sms_attempt, phone_attempt
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	stmt, err := tx.PrepareContext(ctx, r.rebind(query))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range records {
		rec := &records[i]

		var lastTxn sql.NullTime
		if rec.LastTransactionDate != nil {
			lastTxn = sql.NullTime{Time: *rec.LastTransactionDate, Valid: true}
		}

		if _, err := stmt.ExecContext(ctx,
			datasetID, rec.AccountID, rec.AccountType, rec.Branch, rec.CustomerType,
			rec.Balance.String(), rec.KYCStatus, rec.AccountStatus, lastTxn,
			boolToInt(rec.EmailAttempt), boolToInt(rec.SMSAttempt), boolToInt(rec.PhoneAttempt),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListAccounts retrieves all account records for a dataset.
func (r *SQLRepository) ListAccounts(ctx context.Context, datasetID string) ([]domain.AccountRecord, error) {
	if datasetID == "" {
		return nil, fmt.Errorf("%w: dataset id is required", ErrInvalidInput)
	}

	query := `
		SELECT account_id, account_type, branch, customer_type,
			   balance, kyc_status, account_status, last_transaction_date,
			   email_attempt, sms_attempt, phone_attempt
		FROM accounts
		WHERE dataset_id = ?
		ORDER BY account_id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), datasetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.AccountRecord
	for rows.Next() {
		var rec domain.AccountRecord
		var balance string
		var lastTxn sql.NullTime
		var email, sms, phone int

		if err := rows.Scan(
			&rec.AccountID, &rec.AccountType, &rec.Branch, &rec.CustomerType,
			&balance, &rec.KYCStatus, &rec.AccountStatus, &lastTxn,
			&email, &sms, &phone,
		); err != nil {
			return nil, err
		}

		rec.Balance, err = decimal.NewFromString(balance)
		if err != nil {
			return nil, fmt.Errorf("failed to parse stored balance for %s: %w", rec.AccountID, err)
		}
		if lastTxn.Valid {
			t := lastTxn.Time.UTC()
			rec.LastTransactionDate = &t
		}
		rec.EmailAttempt = email == 1
		rec.SMSAttempt = sms == 1
		rec.PhoneAttempt = phone == 1

		records = append(records, rec)
	}

	return records, rows.Err()
}

// SaveRun stores a classification run with its full result document.
func (r *SQLRepository) SaveRun(ctx context.Context, run *domain.Run) error {
	if run.ID == "" {
		return fmt.Errorf("%w: run id is required", ErrInvalidInput)
	}

	thresholds, _ := json.Marshal(run.Thresholds)
	accounts, _ := json.Marshal(run.Accounts)
	summary, _ := json.Marshal(run.Summary)
	issues, _ := json.Marshal(run.Issues)
	metadata, _ := json.Marshal(run.Metadata)

	query := `
		INSERT INTO runs (
			id, dataset_id, policy, window_years, thresholds, as_of,
			input_count, matched_count, accounts, summary, issues,
			metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		run.ID, run.DatasetID, run.Policy, run.WindowYears,
		string(thresholds), run.AsOf,
		run.InputCount, run.MatchedCount,
		string(accounts), string(summary), string(issues),
		string(metadata), run.CreatedAt,
	)
	return err
}

// GetRun retrieves a classification run by ID.
func (r *SQLRepository) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	if runID == "" {
		return nil, fmt.Errorf("%w: run id is required", ErrInvalidInput)
	}

	query := `
		SELECT id, dataset_id, policy, window_years, thresholds, as_of,
			   input_count, matched_count, accounts, summary, issues,
			   metadata, created_at
		FROM runs
		WHERE id = ?
	`

	run, err := scanRun(r.db.QueryRowContext(ctx, r.rebind(query), runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

// ListRuns retrieves all runs for a dataset, newest first.
func (r *SQLRepository) ListRuns(ctx context.Context, datasetID string) ([]*domain.Run, error) {
	if datasetID == "" {
		return nil, fmt.Errorf("%w: dataset id is required", ErrInvalidInput)
	}

	query := `
		SELECT id, dataset_id, policy, window_years, thresholds, as_of,
			   input_count, matched_count, accounts, summary, issues,
			   metadata, created_at
		FROM runs
		WHERE dataset_id = ?
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), datasetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// CountRuns returns the total number of stored runs.
func (r *SQLRepository) CountRuns(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n)
	return n, err
}

// SaveFlag upserts a dormancy flag audit row; the last instruction per
// account wins.
func (r *SQLRepository) SaveFlag(ctx context.Context, entry *domain.FlagEntry) error {
	if entry.AccountID == "" {
		return fmt.Errorf("%w: account id is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO dormant_flags (account_id, flag_instruction, timestamp)
		VALUES (?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			flag_instruction = excluded.flag_instruction,
			timestamp = excluded.timestamp
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		entry.AccountID, entry.Instruction, entry.Timestamp,
	)
	return err
}

// CountFlags returns the number of flagged accounts.
func (r *SQLRepository) CountFlags(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dormant_flags`).Scan(&n)
	return n, err
}

// SaveLedgerEntry upserts a dormant ledger audit row.
func (r *SQLRepository) SaveLedgerEntry(ctx context.Context, entry *domain.LedgerEntry) error {
	if entry.AccountID == "" {
		return fmt.Errorf("%w: account id is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO dormant_ledger (account_id, classification, timestamp)
		VALUES (?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			classification = excluded.classification,
			timestamp = excluded.timestamp
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		entry.AccountID, entry.Classification, entry.Timestamp,
	)
	return err
}

// CountLedgerEntries returns the number of ledger rows.
func (r *SQLRepository) CountLedgerEntries(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dormant_ledger`).Scan(&n)
	return n, err
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// scanner abstracts sql.Row and sql.Rows for scanRun.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*domain.Run, error) {
	var run domain.Run
	var thresholds, accounts, summary, issues, metadata string

	if err := s.Scan(
		&run.ID, &run.DatasetID, &run.Policy, &run.WindowYears,
		&thresholds, &run.AsOf,
		&run.InputCount, &run.MatchedCount,
		&accounts, &summary, &issues,
		&metadata, &run.CreatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(thresholds), &run.Thresholds); err != nil {
		return nil, fmt.Errorf("failed to parse run thresholds: %w", err)
	}
	if err := json.Unmarshal([]byte(accounts), &run.Accounts); err != nil {
		return nil, fmt.Errorf("failed to parse run accounts: %w", err)
	}
	if err := json.Unmarshal([]byte(summary), &run.Summary); err != nil {
		return nil, fmt.Errorf("failed to parse run summary: %w", err)
	}
	if issues != "" && issues != "null" {
		json.Unmarshal([]byte(issues), &run.Issues)
	}
	json.Unmarshal([]byte(metadata), &run.Metadata)

	run.AsOf = run.AsOf.UTC()
	run.CreatedAt = run.CreatedAt.UTC()
	return &run, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
