package repository

// Schema definitions for the Kestrel audit store.
// Compatible with both SQLite and PostgreSQL.

const schemaDatasets = `
CREATE TABLE IF NOT EXISTS datasets (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    record_count INTEGER NOT NULL DEFAULT 0,
    skipped_count INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);
`

const schemaAccounts = `
CREATE TABLE IF NOT EXISTS accounts (
    dataset_id TEXT NOT NULL,
    account_id TEXT NOT NULL,
    account_type TEXT NOT NULL,
    branch TEXT,
    customer_type TEXT,
    balance TEXT NOT NULL DEFAULT '0',
    kyc_status TEXT,
    account_status TEXT,
    last_transaction_date TIMESTAMP,
    email_attempt INTEGER NOT NULL DEFAULT 0,
    sms_attempt INTEGER NOT NULL DEFAULT 0,
    phone_attempt INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (dataset_id, account_id)
);

CREATE INDEX IF NOT EXISTS idx_accounts_dataset ON accounts(dataset_id);
CREATE INDEX IF NOT EXISTS idx_accounts_type ON accounts(dataset_id, account_type);
CREATE INDEX IF NOT EXISTS idx_accounts_status ON accounts(dataset_id, account_status);
`

// schemaRuns stores one row per classification run. The classified subset,
// summary and diagnostics are kept as JSON documents so a run can be
// reconstructed exactly as it was served.
const schemaRuns = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    dataset_id TEXT NOT NULL,
    policy TEXT NOT NULL,
    window_years REAL NOT NULL,
    thresholds TEXT NOT NULL,
    as_of TIMESTAMP NOT NULL,
    input_count INTEGER NOT NULL,
    matched_count INTEGER NOT NULL,
    accounts TEXT NOT NULL,
    summary TEXT NOT NULL,
    issues TEXT,
    metadata TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_dataset ON runs(dataset_id);
CREATE INDEX IF NOT EXISTS idx_runs_policy ON runs(policy);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
`

const schemaDormantFlags = `
CREATE TABLE IF NOT EXISTS dormant_flags (
    account_id TEXT PRIMARY KEY,
    flag_instruction TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL
);
`

const schemaDormantLedger = `
CREATE TABLE IF NOT EXISTS dormant_ledger (
    account_id TEXT PRIMARY KEY,
    classification TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL
);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaDatasets,
		schemaAccounts,
		schemaRuns,
		schemaDormantFlags,
		schemaDormantLedger,
	}
}
