package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Run is the complete result of one classification batch: the policy that
// filtered the dataset, the classified subset, the aggregate summary, and
// the diagnostics collected on the way.
type Run struct {
	ID        string `json:"id"`
	DatasetID string `json:"datasetId"`
	Policy    string `json:"policy"`

	// WindowYears is the dormancy lookback window the policy was run with.
	WindowYears float64    `json:"windowYears"`
	Thresholds  Thresholds `json:"thresholds"`

	// AsOf is the processing timestamp captured once at the start of the
	// run. Every per-record derivation uses this value, never the wall
	// clock, so a run is reproducible.
	AsOf time.Time `json:"asOf"`

	InputCount   int `json:"inputCount"`
	MatchedCount int `json:"matchedCount"`

	Accounts []ClassifiedAccount `json:"accounts"`
	Summary  Summary             `json:"summary"`
	Issues   []RecordIssue       `json:"issues,omitempty"`

	Metadata  RunMetadata `json:"metadata"`
	CreatedAt time.Time   `json:"createdAt"`
}

// RunMetadata contains processing information for audit trails.
type RunMetadata struct {
	TraceID       string `json:"traceId"`
	FilterMs      int64  `json:"filterMs"`
	ClassifyMs    int64  `json:"classifyMs"`
	TotalMs       int64  `json:"totalMs"`
	EngineVersion string `json:"engineVersion"`
}

// Summary is the aggregate view over one run's classified accounts: counts
// keyed by each categorical dimension plus balance statistics. A summary of
// an empty run has zero counts and zero balances, never an error.
type Summary struct {
	Total int `json:"total"`

	ByAccountType   map[string]int        `json:"byAccountType"`
	ByBranch        map[string]int        `json:"byBranch"`
	ByCustomerType  map[string]int        `json:"byCustomerType"`
	ByKYCStatus     map[string]int        `json:"byKycStatus"`
	ByAction        map[Action]int        `json:"byAction"`
	ByRisk          map[RiskCategory]int  `json:"byRisk"`
	ByPriority      map[Priority]int      `json:"byPriority"`
	ByContactStatus map[ContactStatus]int `json:"byContactStatus"`

	TotalBalance decimal.Decimal `json:"totalBalance"`
	MeanBalance  decimal.Decimal `json:"meanBalance"`
	MinBalance   decimal.Decimal `json:"minBalance"`
	MaxBalance   decimal.Decimal `json:"maxBalance"`
}

// Dataset describes one uploaded account dataset.
type Dataset struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	RecordCount  int       `json:"recordCount"`
	SkippedCount int       `json:"skippedCount"`
	CreatedAt    time.Time `json:"createdAt"`
}

// FlagEntry is a passive audit row written when an account is flagged
// dormant.
type FlagEntry struct {
	AccountID   string    `json:"accountId"`
	Instruction string    `json:"instruction"`
	Timestamp   time.Time `json:"timestamp"`
}

// LedgerEntry is a passive audit row written when an account is moved to the
// internal dormant ledger.
type LedgerEntry struct {
	AccountID      string    `json:"accountId"`
	Classification string    `json:"classification"`
	Timestamp      time.Time `json:"timestamp"`
}
