// Package domain defines the core interfaces and types for Kestrel.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountRecord is one normalized row of an uploaded account dataset.
// Records are immutable once parsed; every derived value lives on
// ClassifiedAccount.
type AccountRecord struct {
	AccountID     string          `json:"accountId" csv:"account_id"`
	AccountType   string          `json:"accountType" csv:"account_type"`
	Branch        string          `json:"branch" csv:"branch"`
	CustomerType  string          `json:"customerType" csv:"customer_type"`
	Balance       decimal.Decimal `json:"accountBalance" csv:"account_balance"`
	KYCStatus     string          `json:"kycStatus" csv:"kyc_status"`
	AccountStatus string          `json:"accountStatus" csv:"account_status"`

	// Nil means the account never had a customer-initiated transaction
	// (or the date could not be parsed; see loader diagnostics).
	LastTransactionDate *time.Time `json:"lastTransactionDate,omitempty" csv:"-"`

	EmailAttempt bool `json:"emailAttempt" csv:"-"`
	SMSAttempt   bool `json:"smsAttempt" csv:"-"`
	PhoneAttempt bool `json:"phoneAttempt" csv:"-"`
}

// ContactAttempts returns how many of the three contact channels were tried.
func (r *AccountRecord) ContactAttempts() int {
	n := 0
	if r.EmailAttempt {
		n++
	}
	if r.SMSAttempt {
		n++
	}
	if r.PhoneAttempt {
		n++
	}
	return n
}

// Account type names as they appear in regulatory datasets. Matching is
// case-insensitive and, for some policies, substring-based, so free text
// like "Safe Deposit Box" is tolerated.
const (
	AccountTypeSavings      = "Savings"
	AccountTypeCall         = "Call"
	AccountTypeCurrent      = "Current"
	AccountTypeSavingsGroup = "Savings/Call/Current"
	AccountTypeFixedDeposit = "Fixed Deposit"
	AccountTypeInvestment   = "Investment"
	AccountTypeSafeDeposit  = "Safe Deposit"
)

// KYC status values.
const (
	KYCValid   = "Valid"
	KYCExpired = "Expired"
)

// Account status values. Free text is tolerated; comparisons are
// case-insensitive.
const (
	AccountStatusActive  = "Active"
	AccountStatusDormant = "Dormant"
)

// MaturityStatus buckets years of inactivity into half-open ranges.
type MaturityStatus string

const (
	MaturityActive      MaturityStatus = "Active"
	MaturityApproaching MaturityStatus = "Approaching Inactivity"
	MaturityHighRisk    MaturityStatus = "High Risk"
	MaturityUnclaimed   MaturityStatus = "Unclaimed/Inactive"
)

// Action is the recommended compliance intervention tier.
type Action string

const (
	ActionMonitor  Action = "MONITOR"
	ActionNotify   Action = "NOTIFY"
	ActionFreeze   Action = "FREEZE"
	ActionEscalate Action = "ESCALATE"
)

// RiskCategory classifies an account by balance exposure.
type RiskCategory string

const (
	RiskLow    RiskCategory = "LOW"
	RiskMedium RiskCategory = "MEDIUM"
	RiskHigh   RiskCategory = "HIGH"
)

// Priority is the compliance processing priority derived from risk,
// action severity and KYC state.
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// ContactStatus summarizes how many contact channels were attempted.
type ContactStatus string

const (
	ContactNone    ContactStatus = "No Contact"
	ContactPartial ContactStatus = "Partial Contact"
	ContactFull    ContactStatus = "Full Contact"
)

// ClassifiedAccount is an AccountRecord enriched with the derived compliance
// fields for one classification run. It is recomputed from scratch every run
// and never mutated afterwards.
type ClassifiedAccount struct {
	AccountRecord

	DaysInactive  int     `json:"daysInactive"`
	YearsInactive float64 `json:"yearsInactive"`

	// DormantSince is LastTransactionDate plus the policy window.
	// Nil when the transaction date is absent.
	DormantSince *time.Time `json:"dormantSince,omitempty"`

	IsInactive bool `json:"isInactive"`

	// MissingDate marks records whose absent transaction date was
	// defaulted to inactive, so the fallback stays visible downstream.
	MissingDate bool `json:"missingDate,omitempty"`

	MaturityStatus     MaturityStatus `json:"maturityStatus"`
	RecommendedAction  Action         `json:"recommendedAction"`
	ContactStatus      ContactStatus  `json:"contactStatus"`
	RiskCategory       RiskCategory   `json:"riskCategory"`
	CompliancePriority Priority       `json:"compliancePriority"`
}

// IssueKind tags per-run diagnostics.
type IssueKind string

const (
	// IssueMalformedRecord marks a record that was skipped because a
	// required field could not be parsed.
	IssueMalformedRecord IssueKind = "malformed_record"

	// IssueMissingOptionalField marks a record that stayed in the batch
	// after an optional field resolved to its documented default.
	IssueMissingOptionalField IssueKind = "missing_optional_field"
)

// RecordIssue is one diagnostic entry. One bad row never discards a batch;
// it surfaces here instead.
type RecordIssue struct {
	Line      int       `json:"line,omitempty"`
	AccountID string    `json:"accountId,omitempty"`
	Kind      IssueKind `json:"kind"`
	Detail    string    `json:"detail"`
}
