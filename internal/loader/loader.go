// Package loader reads regulatory account datasets from CSV and writes
// classified results back out. Bank export headers vary in spelling and
// casing, so headers are normalized to canonical names before decoding.
// A bad row never aborts a batch; it is skipped and reported.
package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// csvRow is the raw decoded shape of one dataset row. Everything is a string
// so that conversion failures surface as per-row diagnostics instead of
// aborting the decode.
type csvRow struct {
	AccountID     string `csv:"account_id"`
	AccountType   string `csv:"account_type"`
	Branch        string `csv:"branch"`
	CustomerType  string `csv:"customer_type"`
	Balance       string `csv:"account_balance"`
	KYCStatus     string `csv:"kyc_status"`
	AccountStatus string `csv:"account_status"`
	LastTxnDate   string `csv:"last_transaction_date"`
	EmailAttempt  string `csv:"email_contact_attempt"`
	SMSAttempt    string `csv:"sms_contact_attempt"`
	PhoneAttempt  string `csv:"phone_call_attempt"`
}

// canonicalHeaders maps squashed header spellings (lowercased, spaces and
// underscores removed) to the canonical column names in csvRow.
var canonicalHeaders = map[string]string{
	"accountid":           "account_id",
	"accountnumber":       "account_id",
	"accounttype":         "account_type",
	"branch":              "branch",
	"branchname":          "branch",
	"customertype":        "customer_type",
	"accountbalance":      "account_balance",
	"balance":             "account_balance",
	"kycstatus":           "kyc_status",
	"accountstatus":       "account_status",
	"status":              "account_status",
	"lasttransactiondate": "last_transaction_date",
	"lasttxndate":         "last_transaction_date",
	"emailcontactattempt": "email_contact_attempt",
	"emailattempt":        "email_contact_attempt",
	"smscontactattempt":   "sms_contact_attempt",
	"smsattempt":          "sms_contact_attempt",
	"phonecallattempt":    "phone_call_attempt",
	"phoneattempt":        "phone_call_attempt",
}

// dateLayouts are tried in order; ISO first, then the spellings seen in
// real bank exports.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
	"02-01-2006",
	"02/01/2006",
}

// normalizingReader rewrites the header row to canonical column names and
// passes data rows through untouched.
type normalizingReader struct {
	inner      *csv.Reader
	headerDone bool
}

func (n *normalizingReader) Read() ([]string, error) {
	rec, err := n.inner.Read()
	if err != nil {
		return rec, err
	}
	if !n.headerDone {
		n.headerDone = true
		for i, h := range rec {
			squashed := strings.ToLower(strings.TrimSpace(h))
			squashed = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(squashed)
			if canonical, ok := canonicalHeaders[squashed]; ok {
				rec[i] = canonical
			} else {
				rec[i] = squashed
			}
		}
	}
	return rec, nil
}

func (n *normalizingReader) ReadAll() ([][]string, error) {
	var out [][]string
	for {
		rec, err := n.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}

// Result is the outcome of loading one dataset: the usable records plus the
// diagnostics for rows that were skipped or partially defaulted.
type Result struct {
	Records []domain.AccountRecord
	Issues  []domain.RecordIssue
	Skipped int
}

// ReadAccounts decodes a dataset CSV. Rows with no account ID, an
// unparseable balance or a duplicate account ID are skipped; an
// unparseable or absent transaction date keeps the row with the date
// left unset. All cases are reported as issues with their one-based
// source line.
func ReadAccounts(r io.Reader) (*Result, error) {
	inner := csv.NewReader(r)
	inner.TrimLeadingSpace = true

	var rows []*csvRow
	if err := gocsv.UnmarshalCSV(&normalizingReader{inner: inner}, &rows); err != nil {
		return nil, fmt.Errorf("decode dataset csv: %w", err)
	}

	res := &Result{}
	seen := make(map[string]int, len(rows))
	for i, row := range rows {
		line := i + 2 // one-based, after the header row

		rec, issues, ok := convertRow(row, line)
		res.Issues = append(res.Issues, issues...)
		if !ok {
			res.Skipped++
			continue
		}
		// Account IDs are unique within a dataset. The first occurrence
		// wins; later duplicates are skipped and reported.
		if first, dup := seen[rec.AccountID]; dup {
			res.Issues = append(res.Issues, domain.RecordIssue{
				Line:      line,
				AccountID: rec.AccountID,
				Kind:      domain.IssueMalformedRecord,
				Detail:    fmt.Sprintf("duplicate account id, first seen on line %d", first),
			})
			res.Skipped++
			continue
		}
		seen[rec.AccountID] = line
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

func convertRow(row *csvRow, line int) (domain.AccountRecord, []domain.RecordIssue, bool) {
	var issues []domain.RecordIssue

	id := strings.TrimSpace(row.AccountID)
	if id == "" {
		issues = append(issues, domain.RecordIssue{
			Line:   line,
			Kind:   domain.IssueMalformedRecord,
			Detail: "account id is empty",
		})
		return domain.AccountRecord{}, issues, false
	}

	balance, err := parseBalance(row.Balance)
	if err != nil {
		issues = append(issues, domain.RecordIssue{
			Line:      line,
			AccountID: id,
			Kind:      domain.IssueMalformedRecord,
			Detail:    fmt.Sprintf("unparseable balance %q", row.Balance),
		})
		return domain.AccountRecord{}, issues, false
	}

	rec := domain.AccountRecord{
		AccountID:     id,
		AccountType:   strings.TrimSpace(row.AccountType),
		Branch:        strings.TrimSpace(row.Branch),
		CustomerType:  strings.TrimSpace(row.CustomerType),
		Balance:       balance,
		KYCStatus:     strings.TrimSpace(row.KYCStatus),
		AccountStatus: strings.TrimSpace(row.AccountStatus),
		EmailAttempt:  parseFlag(row.EmailAttempt),
		SMSAttempt:    parseFlag(row.SMSAttempt),
		PhoneAttempt:  parseFlag(row.PhoneAttempt),
	}

	if raw := strings.TrimSpace(row.LastTxnDate); raw != "" {
		if ts, ok := parseDate(raw); ok {
			rec.LastTransactionDate = &ts
		} else {
			issues = append(issues, domain.RecordIssue{
				Line:      line,
				AccountID: id,
				Kind:      domain.IssueMissingOptionalField,
				Detail:    fmt.Sprintf("unparseable transaction date %q, treated as absent", raw),
			})
		}
	} else {
		issues = append(issues, domain.RecordIssue{
			Line:      line,
			AccountID: id,
			Kind:      domain.IssueMissingOptionalField,
			Detail:    "last transaction date absent",
		})
	}

	return rec, issues, true
}

func parseBalance(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, nil
	}
	// Bank exports often thousand-separate with commas.
	s = strings.ReplaceAll(s, ",", "")
	return decimal.NewFromString(s)
}

func parseDate(raw string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

func parseFlag(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "y", "true", "1":
		return true
	default:
		return false
	}
}
