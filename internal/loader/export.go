package loader

import (
	"fmt"
	"io"
	"strconv"

	"github.com/gocarina/gocsv"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// exportRow is the flat CSV shape of one classified account. Derived fields
// are rendered as strings so the output round-trips through spreadsheet
// tools without type surprises.
type exportRow struct {
	AccountID     string `csv:"account_id"`
	AccountType   string `csv:"account_type"`
	Branch        string `csv:"branch"`
	CustomerType  string `csv:"customer_type"`
	Balance       string `csv:"account_balance"`
	KYCStatus     string `csv:"kyc_status"`
	AccountStatus string `csv:"account_status"`
	LastTxnDate   string `csv:"last_transaction_date"`

	DaysInactive  int    `csv:"days_inactive"`
	YearsInactive string `csv:"years_inactive"`
	DormantSince  string `csv:"dormant_since"`

	MaturityStatus     string `csv:"maturity_status"`
	RecommendedAction  string `csv:"recommended_action"`
	RiskCategory       string `csv:"risk_category"`
	CompliancePriority string `csv:"compliance_priority"`
	ContactStatus      string `csv:"contact_status"`
}

// WriteAccounts renders classified accounts as CSV in a stable column order.
func WriteAccounts(w io.Writer, accounts []domain.ClassifiedAccount) error {
	rows := make([]exportRow, 0, len(accounts))
	for i := range accounts {
		a := &accounts[i]
		row := exportRow{
			AccountID:          a.AccountID,
			AccountType:        a.AccountType,
			Branch:             a.Branch,
			CustomerType:       a.CustomerType,
			Balance:            a.Balance.StringFixed(2),
			KYCStatus:          a.KYCStatus,
			AccountStatus:      a.AccountStatus,
			DaysInactive:       a.DaysInactive,
			YearsInactive:      strconv.FormatFloat(a.YearsInactive, 'f', 2, 64),
			MaturityStatus:     string(a.MaturityStatus),
			RecommendedAction:  string(a.RecommendedAction),
			RiskCategory:       string(a.RiskCategory),
			CompliancePriority: string(a.CompliancePriority),
			ContactStatus:      string(a.ContactStatus),
		}
		if a.LastTransactionDate != nil {
			row.LastTxnDate = a.LastTransactionDate.Format("2006-01-02")
		}
		if a.DormantSince != nil {
			row.DormantSince = a.DormantSince.Format("2006-01-02")
		}
		rows = append(rows, row)
	}

	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("encode dataset csv: %w", err)
	}
	return nil
}
