package screen

import (
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/shopspring/decimal"
)

func testAccounts() []domain.ClassifiedAccount {
	return []domain.ClassifiedAccount{
		{
			AccountRecord: domain.AccountRecord{
				AccountID:   "ACC001",
				AccountType: "Savings",
				Branch:      "Dubai",
				Balance:     decimal.NewFromInt(500000),
				KYCStatus:   domain.KYCExpired,
			},
			YearsInactive:      4.5,
			IsInactive:         true,
			RiskCategory:       domain.RiskHigh,
			RecommendedAction:  domain.ActionFreeze,
			CompliancePriority: domain.PriorityCritical,
			ContactStatus:      domain.ContactNone,
		},
		{
			AccountRecord: domain.AccountRecord{
				AccountID:   "ACC002",
				AccountType: "Current",
				Branch:      "Abu Dhabi",
				Balance:     decimal.NewFromInt(20000),
				KYCStatus:   domain.KYCValid,
			},
			YearsInactive:      1.2,
			RiskCategory:       domain.RiskLow,
			RecommendedAction:  domain.ActionMonitor,
			CompliancePriority: domain.PriorityLow,
			ContactStatus:      domain.ContactFull,
		},
		{
			AccountRecord: domain.AccountRecord{
				AccountID:   "ACC003",
				AccountType: "Investment",
				Branch:      "Dubai",
				Balance:     decimal.NewFromInt(150000),
				KYCStatus:   domain.KYCValid,
			},
			YearsInactive:      3.1,
			IsInactive:         true,
			MissingDate:        true,
			RiskCategory:       domain.RiskMedium,
			RecommendedAction:  domain.ActionNotify,
			CompliancePriority: domain.PriorityMedium,
			ContactStatus:      domain.ContactPartial,
		},
	}
}

func ids(accounts []domain.ClassifiedAccount) []string {
	out := make([]string, len(accounts))
	for i, a := range accounts {
		out[i] = a.AccountID
	}
	return out
}

func TestApplyFilters(t *testing.T) {
	s, err := NewScreener()
	if err != nil {
		t.Fatalf("failed to create screener: %v", err)
	}

	tests := []struct {
		name string
		expr string
		want []string
	}{
		{"high risk", `risk_category == "HIGH"`, []string{"ACC001"}},
		{"long inactive", `years_inactive > 3.0`, []string{"ACC001", "ACC003"}},
		{"compound", `risk_category == "HIGH" && years_inactive > 4.0`, []string{"ACC001"}},
		{"balance band", `balance >= 100000.0 && balance <= 200000.0`, []string{"ACC003"}},
		{"branch", `branch == "Dubai"`, []string{"ACC001", "ACC003"}},
		{"kyc and action", `kyc_status == "Expired" || recommended_action == "NOTIFY"`, []string{"ACC001", "ACC003"}},
		{"missing date", `missing_date`, []string{"ACC003"}},
		{"no matches", `balance > 1000000.0`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Apply(tt.expr, testAccounts())
			if err != nil {
				t.Fatalf("apply failed: %v", err)
			}
			gotIDs := ids(got)
			if len(gotIDs) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, gotIDs)
			}
			for i := range tt.want {
				if gotIDs[i] != tt.want[i] {
					t.Errorf("expected %v, got %v", tt.want, gotIDs)
				}
			}
		})
	}
}

func TestApplyEmptyExpressionSelectsAll(t *testing.T) {
	s, err := NewScreener()
	if err != nil {
		t.Fatalf("failed to create screener: %v", err)
	}

	got, err := s.Apply("", testAccounts())
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("expected all 3 accounts, got %d", len(got))
	}
}

func TestCompileRejectsBadExpressions(t *testing.T) {
	s, err := NewScreener()
	if err != nil {
		t.Fatalf("failed to create screener: %v", err)
	}

	for _, expr := range []string{
		`nonexistent_field == "x"`, // unknown variable
		`balance +`,                // syntax error
		`years_inactive`,           // not a bool
		`balance > "high"`,         // type mismatch
	} {
		if _, err := s.Compile(expr); err == nil {
			t.Errorf("expected compile error for %q", expr)
		}
	}
}
