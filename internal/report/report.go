// Package report aggregates classified accounts into the summary views used
// by run responses and the regulator-facing exports.
package report

import (
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/shopspring/decimal"
)

// Summarize computes the aggregate view over a run's classified accounts.
// An empty input yields zero counts and zero balances.
func Summarize(accounts []domain.ClassifiedAccount) domain.Summary {
	s := domain.Summary{
		Total:           len(accounts),
		ByAccountType:   make(map[string]int),
		ByBranch:        make(map[string]int),
		ByCustomerType:  make(map[string]int),
		ByKYCStatus:     make(map[string]int),
		ByAction:        make(map[domain.Action]int),
		ByRisk:          make(map[domain.RiskCategory]int),
		ByPriority:      make(map[domain.Priority]int),
		ByContactStatus: make(map[domain.ContactStatus]int),
	}
	if len(accounts) == 0 {
		return s
	}

	s.MinBalance = accounts[0].Balance
	s.MaxBalance = accounts[0].Balance

	for i := range accounts {
		a := &accounts[i]

		s.ByAccountType[a.AccountType]++
		s.ByBranch[a.Branch]++
		s.ByCustomerType[a.CustomerType]++
		s.ByKYCStatus[a.KYCStatus]++
		s.ByAction[a.RecommendedAction]++
		s.ByRisk[a.RiskCategory]++
		s.ByPriority[a.CompliancePriority]++
		s.ByContactStatus[a.ContactStatus]++

		s.TotalBalance = s.TotalBalance.Add(a.Balance)
		if a.Balance.LessThan(s.MinBalance) {
			s.MinBalance = a.Balance
		}
		if a.Balance.GreaterThan(s.MaxBalance) {
			s.MaxBalance = a.Balance
		}
	}

	s.MeanBalance = s.TotalBalance.Div(decimal.NewFromInt(int64(len(accounts)))).Round(2)
	return s
}
