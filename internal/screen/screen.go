// Package screen filters classified accounts with caller-supplied CEL
// expressions, typically to narrow an export to the rows a reviewer cares
// about, e.g. `risk_category == "HIGH" && years_inactive > 4.0`.
package screen

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Screener compiles and runs account filter expressions against a fixed
// CEL environment. It is safe for concurrent use.
type Screener struct {
	env *cel.Env
}

// NewScreener builds the CEL environment exposing the classified account
// fields as flat variables.
func NewScreener() (*Screener, error) {
	env, err := cel.NewEnv(
		cel.Variable("account_id", cel.StringType),
		cel.Variable("account_type", cel.StringType),
		cel.Variable("branch", cel.StringType),
		cel.Variable("customer_type", cel.StringType),
		cel.Variable("balance", cel.DoubleType),
		cel.Variable("kyc_status", cel.StringType),
		cel.Variable("account_status", cel.StringType),
		cel.Variable("days_inactive", cel.IntType),
		cel.Variable("years_inactive", cel.DoubleType),
		cel.Variable("is_inactive", cel.BoolType),
		cel.Variable("missing_date", cel.BoolType),
		cel.Variable("contact_attempts", cel.IntType),
		cel.Variable("maturity_status", cel.StringType),
		cel.Variable("recommended_action", cel.StringType),
		cel.Variable("risk_category", cel.StringType),
		cel.Variable("compliance_priority", cel.StringType),
		cel.Variable("contact_status", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &Screener{env: env}, nil
}

// Filter is one compiled account filter expression.
type Filter struct {
	program cel.Program
}

// Compile type-checks the expression and requires a boolean result.
func (s *Screener) Compile(expression string) (*Filter, error) {
	ast, issues := s.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile filter: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("filter expression must return bool, got %s", ast.OutputType())
	}

	program, err := s.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build filter program: %w", err)
	}
	return &Filter{program: program}, nil
}

// Match evaluates the filter against one classified account.
func (f *Filter) Match(a *domain.ClassifiedAccount) (bool, error) {
	out, _, err := f.program.Eval(activation(a))
	if err != nil {
		return false, fmt.Errorf("filter evaluation failed: %w", err)
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("filter returned %T, expected bool", out.Value())
	}
	return matched, nil
}

// Apply compiles the expression and returns the matching subset in input
// order. An empty expression selects everything.
func (s *Screener) Apply(expression string, accounts []domain.ClassifiedAccount) ([]domain.ClassifiedAccount, error) {
	if expression == "" {
		return accounts, nil
	}

	filter, err := s.Compile(expression)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ClassifiedAccount, 0, len(accounts))
	for i := range accounts {
		matched, err := filter.Match(&accounts[i])
		if err != nil {
			return nil, err
		}
		if matched {
			out = append(out, accounts[i])
		}
	}
	return out, nil
}

func activation(a *domain.ClassifiedAccount) map[string]any {
	balance, _ := a.Balance.Float64()
	return map[string]any{
		"account_id":          a.AccountID,
		"account_type":        a.AccountType,
		"branch":              a.Branch,
		"customer_type":       a.CustomerType,
		"balance":             balance,
		"kyc_status":          a.KYCStatus,
		"account_status":      a.AccountStatus,
		"days_inactive":       int64(a.DaysInactive),
		"years_inactive":      a.YearsInactive,
		"is_inactive":         a.IsInactive,
		"missing_date":        a.MissingDate,
		"contact_attempts":    int64(a.ContactAttempts()),
		"maturity_status":     string(a.MaturityStatus),
		"recommended_action":  string(a.RecommendedAction),
		"risk_category":       string(a.RiskCategory),
		"compliance_priority": string(a.CompliancePriority),
		"contact_status":      string(a.ContactStatus),
	}
}
