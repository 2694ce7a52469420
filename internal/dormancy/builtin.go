package dormancy

import (
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Builtin policy names.
const (
	PolicySafeDeposit  = "safe-deposit"
	PolicyInvestment   = "investment"
	PolicyFixedDeposit = "fixed-deposit"
	PolicyGeneral      = "general-inactivity"
	PolicyUnreachable  = "unreachable"
)

// generalAccountTypes are the account types covered by the general
// inactivity policy. Some datasets carry the combined spelling as a single
// type value.
var generalAccountTypes = []string{
	domain.AccountTypeSavings,
	domain.AccountTypeCall,
	domain.AccountTypeCurrent,
	domain.AccountTypeSavingsGroup,
}

// BuiltinPolicies returns the five regulatory dormancy detection policies.
func BuiltinPolicies() []Policy {
	return []Policy{
		{
			Name:        PolicySafeDeposit,
			Description: "Safe deposit boxes inactive past the window with no contact attempts",
			Match: func(rec *domain.AccountRecord, now time.Time, windowYears float64) bool {
				return MatchesAccountType(rec, []string{domain.AccountTypeSafeDeposit}, MatchContains) &&
					TimeInactive(rec, now, windowYears) &&
					NoContactAttempts(rec)
			},
		},
		{
			Name:        PolicyInvestment,
			Description: "Investment accounts inactive past the window with no contact attempts",
			Match: func(rec *domain.AccountRecord, now time.Time, windowYears float64) bool {
				return MatchesAccountType(rec, []string{domain.AccountTypeInvestment}, MatchContains) &&
					TimeInactive(rec, now, windowYears) &&
					NoContactAttempts(rec)
			},
		},
		{
			Name:        PolicyFixedDeposit,
			Description: "Fixed deposits unclaimed or unrenewed past the window",
			Match: func(rec *domain.AccountRecord, now time.Time, windowYears float64) bool {
				return MatchesAccountType(rec, []string{domain.AccountTypeFixedDeposit}, MatchExact) &&
					TimeInactive(rec, now, windowYears)
			},
		},
		{
			Name:        PolicyGeneral,
			Description: "Savings, call and current accounts inactive past the window",
			Match: func(rec *domain.AccountRecord, now time.Time, windowYears float64) bool {
				return MatchesAccountType(rec, generalAccountTypes, MatchExact) &&
					TimeInactive(rec, now, windowYears)
			},
		},
		{
			Name:        PolicyUnreachable,
			Description: "Dormant accounts with no contact attempts on any channel",
			Match: func(rec *domain.AccountRecord, now time.Time, windowYears float64) bool {
				return NoContactAttempts(rec) &&
					HasStatus(rec, domain.AccountStatusDormant)
			},
		},
	}
}

// DefaultRegistry returns a registry preloaded with the builtin policies.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, p := range BuiltinPolicies() {
		// Builtin policies are well-formed; Register cannot fail here.
		_ = r.Register(p)
	}
	return r
}
