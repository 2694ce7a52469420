package dormancy

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/shopspring/decimal"
)

// EngineVersion is stamped into run metadata for audit trails.
const EngineVersion = "kestrel-1.0"

// Engine derives the compliance fields for batches of account records.
// All derivation is pure: a record's classification depends only on the
// record itself, the run's captured processing time, and the thresholds.
type Engine struct {
	windowYears float64
	maxWorkers  int
	highRisk    decimal.Decimal
	mediumRisk  decimal.Decimal
}

// NewEngine creates a classification engine from configuration, applying
// the documented defaults for any zero value.
func NewEngine(cfg domain.EngineConfig) *Engine {
	if cfg.WindowYears <= 0 {
		cfg.WindowYears = 3
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 32
	}
	if cfg.HighRiskBalance <= 0 {
		cfg.HighRiskBalance = 300000
	}
	if cfg.MediumRiskBalance <= 0 {
		cfg.MediumRiskBalance = 100000
	}
	return &Engine{
		windowYears: cfg.WindowYears,
		maxWorkers:  cfg.MaxWorkers,
		highRisk:    decimal.NewFromInt(cfg.HighRiskBalance),
		mediumRisk:  decimal.NewFromInt(cfg.MediumRiskBalance),
	}
}

// WindowYears returns the engine's default dormancy window.
func (e *Engine) WindowYears() float64 {
	return e.windowYears
}

// Classify enriches every record with its derived compliance fields.
// Thresholds are validated before any record is touched; now is captured by
// the caller once per run and held constant. Records are classified on a
// bounded worker pool since each derivation is independent.
func (e *Engine) Classify(ctx context.Context, records []domain.AccountRecord, now time.Time, th domain.Thresholds) ([]domain.ClassifiedAccount, error) {
	if err := th.Validate(); err != nil {
		return nil, err
	}

	results := make([]domain.ClassifiedAccount, len(records))

	var wg sync.WaitGroup
	sem := make(chan struct{}, e.maxWorkers)

	for i := range records {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			results[idx] = e.classifyRecord(&records[idx], now, th)
		}(i)
	}

	wg.Wait()

	return results, nil
}

// classifyRecord derives all compliance fields for a single record.
func (e *Engine) classifyRecord(rec *domain.AccountRecord, now time.Time, th domain.Thresholds) domain.ClassifiedAccount {
	ca := domain.ClassifiedAccount{AccountRecord: *rec}

	if rec.LastTransactionDate == nil {
		// Documented default: an account with no transaction history is
		// inactive, flagged so the fallback stays visible. Duration-based
		// fields stay at zero since there is no date to measure from.
		ca.MissingDate = true
		ca.IsInactive = true
	} else {
		days := int(now.Sub(*rec.LastTransactionDate).Hours() / 24)
		if days < 0 {
			// Date in the future; tolerate and clamp.
			days = 0
		}
		ca.DaysInactive = days
		ca.YearsInactive = float64(days) / yearsDivisor

		since := rec.LastTransactionDate.Add(windowDuration(e.windowYears))
		ca.DormantSince = &since

		ca.IsInactive = TimeInactive(rec, now, e.windowYears)
	}

	ca.MaturityStatus = MaturityFor(ca.YearsInactive)
	ca.RecommendedAction = ActionFor(ca.YearsInactive, th)
	ca.ContactStatus = ContactStatusFor(rec)
	ca.RiskCategory = e.riskFor(rec.Balance)
	ca.CompliancePriority = PriorityFor(ca.RiskCategory, ca.RecommendedAction, rec.KYCStatus)

	return ca
}

// MaturityFor buckets years of inactivity into half-open ranges: exactly
// 1.0 years is Approaching Inactivity, not Active.
func MaturityFor(years float64) domain.MaturityStatus {
	switch {
	case years < 1:
		return domain.MaturityActive
	case years < 2:
		return domain.MaturityApproaching
	case years < 3:
		return domain.MaturityHighRisk
	default:
		return domain.MaturityUnclaimed
	}
}

// ActionFor maps years of inactivity to the recommended action, most severe
// tier first. Comparisons are strictly greater-than: an account sitting
// exactly on a threshold falls to the next lower tier, unlike the inclusive
// maturity buckets.
func ActionFor(years float64, th domain.Thresholds) domain.Action {
	switch {
	case years > th.EscalateYears:
		return domain.ActionEscalate
	case years > th.FreezeYears:
		return domain.ActionFreeze
	case years > th.NotifyYears:
		return domain.ActionNotify
	default:
		return domain.ActionMonitor
	}
}

// ContactStatusFor summarizes the record's contact attempts.
func ContactStatusFor(rec *domain.AccountRecord) domain.ContactStatus {
	switch rec.ContactAttempts() {
	case 0:
		return domain.ContactNone
	case 3:
		return domain.ContactFull
	default:
		return domain.ContactPartial
	}
}

// riskFor categorizes balance exposure. Band edges are strict: a balance
// exactly on the high band is MEDIUM, exactly on the medium band is LOW.
func (e *Engine) riskFor(balance decimal.Decimal) domain.RiskCategory {
	if balance.GreaterThan(e.highRisk) {
		return domain.RiskHigh
	}
	if balance.GreaterThan(e.mediumRisk) {
		return domain.RiskMedium
	}
	return domain.RiskLow
}

var riskWeight = map[domain.RiskCategory]int{
	domain.RiskHigh:   3,
	domain.RiskMedium: 2,
	domain.RiskLow:    1,
}

var actionWeight = map[domain.Action]int{
	domain.ActionEscalate: 3,
	domain.ActionFreeze:   2,
	domain.ActionNotify:   1,
	domain.ActionMonitor:  0,
}

// PriorityFor combines risk, action severity and KYC state into the
// compliance priority. The weighted score ranges 1..8.
func PriorityFor(risk domain.RiskCategory, action domain.Action, kycStatus string) domain.Priority {
	score := riskWeight[risk] + actionWeight[action]
	if strings.EqualFold(strings.TrimSpace(kycStatus), domain.KYCExpired) {
		score += 2
	}

	switch {
	case score >= 6:
		return domain.PriorityCritical
	case score >= 4:
		return domain.PriorityHigh
	case score >= 2:
		return domain.PriorityMedium
	default:
		return domain.PriorityLow
	}
}
