package agents

import (
	"context"
	"strings"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Builtin agent names.
const (
	AgentContactAttempt = "contact-attempt"
	AgentFlagDormant    = "flag-dormant"
	AgentDormantLedger  = "dormant-ledger"
	AgentFreeze         = "freeze"
	AgentTransfer       = "cbuae-transfer"
)

// Status and instruction labels used in agent findings and audit rows.
const (
	statusPass     = "Pass"
	statusFail     = "Fail"
	statusFrozen   = "Frozen"
	statusEligible = "Eligible for Transfer"

	instructionApplyFlag = "Apply Dormancy Flag"
	classificationLedger = "Moved to Dormant Ledger"
)

func newReport(agent, datasetID string, processed int, now time.Time) *Report {
	return &Report{
		Agent:     agent,
		DatasetID: datasetID,
		Processed: processed,
		Timestamp: now,
	}
}

func isDormant(rec *domain.AccountRecord) bool {
	return strings.EqualFold(strings.TrimSpace(rec.AccountStatus), domain.AccountStatusDormant)
}

func kycExpired(rec *domain.AccountRecord) bool {
	return strings.EqualFold(strings.TrimSpace(rec.KYCStatus), domain.KYCExpired)
}

// BuiltinAgents returns the five standard compliance agents wired to the
// given audit repository and cutoff configuration.
func BuiltinAgents(repo domain.Repository, cfg domain.AgentConfig) []Agent {
	return []Agent{
		{
			Name:        AgentContactAttempt,
			Description: "Verifies that all three contact channels were attempted per account",
			Run: func(ctx context.Context, datasetID string, records []domain.AccountRecord, now time.Time) (*Report, error) {
				rep := newReport(AgentContactAttempt, datasetID, len(records), now)
				for i := range records {
					rec := &records[i]
					channels := make([]string, 0, 3)
					if rec.EmailAttempt {
						channels = append(channels, "Email")
					}
					if rec.SMSAttempt {
						channels = append(channels, "SMS")
					}
					if rec.PhoneAttempt {
						channels = append(channels, "Phone Call")
					}

					status := statusFail
					if len(channels) == 3 {
						status = statusPass
						rep.Actioned++
					}
					used := "None"
					if len(channels) > 0 {
						used = strings.Join(channels, ", ")
					}
					rep.Results = append(rep.Results, Result{
						AccountID:   rec.AccountID,
						Status:      status,
						Instruction: "Channels used: " + used,
					})
				}
				return rep, nil
			},
		},
		{
			Name:        AgentFlagDormant,
			Description: "Flags accounts marked dormant or missing a last transaction date",
			Run: func(ctx context.Context, datasetID string, records []domain.AccountRecord, now time.Time) (*Report, error) {
				rep := newReport(AgentFlagDormant, datasetID, len(records), now)
				for i := range records {
					rec := &records[i]
					// An absent transaction date is treated as dormant here,
					// matching the detection side's missing-date default.
					if !isDormant(rec) && rec.LastTransactionDate != nil {
						continue
					}
					if err := repo.SaveFlag(ctx, &domain.FlagEntry{
						AccountID:   rec.AccountID,
						Instruction: instructionApplyFlag,
						Timestamp:   now,
					}); err != nil {
						return nil, err
					}
					rep.Actioned++
					rep.Results = append(rep.Results, Result{
						AccountID:   rec.AccountID,
						Status:      domain.AccountStatusDormant,
						Instruction: instructionApplyFlag,
					})
				}
				return rep, nil
			},
		},
		{
			Name:        AgentDormantLedger,
			Description: "Moves dormant accounts to the internal dormant ledger",
			Run: func(ctx context.Context, datasetID string, records []domain.AccountRecord, now time.Time) (*Report, error) {
				rep := newReport(AgentDormantLedger, datasetID, len(records), now)
				for i := range records {
					rec := &records[i]
					if !isDormant(rec) {
						continue
					}
					if err := repo.SaveLedgerEntry(ctx, &domain.LedgerEntry{
						AccountID:      rec.AccountID,
						Classification: classificationLedger,
						Timestamp:      now,
					}); err != nil {
						return nil, err
					}
					rep.Actioned++
					rep.Results = append(rep.Results, Result{
						AccountID:   rec.AccountID,
						Status:      classificationLedger,
						Instruction: "Move to Internal Dormant Ledger",
					})
				}
				return rep, nil
			},
		},
		{
			Name:        AgentFreeze,
			Description: "Freezes dormant, KYC-expired accounts inactive since the freeze cutoff",
			Run: func(ctx context.Context, datasetID string, records []domain.AccountRecord, now time.Time) (*Report, error) {
				rep := newReport(AgentFreeze, datasetID, len(records), now)
				for i := range records {
					rec := &records[i]
					if !isDormant(rec) || !kycExpired(rec) {
						continue
					}
					if rec.LastTransactionDate == nil || !rec.LastTransactionDate.Before(cfg.FreezeCutoff) {
						continue
					}
					rep.Actioned++
					rep.Results = append(rep.Results, Result{
						AccountID: rec.AccountID,
						Status:    statusFrozen,
					})
				}
				return rep, nil
			},
		},
		{
			Name:        AgentTransfer,
			Description: "Marks accounts eligible for central-bank transfer past the transfer cutoff",
			Run: func(ctx context.Context, datasetID string, records []domain.AccountRecord, now time.Time) (*Report, error) {
				rep := newReport(AgentTransfer, datasetID, len(records), now)
				for i := range records {
					rec := &records[i]
					// Eligibility requires a known date on or before the
					// cutoff; an absent date never transfers funds out.
					if rec.LastTransactionDate == nil || rec.LastTransactionDate.After(cfg.TransferCutoff) {
						continue
					}
					rep.Actioned++
					rep.Results = append(rep.Results, Result{
						AccountID: rec.AccountID,
						Status:    statusEligible,
					})
				}
				return rep, nil
			},
		},
	}
}

// DefaultRegistry returns a registry preloaded with the builtin agents.
func DefaultRegistry(repo domain.Repository, cfg domain.AgentConfig) *Registry {
	r := NewRegistry()
	for _, a := range BuiltinAgents(repo, cfg) {
		// Builtins are well formed; Register only fails on empty names.
		_ = r.Register(a)
	}
	return r
}
