package agents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/shopspring/decimal"
)

// memRepo is an in-memory audit store for agent tests.
type memRepo struct {
	domain.Repository

	flags  []domain.FlagEntry
	ledger []domain.LedgerEntry
}

func (m *memRepo) SaveFlag(_ context.Context, e *domain.FlagEntry) error {
	m.flags = append(m.flags, *e)
	return nil
}

func (m *memRepo) SaveLedgerEntry(_ context.Context, e *domain.LedgerEntry) error {
	m.ledger = append(m.ledger, *e)
	return nil
}

func datePtr(t time.Time) *time.Time { return &t }

func fixtureRecords() []domain.AccountRecord {
	old := time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC)
	mid := time.Date(2021, 3, 15, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)

	return []domain.AccountRecord{
		{
			// Dormant, expired KYC, pre-2020 transaction: hits every agent.
			AccountID:           "ACC001",
			AccountType:         "Savings",
			AccountStatus:       domain.AccountStatusDormant,
			KYCStatus:           domain.KYCExpired,
			Balance:             decimal.NewFromInt(50000),
			LastTransactionDate: datePtr(old),
			EmailAttempt:        true,
			SMSAttempt:          true,
			PhoneAttempt:        true,
		},
		{
			// Dormant but transacted after both cutoffs.
			AccountID:           "ACC002",
			AccountType:         "Current",
			AccountStatus:       domain.AccountStatusDormant,
			KYCStatus:           domain.KYCValid,
			LastTransactionDate: datePtr(recent),
			EmailAttempt:        true,
		},
		{
			// Active with no transaction date on record.
			AccountID:   "ACC003",
			AccountType: "Call",
			AccountStatus: domain.AccountStatusActive,
			KYCStatus:     domain.KYCValid,
		},
		{
			// Active, mid-period transaction, partial contact.
			AccountID:           "ACC004",
			AccountType:         "Savings",
			AccountStatus:       domain.AccountStatusActive,
			KYCStatus:           domain.KYCExpired,
			LastTransactionDate: datePtr(mid),
			SMSAttempt:          true,
			PhoneAttempt:        true,
		},
	}
}

func testRegistry(t *testing.T) (*Registry, *memRepo) {
	t.Helper()
	repo := &memRepo{}
	return DefaultRegistry(repo, domain.DefaultConfig().Agents), repo
}

func TestBuiltinAgentsRegistered(t *testing.T) {
	reg, _ := testRegistry(t)
	if reg.Count() != 5 {
		t.Fatalf("expected 5 builtin agents, got %d", reg.Count())
	}
	for _, name := range []string{AgentContactAttempt, AgentFlagDormant, AgentDormantLedger, AgentFreeze, AgentTransfer} {
		if _, ok := reg.Get(name); !ok {
			t.Errorf("agent %s not registered", name)
		}
	}
}

func TestContactAttemptAgent(t *testing.T) {
	reg, _ := testRegistry(t)
	now := time.Now().UTC()

	rep, err := reg.Execute(context.Background(), AgentContactAttempt, "ds1", fixtureRecords(), now)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	if rep.Processed != 4 {
		t.Errorf("expected 4 processed, got %d", rep.Processed)
	}
	if rep.Actioned != 1 {
		t.Errorf("expected 1 pass, got %d", rep.Actioned)
	}
	if len(rep.Results) != 4 {
		t.Fatalf("contact agent reports every account, got %d results", len(rep.Results))
	}

	byID := map[string]Result{}
	for _, r := range rep.Results {
		byID[r.AccountID] = r
	}
	if byID["ACC001"].Status != "Pass" {
		t.Errorf("ACC001 attempted all channels, got %s", byID["ACC001"].Status)
	}
	if byID["ACC003"].Status != "Fail" {
		t.Errorf("ACC003 attempted no channels, got %s", byID["ACC003"].Status)
	}
	if byID["ACC004"].Status != "Fail" {
		t.Errorf("two of three channels is still a fail, got %s", byID["ACC004"].Status)
	}
}

func TestFlagDormantAgent(t *testing.T) {
	reg, repo := testRegistry(t)
	now := time.Now().UTC()

	rep, err := reg.Execute(context.Background(), AgentFlagDormant, "ds1", fixtureRecords(), now)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	// ACC001 and ACC002 are dormant; ACC003 has no transaction date.
	want := map[string]bool{"ACC001": true, "ACC002": true, "ACC003": true}
	if rep.Actioned != len(want) {
		t.Fatalf("expected %d flagged, got %d", len(want), rep.Actioned)
	}
	for _, r := range rep.Results {
		if !want[r.AccountID] {
			t.Errorf("unexpected flag for %s", r.AccountID)
		}
		if r.Instruction != "Apply Dormancy Flag" {
			t.Errorf("wrong instruction %q", r.Instruction)
		}
	}

	if len(repo.flags) != len(want) {
		t.Fatalf("expected %d audit rows, got %d", len(want), len(repo.flags))
	}
	for _, e := range repo.flags {
		if e.Instruction != "Apply Dormancy Flag" || !e.Timestamp.Equal(now) {
			t.Errorf("bad audit row %+v", e)
		}
	}
}

func TestDormantLedgerAgent(t *testing.T) {
	reg, repo := testRegistry(t)
	now := time.Now().UTC()

	rep, err := reg.Execute(context.Background(), AgentDormantLedger, "ds1", fixtureRecords(), now)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	// Only explicitly dormant accounts move to the ledger; a missing date
	// alone does not.
	if rep.Actioned != 2 {
		t.Fatalf("expected 2 ledger moves, got %d", rep.Actioned)
	}
	if len(repo.ledger) != 2 {
		t.Fatalf("expected 2 ledger rows, got %d", len(repo.ledger))
	}
	for _, e := range repo.ledger {
		if e.Classification != "Moved to Dormant Ledger" {
			t.Errorf("bad classification %q", e.Classification)
		}
	}
}

func TestFreezeAgent(t *testing.T) {
	reg, _ := testRegistry(t)
	now := time.Now().UTC()

	rep, err := reg.Execute(context.Background(), AgentFreeze, "ds1", fixtureRecords(), now)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	// Only ACC001 is dormant with expired KYC and a pre-cutoff transaction.
	if rep.Actioned != 1 || len(rep.Results) != 1 {
		t.Fatalf("expected exactly one frozen account, got %d", rep.Actioned)
	}
	if rep.Results[0].AccountID != "ACC001" || rep.Results[0].Status != "Frozen" {
		t.Errorf("unexpected result %+v", rep.Results[0])
	}
}

func TestFreezeAgentRequiresKnownDate(t *testing.T) {
	reg, _ := testRegistry(t)
	records := []domain.AccountRecord{{
		AccountID:     "ACC009",
		AccountStatus: domain.AccountStatusDormant,
		KYCStatus:     domain.KYCExpired,
		// No transaction date: cannot prove the account predates the cutoff.
	}}

	rep, err := reg.Execute(context.Background(), AgentFreeze, "ds1", records, time.Now().UTC())
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if rep.Actioned != 0 {
		t.Error("freeze must not trigger without a transaction date")
	}
}

func TestTransferAgent(t *testing.T) {
	reg, _ := testRegistry(t)
	rep, err := reg.Execute(context.Background(), AgentTransfer, "ds1", fixtureRecords(), time.Now().UTC())
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	// Only ACC001 transacted on or before the 2020-04-24 cutoff. ACC003 has
	// no date at all and is never eligible.
	if rep.Actioned != 1 || len(rep.Results) != 1 {
		t.Fatalf("expected exactly one eligible account, got %d", rep.Actioned)
	}
	if rep.Results[0].AccountID != "ACC001" || rep.Results[0].Status != "Eligible for Transfer" {
		t.Errorf("unexpected result %+v", rep.Results[0])
	}
}

func TestTransferAgentCutoffIsInclusive(t *testing.T) {
	reg, _ := testRegistry(t)
	cutoff := domain.DefaultConfig().Agents.TransferCutoff
	records := []domain.AccountRecord{
		{AccountID: "ON", LastTransactionDate: datePtr(cutoff)},
		{AccountID: "AFTER", LastTransactionDate: datePtr(cutoff.Add(24 * time.Hour))},
	}

	rep, err := reg.Execute(context.Background(), AgentTransfer, "ds1", records, time.Now().UTC())
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if rep.Actioned != 1 || rep.Results[0].AccountID != "ON" {
		t.Errorf("a transaction exactly on the cutoff is eligible, after it is not: %+v", rep.Results)
	}
}

func TestExecuteUnknownAgent(t *testing.T) {
	reg, _ := testRegistry(t)
	_, err := reg.Execute(context.Background(), "no-such-agent", "ds1", nil, time.Now().UTC())
	if !errors.Is(err, ErrUnknownAgent) {
		t.Fatalf("expected ErrUnknownAgent, got %v", err)
	}
}

func TestRegisterRejectsIncompleteAgent(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(Agent{Name: "x"}); err == nil {
		t.Error("expected error for agent without run function")
	}
	if err := reg.Register(Agent{Run: func(context.Context, string, []domain.AccountRecord, time.Time) (*Report, error) { return nil, nil }}); err == nil {
		t.Error("expected error for agent without name")
	}
}
