package audit

import (
	"context"
	"testing"

	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// countRepo is an in-memory audit store whose counters can be changed
// between calls to observe caching behaviour.
type countRepo struct {
	domain.Repository

	flags, ledger, runs int64
	calls               int
}

func (r *countRepo) CountFlags(context.Context) (int64, error) {
	r.calls++
	return r.flags, nil
}

func (r *countRepo) CountLedgerEntries(context.Context) (int64, error) {
	return r.ledger, nil
}

func (r *countRepo) CountRuns(context.Context) (int64, error) {
	return r.runs, nil
}

func TestStats(t *testing.T) {
	repo := &countRepo{flags: 3, ledger: 2, runs: 7}
	svc := NewService(repo, cache.NewLRUCache(10))
	ctx := context.Background()

	st, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if st.FlaggedAccounts != 3 || st.LedgerEntries != 2 || st.Runs != 7 {
		t.Errorf("unexpected stats: %+v", st)
	}
}

func TestStatsServedFromCache(t *testing.T) {
	repo := &countRepo{flags: 1}
	svc := NewService(repo, cache.NewLRUCache(10))
	ctx := context.Background()

	if _, err := svc.Stats(ctx); err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	// A counter change is invisible until the cache entry expires or is
	// invalidated.
	repo.flags = 99
	st, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if st.FlaggedAccounts != 1 {
		t.Errorf("expected cached value 1, got %d", st.FlaggedAccounts)
	}
	if repo.calls != 1 {
		t.Errorf("expected a single repository read, got %d", repo.calls)
	}
}

func TestInvalidateDropsCache(t *testing.T) {
	repo := &countRepo{flags: 1}
	svc := NewService(repo, cache.NewLRUCache(10))
	ctx := context.Background()

	if _, err := svc.Stats(ctx); err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	repo.flags = 5
	svc.Invalidate(ctx)

	st, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if st.FlaggedAccounts != 5 {
		t.Errorf("expected fresh value 5 after invalidate, got %d", st.FlaggedAccounts)
	}
}

func TestStatsWithoutCache(t *testing.T) {
	repo := &countRepo{flags: 2, ledger: 4, runs: 6}
	svc := NewService(repo, nil)

	st, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if st.FlaggedAccounts != 2 || st.LedgerEntries != 4 || st.Runs != 6 {
		t.Errorf("unexpected stats: %+v", st)
	}
}

func TestStatsRequiresRepository(t *testing.T) {
	svc := NewService(nil, nil)
	if _, err := svc.Stats(context.Background()); err == nil {
		t.Error("expected error without a repository")
	}
}
