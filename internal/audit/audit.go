// Package audit aggregates the passive audit trail into the counters shown
// on the stats endpoint: flagged accounts, ledger entries and stored runs.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

const statsCacheKey = "audit:stats"

// Stats are the aggregate audit counters.
type Stats struct {
	FlaggedAccounts int64 `json:"flaggedAccounts"`
	LedgerEntries   int64 `json:"ledgerEntries"`
	Runs            int64 `json:"runs"`
}

// Service reads audit counters from the repository with a short cache in
// front; the counters feed a dashboard and need not be strictly fresh.
type Service struct {
	repo  domain.Repository
	cache domain.Cache
	ttl   time.Duration
}

// NewService creates a new audit stats service.
func NewService(repo domain.Repository, cache domain.Cache) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		ttl:   30 * time.Second,
	}
}

// Stats returns the current audit counters, served from cache when fresh.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("no data source available")
	}

	if s.cache != nil {
		if data, err := s.cache.Get(ctx, statsCacheKey); err == nil && data != nil {
			var st Stats
			if err := json.Unmarshal(data, &st); err == nil {
				return &st, nil
			}
		}
	}

	flags, err := s.repo.CountFlags(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count flags: %w", err)
	}
	ledger, err := s.repo.CountLedgerEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count ledger entries: %w", err)
	}
	runs, err := s.repo.CountRuns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}

	st := &Stats{
		FlaggedAccounts: flags,
		LedgerEntries:   ledger,
		Runs:            runs,
	}

	if s.cache != nil {
		if data, err := json.Marshal(st); err == nil {
			_ = s.cache.Set(ctx, statsCacheKey, data, s.ttl)
		}
	}

	return st, nil
}

// Invalidate drops the cached counters, used after agents write audit rows.
func (s *Service) Invalidate(ctx context.Context) {
	if s.cache != nil {
		_ = s.cache.Delete(ctx, statsCacheKey)
	}
}
