package dormancy

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// ErrUnknownPolicy is returned when a run names a policy that is not
// registered.
var ErrUnknownPolicy = errors.New("unknown policy")

// Policy is one named dormancy detection rule set: a composition of
// predicates that selects a subset of a dataset. Policies are independent
// and non-exclusive; an account may satisfy several.
type Policy struct {
	Name        string `json:"name"`
	Description string `json:"description"`

	// Match reports whether the record falls under this policy at the
	// given processing time and lookback window. It must be pure.
	Match func(rec *domain.AccountRecord, now time.Time, windowYears float64) bool `json:"-"`
}

// Registry holds the detection policies by name. New policies register
// without touching existing ones.
type Registry struct {
	mu       sync.RWMutex
	policies map[string]Policy
}

// NewRegistry creates an empty policy registry.
func NewRegistry() *Registry {
	return &Registry{policies: make(map[string]Policy)}
}

// Register adds a policy, replacing any previous one with the same name.
func (r *Registry) Register(p Policy) error {
	if p.Name == "" {
		return fmt.Errorf("policy name is required")
	}
	if p.Match == nil {
		return fmt.Errorf("policy %s: match function is required", p.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[p.Name] = p
	return nil
}

// Get returns a policy by name.
func (r *Registry) Get(name string) (Policy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.policies[name]
	return p, ok
}

// List returns all registered policies sorted by name.
func (r *Registry) List() []Policy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Policy, 0, len(r.policies))
	for _, p := range r.policies {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Count returns the number of registered policies.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.policies)
}

// FilterResult is the outcome of running one policy over a dataset.
type FilterResult struct {
	// Records is the matched subset, in input order.
	Records []domain.AccountRecord

	// Issues lists matched records whose absent transaction date was
	// defaulted to inactive.
	Issues []domain.RecordIssue
}

// Filter runs the named policy over the records and returns the matching
// subset. The output is always a subset of the input; order is preserved.
func (r *Registry) Filter(name string, records []domain.AccountRecord, now time.Time, windowYears float64) (*FilterResult, error) {
	policy, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPolicy, name)
	}

	res := &FilterResult{}
	for i := range records {
		rec := &records[i]
		if !policy.Match(rec, now, windowYears) {
			continue
		}
		res.Records = append(res.Records, records[i])
		if rec.LastTransactionDate == nil {
			res.Issues = append(res.Issues, domain.RecordIssue{
				AccountID: rec.AccountID,
				Kind:      domain.IssueMissingOptionalField,
				Detail:    "last transaction date absent, treated as inactive",
			})
		}
	}
	return res, nil
}
