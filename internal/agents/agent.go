// Package agents implements the compliance action agents that run over an
// ingested dataset: contact verification, dormancy flagging, ledger
// reclassification, account freezing and central-bank transfer eligibility.
// Agents observe records and write audit rows; they never mutate accounts.
package agents

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// ErrUnknownAgent is returned when a request names an agent that is not
// registered.
var ErrUnknownAgent = errors.New("unknown agent")

// Result is one agent finding for one account.
type Result struct {
	AccountID string `json:"accountId"`

	// Status is the agent-specific outcome label, e.g. "Pass", "Frozen",
	// "Eligible for Transfer".
	Status string `json:"status"`

	// Instruction is the follow-up the agent recommends, empty when the
	// status alone is the finding.
	Instruction string `json:"instruction,omitempty"`
}

// Report is the outcome of running one agent over a dataset.
type Report struct {
	Agent     string    `json:"agent"`
	DatasetID string    `json:"datasetId"`
	Processed int       `json:"processed"`
	Actioned  int       `json:"actioned"`
	Results   []Result  `json:"results"`
	Timestamp time.Time `json:"timestamp"`
}

// Agent is one named compliance action. Run receives the dataset records in
// input order and returns the per-account findings. Agents that persist
// audit rows do so through the repository captured at construction.
type Agent struct {
	Name        string `json:"name"`
	Description string `json:"description"`

	Run func(ctx context.Context, datasetID string, records []domain.AccountRecord, now time.Time) (*Report, error) `json:"-"`
}

// Registry holds the compliance agents by name.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Agent
}

// NewRegistry creates an empty agent registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]Agent)}
}

// Register adds an agent, replacing any previous one with the same name.
func (r *Registry) Register(a Agent) error {
	if a.Name == "" {
		return fmt.Errorf("agent name is required")
	}
	if a.Run == nil {
		return fmt.Errorf("agent %s: run function is required", a.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[a.Name] = a
	return nil
}

// Get returns an agent by name.
func (r *Registry) Get(name string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[name]
	return a, ok
}

// List returns all registered agents sorted by name.
func (r *Registry) List() []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Count returns the number of registered agents.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// Execute runs the named agent over the records.
func (r *Registry) Execute(ctx context.Context, name, datasetID string, records []domain.AccountRecord, now time.Time) (*Report, error) {
	a, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, name)
	}
	return a.Run(ctx, datasetID, records, now)
}
