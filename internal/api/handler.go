package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/opensource-finance/kestrel/internal/agents"
	"github.com/opensource-finance/kestrel/internal/audit"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/dormancy"
	"github.com/opensource-finance/kestrel/internal/loader"
	"github.com/opensource-finance/kestrel/internal/report"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/screen"
)

// runCacheTTL bounds how long completed runs stay in the cache.
const runCacheTTL = 10 * time.Minute

// Handler holds dependencies for API handlers.
type Handler struct {
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	policies *dormancy.Registry
	engine   *dormancy.Engine
	agents   *agents.Registry
	screener *screen.Screener
	audit    *audit.Service
	defaults domain.Thresholds
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, policies *dormancy.Registry, engine *dormancy.Engine, agentRegistry *agents.Registry, screener *screen.Screener, auditSvc *audit.Service, defaults domain.Thresholds, version string) *Handler {
	return &Handler{
		repo:     repo,
		cache:    cache,
		bus:      bus,
		policies: policies,
		engine:   engine,
		agents:   agentRegistry,
		screener: screener,
		audit:    auditSvc,
		defaults: defaults,
		version:  version,
	}
}

// IngestResponse is the response for POST /datasets.
type IngestResponse struct {
	Dataset *domain.Dataset      `json:"dataset"`
	Issues  []domain.RecordIssue `json:"issues,omitempty"`
}

// IngestDataset handles POST /datasets. The request body is the dataset CSV;
// an optional ?name= query parameter labels it.
func (h *Handler) IngestDataset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	res, err := loader.ReadAccounts(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CSV: " + err.Error(),
		})
		return
	}
	if len(res.Records) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "dataset contains no usable records",
		})
		return
	}

	ds := &domain.Dataset{
		ID:           uuid.New().String(),
		Name:         r.URL.Query().Get("name"),
		RecordCount:  len(res.Records),
		SkippedCount: res.Skipped,
		CreatedAt:    time.Now().UTC(),
	}
	if ds.Name == "" {
		ds.Name = "dataset-" + ds.ID[:8]
	}

	if err := h.repo.SaveDataset(ctx, ds); err != nil {
		slog.Error("failed to save dataset", "id", ds.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save dataset",
		})
		return
	}
	if err := h.repo.SaveAccounts(ctx, ds.ID, res.Records); err != nil {
		slog.Error("failed to save accounts", "dataset_id", ds.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save accounts",
		})
		return
	}

	h.publish(ctx, domain.TopicDatasetIngested, map[string]any{
		"datasetId":   ds.ID,
		"recordCount": ds.RecordCount,
	})

	slog.Info("dataset ingested",
		"dataset_id", ds.ID,
		"records", ds.RecordCount,
		"skipped", ds.SkippedCount,
	)
	writeJSON(w, http.StatusCreated, IngestResponse{Dataset: ds, Issues: res.Issues})
}

// GetDataset retrieves a dataset by ID.
func (h *Handler) GetDataset(w http.ResponseWriter, r *http.Request) {
	datasetID := chi.URLParam(r, "id")

	ds, err := h.repo.GetDataset(r.Context(), datasetID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "dataset not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, ds)
}

// ListDatasetAccounts returns the normalized records of a dataset.
func (h *Handler) ListDatasetAccounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	datasetID := chi.URLParam(r, "id")

	if _, err := h.repo.GetDataset(ctx, datasetID); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "dataset not found",
		})
		return
	}

	records, err := h.repo.ListAccounts(ctx, datasetID)
	if err != nil {
		slog.Error("failed to list accounts", "dataset_id", datasetID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list accounts",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"accounts": records,
		"count":    len(records),
	})
}

// ClassifyRequest is the request body for POST /classify.
type ClassifyRequest struct {
	DatasetID   string             `json:"datasetId"`
	Policy      string             `json:"policy,omitempty"`
	WindowYears float64            `json:"windowYears,omitempty"`
	Thresholds  *domain.Thresholds `json:"thresholds,omitempty"`
	AsOf        *time.Time         `json:"asOf,omitempty"`
}

// Classify handles POST /classify: it filters a dataset through a dormancy
// policy, derives the compliance fields for the matched subset, and persists
// the whole run for audit.
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	traceID := GetTraceID(ctx)

	var req ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.DatasetID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "datasetId is required",
		})
		return
	}

	if _, err := h.repo.GetDataset(ctx, req.DatasetID); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "dataset not found",
		})
		return
	}

	records, err := h.repo.ListAccounts(ctx, req.DatasetID)
	if err != nil {
		slog.Error("failed to list accounts", "dataset_id", req.DatasetID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list accounts",
		})
		return
	}

	// Resolve defaults. AsOf is captured once here and held constant for
	// the whole run so results are reproducible.
	policy := req.Policy
	if policy == "" {
		policy = dormancy.PolicyGeneral
	}
	windowYears := req.WindowYears
	if windowYears <= 0 {
		windowYears = h.engine.WindowYears()
	}
	th := h.defaults
	if req.Thresholds != nil {
		th = *req.Thresholds
	}
	asOf := time.Now().UTC()
	if req.AsOf != nil {
		asOf = req.AsOf.UTC()
	}

	filterStart := time.Now()
	fr, err := h.policies.Filter(policy, records, asOf, windowYears)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}
	filterMs := time.Since(filterStart).Milliseconds()

	classifyStart := time.Now()
	accounts, err := h.engine.Classify(ctx, fr.Records, asOf, th)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidThresholds) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}
		slog.Error("classification failed", "dataset_id", req.DatasetID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "classification failed",
		})
		return
	}
	classifyMs := time.Since(classifyStart).Milliseconds()

	run := &domain.Run{
		ID:           uuid.New().String(),
		DatasetID:    req.DatasetID,
		Policy:       policy,
		WindowYears:  windowYears,
		Thresholds:   th,
		AsOf:         asOf,
		InputCount:   len(records),
		MatchedCount: len(accounts),
		Accounts:     accounts,
		Summary:      report.Summarize(accounts),
		Issues:       fr.Issues,
		Metadata: domain.RunMetadata{
			TraceID:       traceID,
			FilterMs:      filterMs,
			ClassifyMs:    classifyMs,
			EngineVersion: dormancy.EngineVersion,
		},
		CreatedAt: time.Now().UTC(),
	}
	run.Metadata.TotalMs = time.Since(start).Milliseconds()

	if err := h.repo.SaveRun(ctx, run); err != nil {
		slog.Error("failed to save run", "run_id", run.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save run",
		})
		return
	}

	if h.cache != nil {
		if err := h.cache.SetRun(ctx, run, runCacheTTL); err != nil {
			slog.Warn("failed to cache run", "run_id", run.ID, "error", err)
		}
	}
	if h.audit != nil {
		h.audit.Invalidate(ctx)
	}

	h.publish(ctx, domain.TopicRunCompleted, map[string]any{
		"runId":     run.ID,
		"datasetId": run.DatasetID,
		"policy":    run.Policy,
		"matched":   run.MatchedCount,
	})
	for i := range accounts {
		if accounts[i].CompliancePriority != domain.PriorityCritical {
			continue
		}
		h.publish(ctx, domain.TopicAlert, map[string]any{
			"runId":     run.ID,
			"accountId": accounts[i].AccountID,
			"priority":  accounts[i].CompliancePriority,
			"action":    accounts[i].RecommendedAction,
		})
	}

	slog.Info("classification run completed",
		"run_id", run.ID,
		"dataset_id", run.DatasetID,
		"policy", policy,
		"input", run.InputCount,
		"matched", run.MatchedCount,
		"total_ms", run.Metadata.TotalMs,
	)
	writeJSON(w, http.StatusOK, run)
}

// GetRun retrieves a run by ID, serving from cache when possible.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, status := h.loadRun(r)
	if run == nil {
		writeJSON(w, status, map[string]string{"error": "run not found"})
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// GetRunSummary returns just the aggregate view of a run.
func (h *Handler) GetRunSummary(w http.ResponseWriter, r *http.Request) {
	run, status := h.loadRun(r)
	if run == nil {
		writeJSON(w, status, map[string]string{"error": "run not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"runId":        run.ID,
		"datasetId":    run.DatasetID,
		"policy":       run.Policy,
		"inputCount":   run.InputCount,
		"matchedCount": run.MatchedCount,
		"summary":      run.Summary,
	})
}

// loadRun fetches a run for the request's {id} parameter. It returns nil and
// an HTTP status on failure.
func (h *Handler) loadRun(r *http.Request) (*domain.Run, int) {
	ctx := r.Context()
	runID := chi.URLParam(r, "id")
	if runID == "" {
		return nil, http.StatusBadRequest
	}

	if h.cache != nil {
		// GetRun reports a cache miss as nil, nil; fall through to the
		// repository in that case.
		if run, err := h.cache.GetRun(ctx, runID); err == nil && run != nil {
			return run, http.StatusOK
		}
	}

	run, err := h.repo.GetRun(ctx, runID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("failed to get run", "run_id", runID, "error", err)
		}
		return nil, http.StatusNotFound
	}

	if h.cache != nil {
		if err := h.cache.SetRun(ctx, run, runCacheTTL); err != nil {
			slog.Warn("failed to cache run", "run_id", runID, "error", err)
		}
	}
	return run, http.StatusOK
}

// ListRuns returns the runs recorded for a dataset, newest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	datasetID := r.URL.Query().Get("dataset")
	if datasetID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "dataset query parameter is required",
		})
		return
	}

	runs, err := h.repo.ListRuns(r.Context(), datasetID)
	if err != nil {
		slog.Error("failed to list runs", "dataset_id", datasetID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list runs",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

// ExportRequest is the request body for POST /runs/{id}/export.
type ExportRequest struct {
	// Filter is an optional CEL expression over the classified fields;
	// empty exports the whole run.
	Filter string `json:"filter,omitempty"`
}

// ExportRun writes a run's classified accounts as CSV, optionally narrowed
// by a filter expression.
func (h *Handler) ExportRun(w http.ResponseWriter, r *http.Request) {
	run, status := h.loadRun(r)
	if run == nil {
		writeJSON(w, status, map[string]string{"error": "run not found"})
		return
	}

	var req ExportRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid JSON request body",
			})
			return
		}
	}

	accounts, err := h.screener.Apply(req.Filter, run.Accounts)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid filter: " + err.Error(),
		})
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="run-`+run.ID+`.csv"`)
	if err := loader.WriteAccounts(w, accounts); err != nil {
		slog.Error("failed to write export", "run_id", run.ID, "error", err)
	}
}

// ListPolicies returns the registered dormancy detection policies.
func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	policies := h.policies.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"policies": policies,
		"count":    len(policies),
	})
}

// ListAgents returns the registered compliance action agents.
func (h *Handler) ListAgents(w http.ResponseWriter, r *http.Request) {
	list := h.agents.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"agents": list,
		"count":  len(list),
	})
}

// AgentRequest is the request body for POST /agents/{name}.
type AgentRequest struct {
	DatasetID string     `json:"datasetId"`
	AsOf      *time.Time `json:"asOf,omitempty"`
}

// RunAgent executes one compliance agent over a dataset.
func (h *Handler) RunAgent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")

	var req AgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.DatasetID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "datasetId is required",
		})
		return
	}

	if _, err := h.repo.GetDataset(ctx, req.DatasetID); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "dataset not found",
		})
		return
	}

	records, err := h.repo.ListAccounts(ctx, req.DatasetID)
	if err != nil {
		slog.Error("failed to list accounts", "dataset_id", req.DatasetID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list accounts",
		})
		return
	}

	asOf := time.Now().UTC()
	if req.AsOf != nil {
		asOf = req.AsOf.UTC()
	}

	rep, err := h.agents.Execute(ctx, name, req.DatasetID, records, asOf)
	if err != nil {
		if errors.Is(err, agents.ErrUnknownAgent) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": err.Error(),
			})
			return
		}
		slog.Error("agent failed", "agent", name, "dataset_id", req.DatasetID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "agent execution failed",
		})
		return
	}

	// Flag and ledger counts may have changed.
	if h.audit != nil {
		h.audit.Invalidate(ctx)
	}

	slog.Info("agent run completed",
		"agent", name,
		"dataset_id", req.DatasetID,
		"processed", rep.Processed,
		"actioned", rep.Actioned,
	)
	writeJSON(w, http.StatusOK, rep)
}

// GetStats returns the audit counters.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.audit.Stats(r.Context())
	if err != nil {
		slog.Error("failed to load stats", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load stats",
		})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// publish sends a JSON event, best effort. A bus failure never fails the
// request that produced the event.
func (h *Handler) publish(ctx context.Context, topic string, payload map[string]any) {
	if h.bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("failed to marshal event", "topic", topic, "error", err)
		return
	}
	if err := h.bus.Publish(ctx, topic, data); err != nil {
		slog.Warn("failed to publish event", "topic", topic, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
