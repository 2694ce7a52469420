// Package worker provides async classification of ingested datasets.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/dormancy"
	"github.com/opensource-finance/kestrel/internal/report"
)

// Worker classifies datasets asynchronously as they arrive on the EventBus.
// Every ingested dataset gets a baseline run with the default policy, so a
// reviewer always finds at least one run per dataset without calling the
// classification endpoint.
type Worker struct {
	bus      domain.EventBus
	repo     domain.Repository
	policies *dormancy.Registry
	engine   *dormancy.Engine

	// policy and thresholds for the baseline run.
	policy     string
	thresholds domain.Thresholds

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// Policy is the detection policy for baseline runs. Empty selects the
	// general inactivity policy.
	Policy string

	// Thresholds for baseline runs. Zero values select the defaults.
	Thresholds domain.Thresholds
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, policies *dormancy.Registry, engine *dormancy.Engine) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		repo:     repo,
		policies: policies,
		engine:   engine,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start subscribes to the dataset ingestion topic.
func (w *Worker) Start(cfg Config) error {
	w.policy = cfg.Policy
	if w.policy == "" {
		w.policy = dormancy.PolicyGeneral
	}
	w.thresholds = cfg.Thresholds
	if w.thresholds.Validate() != nil {
		w.thresholds = domain.DefaultThresholds()
	}

	sub, err := w.bus.Subscribe(w.ctx, domain.TopicDatasetIngested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("worker started",
		"topic", domain.TopicDatasetIngested,
		"policy", w.policy,
	)
	return nil
}

// DatasetMessage is the payload published when a dataset is ingested.
type DatasetMessage struct {
	DatasetID   string `json:"datasetId"`
	RecordCount int    `json:"recordCount"`
}

// handleMessage processes one dataset ingestion event.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var dsMsg DatasetMessage
	if err := json.Unmarshal(msg.Payload, &dsMsg); err != nil {
		slog.Error("failed to parse dataset message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}
	if dsMsg.DatasetID == "" {
		slog.Error("dataset message without dataset id", "message_id", msg.ID)
		return nil
	}

	slog.Debug("processing dataset",
		"dataset_id", dsMsg.DatasetID,
		"records", dsMsg.RecordCount,
	)

	records, err := w.repo.ListAccounts(ctx, dsMsg.DatasetID)
	if err != nil {
		slog.Error("failed to list accounts",
			"dataset_id", dsMsg.DatasetID,
			"error", err,
		)
		return err
	}

	asOf := time.Now().UTC()
	windowYears := w.engine.WindowYears()

	filterStart := time.Now()
	fr, err := w.policies.Filter(w.policy, records, asOf, windowYears)
	if err != nil {
		slog.Error("policy filter failed",
			"dataset_id", dsMsg.DatasetID,
			"policy", w.policy,
			"error", err,
		)
		return err
	}
	filterMs := time.Since(filterStart).Milliseconds()

	classifyStart := time.Now()
	accounts, err := w.engine.Classify(ctx, fr.Records, asOf, w.thresholds)
	if err != nil {
		slog.Error("classification failed",
			"dataset_id", dsMsg.DatasetID,
			"error", err,
		)
		return err
	}
	classifyMs := time.Since(classifyStart).Milliseconds()

	run := &domain.Run{
		ID:           uuid.New().String(),
		DatasetID:    dsMsg.DatasetID,
		Policy:       w.policy,
		WindowYears:  windowYears,
		Thresholds:   w.thresholds,
		AsOf:         asOf,
		InputCount:   len(records),
		MatchedCount: len(accounts),
		Accounts:     accounts,
		Summary:      report.Summarize(accounts),
		Issues:       fr.Issues,
		Metadata: domain.RunMetadata{
			TraceID:       msg.ID,
			FilterMs:      filterMs,
			ClassifyMs:    classifyMs,
			TotalMs:       time.Since(start).Milliseconds(),
			EngineVersion: dormancy.EngineVersion,
		},
		CreatedAt: time.Now().UTC(),
	}

	if err := w.repo.SaveRun(ctx, run); err != nil {
		slog.Error("failed to save run",
			"run_id", run.ID,
			"error", err,
		)
		return err
	}

	w.publish(ctx, domain.TopicRunCompleted, map[string]any{
		"runId":     run.ID,
		"datasetId": run.DatasetID,
		"policy":    run.Policy,
		"matched":   run.MatchedCount,
	})
	for i := range accounts {
		if accounts[i].CompliancePriority != domain.PriorityCritical {
			continue
		}
		w.publish(ctx, domain.TopicAlert, map[string]any{
			"runId":     run.ID,
			"accountId": accounts[i].AccountID,
			"priority":  accounts[i].CompliancePriority,
			"action":    accounts[i].RecommendedAction,
		})
	}

	slog.Info("dataset classified",
		"dataset_id", dsMsg.DatasetID,
		"run_id", run.ID,
		"policy", w.policy,
		"matched", run.MatchedCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// publish sends a JSON event, best effort.
func (w *Worker) publish(ctx context.Context, topic string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("failed to marshal event", "topic", topic, "error", err)
		return
	}
	if err := w.bus.Publish(ctx, topic, data); err != nil {
		slog.Error("failed to publish event", "topic", topic, "error", err)
	}
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
