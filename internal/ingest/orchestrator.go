// Package ingest runs the source adapters and writes their signals to the
// store, deduplicating by URL.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shibuya/kanshi/internal/config"
	"github.com/shibuya/kanshi/internal/models"
	"github.com/shibuya/kanshi/internal/normalize"
	"github.com/shibuya/kanshi/internal/sources"
	"github.com/shibuya/kanshi/internal/store"
)

// Result summarizes one ingestion run.
type Result struct {
	Inserted []models.Signal   `json:"inserted"`
	Fetched  int               `json:"fetched"`
	Skipped  int               `json:"skipped"`
	Errors   map[string]string `json:"errors,omitempty"`
}

// Orchestrator coordinates the adapters. Adapters run concurrently; inserts
// run in adapter order so dedup is deterministic.
type Orchestrator struct {
	cfg     config.IngestConfig
	store   store.Store
	sources []sources.DataSource
	logger  *zap.Logger
}

// NewOrchestrator wires the adapters to the store. A nil adapter list means
// the full built-in set; a nil logger disables logging.
func NewOrchestrator(cfg config.IngestConfig, st store.Store, adapters []sources.DataSource, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if adapters == nil {
		adapters = sources.All(logger)
	}
	return &Orchestrator{
		cfg:     cfg,
		store:   st,
		sources: adapters,
		logger:  logger,
	}
}

// Run executes one ingestion pass. When only is non-empty, just that adapter
// runs, bypassing its enabled flag; otherwise every enabled adapter runs.
// Adapter failures are recorded per source and never abort the run.
func (o *Orchestrator) Run(ctx context.Context, only string) (*Result, error) {
	type fetchOutcome struct {
		name    string
		signals []models.Signal
		err     error
	}

	var selected []sources.DataSource
	for _, src := range o.sources {
		if only != "" {
			if src.Name() == only {
				selected = append(selected, src)
			}
			continue
		}
		if o.cfg.Sources[src.Name()].IsEnabled() {
			selected = append(selected, src)
		}
	}
	if only != "" && len(selected) == 0 {
		return nil, fmt.Errorf("unknown source %q", only)
	}

	outcomes := make([]fetchOutcome, len(selected))
	var wg sync.WaitGroup
	for i, src := range selected {
		wg.Add(1)
		go func(i int, src sources.DataSource) {
			defer wg.Done()
			signals, err := src.Fetch(ctx, o.cfg.Sources[src.Name()])
			outcomes[i] = fetchOutcome{name: src.Name(), signals: signals, err: err}
		}(i, src)
	}
	wg.Wait()

	window := time.Duration(o.cfg.DedupWindowHours) * time.Hour
	since := time.Now().UTC().Add(-window)

	result := &Result{Inserted: []models.Signal{}, Errors: map[string]string{}}
	seen := make(map[string]bool)

	for _, outcome := range outcomes {
		if outcome.err != nil {
			o.logger.Warn("source fetch failed",
				zap.String("source", outcome.name),
				zap.Error(outcome.err))
			result.Errors[outcome.name] = outcome.err.Error()
			continue
		}
		result.Fetched += len(outcome.signals)

		for _, raw := range outcome.signals {
			sig := normalize.Signal(raw)
			if sig == nil {
				result.Skipped++
				continue
			}

			// Signals without a URL cannot be deduplicated and always insert.
			if sig.URL != "" {
				if seen[sig.URL] {
					result.Skipped++
					continue
				}
				recent, err := o.store.HasRecentURL(ctx, sig.URL, since)
				if err != nil {
					return nil, fmt.Errorf("dedup lookup: %w", err)
				}
				if recent {
					result.Skipped++
					continue
				}
				seen[sig.URL] = true
			}

			if err := o.store.InsertSignal(ctx, sig); err != nil {
				return nil, fmt.Errorf("insert signal: %w", err)
			}
			result.Inserted = append(result.Inserted, *sig)
		}
	}

	o.logger.Info("ingestion run complete",
		zap.Int("fetched", result.Fetched),
		zap.Int("inserted", len(result.Inserted)),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed_sources", len(result.Errors)))
	return result, nil
}

// Sync runs one ingestion pass and returns the inserted signals. It satisfies
// the agent's sync tool contract: empty source means every enabled adapter.
func (o *Orchestrator) Sync(ctx context.Context, source string) ([]models.Signal, error) {
	result, err := o.Run(ctx, source)
	if err != nil {
		return nil, err
	}
	return result.Inserted, nil
}
