// Package executor dispatches a QueryPlan's queries to their owning
// adapters, single- or multi-database, grounded on the teacher's bounded
// worker pool (server/worker_pool.go) generalized from consuming AMQP
// messages to fanning out query-plan entries.
package executor

import (
	"context"
	"fmt"
	"sync"

	"github.com/dbrevel/queryplane/internal/apperrors"
	"github.com/dbrevel/queryplane/pkg/model"
)

// Adapter is the subset of adapter.Adapter the executor depends on, kept
// narrow so any adapter.Adapter (or a test fake) satisfies it without a
// direct package dependency cycle.
type Adapter interface {
	Execute(ctx context.Context, query model.DatabaseQuery, maxRows int) ([]model.Record, error)
}

// AdapterSource resolves a query's declared database to the adapter that
// serves it. *adapter.Bundle does not satisfy it directly (its Get returns
// adapter.Adapter), so cmd/queryplane wraps it in bundleSource.
type AdapterSource interface {
	Get(name string) (Adapter, bool)
}

// funcSource adapts a plain function into an AdapterSource, used by tests
// and by callers that resolve adapters from something other than a Bundle.
type funcSource func(name string) (Adapter, bool)

func (f funcSource) Get(name string) (Adapter, bool) { return f(name) }

// Config bounds the executor's fan-out concurrency, grounded on
// WorkerPoolConfig's WorkerCount in server/worker_pool.go.
type Config struct {
	MaxConcurrency int
	MaxRows        int
}

// DefaultConfig mirrors the teacher's NewWorkerPool default of 10 workers,
// paired with the original implementation's 10000-row execute() cap.
func DefaultConfig() Config {
	return Config{MaxConcurrency: 10, MaxRows: 10000}
}

// Executor implements spec.md §4.8's Executor component.
type Executor struct {
	cfg Config
}

func New(cfg Config) *Executor {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 10
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 10000
	}
	return &Executor{cfg: cfg}
}

// Execute dispatches every query in plan.Queries to its adapter. A dry-run
// plan short-circuits before any adapter is touched (invariant 6: dry_run
// never performs I/O). A single-query plan runs inline; a multi-query plan
// fans out with bounded concurrency, cancelling the remaining queries on the
// first error and merging results by original query order, not completion
// order (spec.md §9: no join semantics, ordered concatenation only).
func (e *Executor) Execute(ctx context.Context, plan model.QueryPlan, adapters AdapterSource, dryRun bool) ([]model.Record, error) {
	if dryRun {
		return nil, nil
	}

	if len(plan.Queries) == 1 {
		return e.executeOne(ctx, plan.Queries[0], adapters)
	}
	return e.executeFanOut(ctx, plan.Queries, adapters)
}

func (e *Executor) executeOne(ctx context.Context, query model.DatabaseQuery, adapters AdapterSource) ([]model.Record, error) {
	a, err := resolve(adapters, query)
	if err != nil {
		return nil, err
	}
	return a.Execute(ctx, query, e.cfg.MaxRows)
}

func (e *Executor) executeFanOut(ctx context.Context, queries []model.DatabaseQuery, adapters AdapterSource) ([]model.Record, error) {
	results := make([][]model.Record, len(queries))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)

	sem := make(chan struct{}, e.cfg.MaxConcurrency)

	for i, q := range queries {
		i, q := i, q
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			if ctx.Err() != nil {
				return
			}

			a, err := resolve(adapters, q)
			if err != nil {
				errOnce.Do(func() { firstErr = err; cancel() })
				return
			}

			rows, err := a.Execute(ctx, q, e.cfg.MaxRows)
			if err != nil {
				errOnce.Do(func() { firstErr = err; cancel() })
				return
			}
			results[i] = rows
		}()
	}

	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	var merged []model.Record
	for _, r := range results {
		merged = append(merged, r...)
	}
	return merged, nil
}

func resolve(adapters AdapterSource, query model.DatabaseQuery) (Adapter, error) {
	switch query.Kind {
	case model.KindDocument:
		if query.Collection == "" {
			return nil, apperrors.New(apperrors.MissingCollection, "executor.resolve", fmt.Errorf("mongodb query against database %q declares no collection", query.Database))
		}
		a, ok := adapters.Get(adapterNameFor(query))
		if !ok {
			return nil, apperrors.New(apperrors.NoAdapters, "executor.resolve", errNoAdapterFor(query.Database))
		}
		return a, nil
	case model.KindRelational:
		a, ok := adapters.Get(adapterNameFor(query))
		if !ok {
			return nil, apperrors.New(apperrors.NoAdapters, "executor.resolve", errNoAdapterFor(query.Database))
		}
		return a, nil
	default:
		return nil, apperrors.New(apperrors.UnsupportedQuery, "executor.resolve", errUnsupportedKind(query.Kind))
	}
}

func adapterNameFor(query model.DatabaseQuery) string {
	if query.Kind == model.KindDocument {
		return model.AdapterMongo
	}
	return model.AdapterPostgres
}
