package aggregator

import (
	"context"
	"time"

	"foodaggregator/internal/ratelimit"
	"foodaggregator/internal/scheduler"
	"foodaggregator/internal/source"
)

// retryBackoff is how long the scheduler waits before reconsidering a
// sweep that failed outright (fetch or persistence failure), rather than
// being deferred by the rate limiter or cooldown.
const retryBackoff = time.Minute

// Store is what an Aggregator needs from persistence: per-page
// normalization, dead-letter logging, and watermark bookkeeping. It is
// implemented by internal/repository against Postgres.
type Store interface {
	Persist(ctx context.Context, sourceName string, page source.Page) error
	LogAbandoned(ctx context.Context, sourceName string, page int, reason string)
	LastRun(ctx context.Context, sourceName string) (time.Time, error)
	MarkCompleted(ctx context.Context, sourceName string, at time.Time) error
}

// Aggregator ties one source to its rate limiter, run gate, and store,
// and implements scheduler.Task so the scheduler can drive it alongside
// every other source's aggregator.
type Aggregator struct {
	src        source.Source
	limiter    *ratelimit.Quota
	gate       *Gate
	store      Store
	maxRetries int
	bound      int
	cooldown   time.Duration
}

// New builds an Aggregator for src.
func New(src source.Source, limiter *ratelimit.Quota, gate *Gate, store Store, maxRetries, bound int, cooldown time.Duration) *Aggregator {
	return &Aggregator{
		src:        src,
		limiter:    limiter,
		gate:       gate,
		store:      store,
		maxRetries: maxRetries,
		bound:      bound,
		cooldown:   cooldown,
	}
}

func (a *Aggregator) Name() string { return a.src.Name() }

// Run implements scheduler.Task. It checks the run gate, fetches page 1
// eagerly to learn the page count (mirroring the original's "fetch
// first, then size the worker pool" sequencing), and drives the
// remainder through a Supervisor.
func (a *Aggregator) Run(ctx context.Context) (scheduler.Status, error) {
	lastRun, err := a.store.LastRun(ctx, a.src.Name())
	if err != nil {
		return scheduler.Status{PendingUntil: time.Now().Add(retryBackoff)}, err
	}

	decision := a.gate.Check(lastRun)
	if !decision.Admit {
		return scheduler.Status{PendingUntil: decision.RunAt}, nil
	}

	first, err := a.src.Fetch(ctx, 1)
	if err != nil {
		return scheduler.Status{PendingUntil: time.Now().Add(retryBackoff)}, err
	}
	if err := a.store.Persist(ctx, a.src.Name(), first); err != nil {
		return scheduler.Status{PendingUntil: time.Now().Add(retryBackoff)}, err
	}

	bound := a.bound
	if tp, ok := a.src.(interface{ TotalPages() int }); ok {
		if n := tp.TotalPages(); n > 0 {
			bound = ComputeBound(n, a.bound)
		}
	}

	sup := NewSupervisor(a.src, a.limiter, a.maxRetries, bound)
	status, err := sup.Run(ctx, 2, func(p source.Page) error {
		return a.store.Persist(ctx, a.src.Name(), p)
	}, func(page int, reason string) {
		a.store.LogAbandoned(ctx, a.src.Name(), page, reason)
	})
	if err != nil {
		return scheduler.Status{PendingUntil: time.Now().Add(retryBackoff)}, err
	}

	if status.Finished {
		now := time.Now()
		if err := a.store.MarkCompleted(ctx, a.src.Name(), now); err != nil {
			return scheduler.Status{PendingUntil: time.Now().Add(retryBackoff)}, err
		}
		return scheduler.Status{PendingUntil: now.Add(a.cooldown)}, nil
	}
	return scheduler.Status{PendingUntil: status.PendingUntil}, nil
}
