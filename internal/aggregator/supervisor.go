package aggregator

import (
	"context"
	"errors"
	"time"

	"foodaggregator/internal/ratelimit"
	"foodaggregator/internal/source"
)

// DefaultMaxRetries is how many times a page is reattempted after a
// transient or malformed-response failure before it's logged and
// abandoned.
const DefaultMaxRetries = 3

// ComputeBound mirrors the original's task_bound = min(cap, totalPages-1):
// never run more workers than there are pages left to fetch, and never
// more than cap regardless of catalog size.
func ComputeBound(totalPages, cap int) int {
	if totalPages <= 1 {
		return 1
	}
	if totalPages-1 < cap {
		return totalPages - 1
	}
	return cap
}

// Supervisor drives a bounded pool of workers over one source's pages,
// retrying transient and malformed-response failures up to maxRetries
// and abandoning whatever is left unresolved after that.
type Supervisor struct {
	source     source.Source
	limiter    *ratelimit.Quota
	maxRetries int
	bound      int
}

// NewSupervisor builds a Supervisor for source, admission-gated by
// limiter, running at most bound pages concurrently and retrying a
// transient failure up to maxRetries times.
func NewSupervisor(src source.Source, limiter *ratelimit.Quota, maxRetries, bound int) *Supervisor {
	if bound < 1 {
		bound = 1
	}
	return &Supervisor{source: src, limiter: limiter, maxRetries: maxRetries, bound: bound}
}

type retryItem struct {
	page    int
	retries int
}

type workerResult struct {
	page    int
	retries int
	data    source.Page
	err     error
}

// Run drives workers over pages starting at startPage until the source
// reports it's finished, the rate limiter defers further progress, or
// ctx is cancelled, or a database-fatal error occurs. persist is called
// once per successfully fetched page, from the goroutine driving Run
// (never concurrently). onAbandoned is called, best-effort, for every
// page abandoned after exhausting its retries.
func (s *Supervisor) Run(ctx context.Context, startPage int, persist func(source.Page) error, onAbandoned func(page int, reason string)) (Status, error) {
	currentPage := startPage
	var retryQueue []retryItem
	inFlight := 0
	results := make(chan workerResult)

	spawn := func(page, retries int) {
		inFlight++
		go func() {
			p, err := s.source.Fetch(ctx, page)
			select {
			case results <- workerResult{page: page, retries: retries, data: p, err: err}:
			case <-ctx.Done():
			}
		}()
	}

	for {
		if err := ctx.Err(); err != nil {
			return Status{}, err
		}

		var deferredUntil time.Time

		// Retries take priority over fresh pages, same as the original
		// supervisor loop.
		for len(retryQueue) > 0 && inFlight < s.bound {
			ok, earliest := s.limiter.TryAcquire()
			if !ok {
				deferredUntil = earliest
				break
			}
			item := retryQueue[0]
			retryQueue = retryQueue[1:]
			spawn(item.page, item.retries)
		}

		for deferredUntil.IsZero() && inFlight < s.bound && !s.source.IsFinished(currentPage) {
			ok, earliest := s.limiter.TryAcquire()
			if !ok {
				deferredUntil = earliest
				break
			}
			spawn(currentPage, 0)
			currentPage++
		}

		finished := s.source.IsFinished(currentPage)
		if finished && inFlight == 0 && len(retryQueue) == 0 {
			return Status{Finished: true}, nil
		}

		if inFlight == 0 {
			if deferredUntil.IsZero() {
				deferredUntil = time.Now().Add(time.Second)
			}
			return Status{PendingUntil: deferredUntil}, nil
		}

		select {
		case <-ctx.Done():
			return Status{}, ctx.Err()
		case res := <-results:
			inFlight--
			if status, err, done := s.handleResult(res, &retryQueue, persist, onAbandoned); done {
				return status, err
			}
		}
	}
}

func (s *Supervisor) handleResult(res workerResult, retryQueue *[]retryItem, persist func(source.Page) error, onAbandoned func(page int, reason string)) (Status, error, bool) {
	if res.err != nil {
		var aerr *Error
		retryable := errors.As(res.err, &aerr) && (aerr.Kind == KindTransient || aerr.Kind == KindMalformed)
		if retryable && res.retries < s.maxRetries {
			*retryQueue = append(*retryQueue, retryItem{page: res.page, retries: res.retries + 1})
			return Status{}, nil, false
		}
		if onAbandoned != nil {
			onAbandoned(res.page, res.err.Error())
		}
		return Status{}, nil, false
	}

	if err := persist(res.data); err != nil {
		var aerr *Error
		if !errors.As(err, &aerr) {
			err = Database(res.page, err)
		}
		return Status{}, err, true
	}
	return Status{}, nil, false
}
