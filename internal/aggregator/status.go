package aggregator

import "time"

// Status is what a sweep reports when it stops driving workers: either
// the source is exhausted (Finished) or the rate limiter refused the
// next admission and the sweep should be reconsidered no sooner than
// PendingUntil.
type Status struct {
	Finished     bool
	PendingUntil time.Time
}
