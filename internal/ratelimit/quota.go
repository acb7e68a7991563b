// Package ratelimit wraps golang.org/x/time/rate in the non-blocking
// admission contract the supervisor needs: a check that either consumes
// a token now or reports the earliest instant one will be available,
// without ever parking the caller.
package ratelimit

import (
	"time"

	"golang.org/x/time/rate"
)

// Quota is a token bucket capped at perHour tokens per hour, refilled
// continuously.
type Quota struct {
	l *rate.Limiter
}

// NewQuota builds a Quota that admits perHour requests per hour, with a
// burst equal to the hourly allowance (a full bucket lets a sweep open
// with a burst of work rather than trickling out one request per
// 3.6 seconds from a cold start).
func NewQuota(perHour int) *Quota {
	return &Quota{
		l: rate.NewLimiter(rate.Limit(float64(perHour)/time.Hour.Seconds()), perHour),
	}
}

// TryAcquire attempts to consume one token. If the bucket is empty it
// consumes nothing and reports the earliest time a token will be
// available; the caller must not proceed as though it had acquired one.
func (q *Quota) TryAcquire() (ok bool, earliest time.Time) {
	now := time.Now()
	r := q.l.ReserveN(now, 1)
	if !r.OK() {
		return false, now
	}
	delay := r.DelayFrom(now)
	if delay <= 0 {
		return true, now
	}
	r.CancelAt(now)
	return false, now.Add(delay)
}
