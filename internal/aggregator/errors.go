package aggregator

import "fmt"

// Kind classifies an error surfaced while fetching or persisting a page,
// so the supervisor can decide whether to retry, abandon, or halt the
// whole sweep.
type Kind int

const (
	// KindTransient covers network timeouts, connection resets, and
	// upstream 5xx responses — worth retrying with the same page number.
	KindTransient Kind = iota
	// KindMalformed covers a page that could not be fetched or decoded
	// into a usable response (unexpected status, undecodable body) —
	// retried like a transient failure, then logged and abandoned once
	// the retries are exhausted.
	KindMalformed
	// KindDatabase covers a failure persisting an already-fetched page —
	// fatal to the current sweep, since a broken connection pool won't
	// recover mid-run.
	KindDatabase
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindMalformed:
		return "malformed"
	case KindDatabase:
		return "database"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with a Kind the supervisor can inspect
// with errors.As without parsing message text.
type Error struct {
	Kind Kind
	Page int
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("page %d: %s: %v", e.Page, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient wraps err as a retryable fetch failure for the given page.
func Transient(page int, err error) error {
	return &Error{Kind: KindTransient, Page: page, Err: err}
}

// Malformed wraps err as a bad-response failure for the given page; the
// supervisor retries it up to its retry limit before abandoning the page.
func Malformed(page int, err error) error {
	return &Error{Kind: KindMalformed, Page: page, Err: err}
}

// Database wraps err as a fatal persistence failure.
func Database(page int, err error) error {
	return &Error{Kind: KindDatabase, Page: page, Err: err}
}
