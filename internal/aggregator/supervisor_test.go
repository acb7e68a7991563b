package aggregator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"foodaggregator/internal/ratelimit"
	"foodaggregator/internal/source"
)

// fakeSource serves a fixed number of pages, optionally failing a
// specific page a fixed number of times before succeeding.
type fakeSource struct {
	totalPages  int
	failPage    int
	failCount   int
	malformed   bool

	mu       sync.Mutex
	attempts map[int]int
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) IsFinished(page int) bool { return page > f.totalPages }

func (f *fakeSource) Fetch(ctx context.Context, page int) (source.Page, error) {
	f.mu.Lock()
	if f.attempts == nil {
		f.attempts = make(map[int]int)
	}
	f.attempts[page]++
	attempt := f.attempts[page]
	f.mu.Unlock()

	if page == f.failPage {
		if f.malformed {
			return source.Page{}, Malformed(page, errors.New("bad shape"))
		}
		if attempt <= f.failCount {
			return source.Page{}, Transient(page, errors.New("timeout"))
		}
	}
	return source.Page{Number: page, Entries: []source.Entry{{ExternalID: "x"}}}, nil
}

func TestSupervisorRunsToCompletion(t *testing.T) {
	src := &fakeSource{totalPages: 5}
	sup := NewSupervisor(src, ratelimit.NewQuota(100000), DefaultMaxRetries, 3)

	var persisted []int
	var mu sync.Mutex
	status, err := sup.Run(context.Background(), 1, func(p source.Page) error {
		mu.Lock()
		persisted = append(persisted, p.Number)
		mu.Unlock()
		return nil
	}, nil)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !status.Finished {
		t.Fatal("expected Finished status")
	}
	if len(persisted) != 5 {
		t.Fatalf("expected 5 pages persisted, got %d", len(persisted))
	}
}

func TestSupervisorRetriesTransientFailures(t *testing.T) {
	src := &fakeSource{totalPages: 3, failPage: 2, failCount: 2}
	sup := NewSupervisor(src, ratelimit.NewQuota(100000), DefaultMaxRetries, 3)

	var persisted []int
	status, err := sup.Run(context.Background(), 1, func(p source.Page) error {
		persisted = append(persisted, p.Number)
		return nil
	}, nil)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !status.Finished {
		t.Fatal("expected Finished status")
	}
	if len(persisted) != 3 {
		t.Fatalf("expected 3 pages eventually persisted, got %d", len(persisted))
	}
}

func TestSupervisorRetriesMalformedPageThenAbandons(t *testing.T) {
	src := &fakeSource{totalPages: 2, failPage: 1, malformed: true}
	sup := NewSupervisor(src, ratelimit.NewQuota(100000), 2, 3)

	var abandoned []int
	var persisted []int
	status, err := sup.Run(context.Background(), 1, func(p source.Page) error {
		persisted = append(persisted, p.Number)
		return nil
	}, func(page int, reason string) {
		abandoned = append(abandoned, page)
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !status.Finished {
		t.Fatal("expected Finished status")
	}
	if len(abandoned) != 1 || abandoned[0] != 1 {
		t.Fatalf("expected page 1 abandoned after exhausting retries, got %v", abandoned)
	}
	if len(persisted) != 1 || persisted[0] != 2 {
		t.Fatalf("expected only page 2 persisted, got %v", persisted)
	}

	src.mu.Lock()
	attempts := src.attempts[1]
	src.mu.Unlock()
	if attempts != 3 {
		t.Fatalf("expected page 1 to be attempted 3 times (1 initial + 2 retries), got %d", attempts)
	}
}

func TestSupervisorAbandonsAfterExhaustingRetries(t *testing.T) {
	src := &fakeSource{totalPages: 2, failPage: 1, failCount: 99}
	sup := NewSupervisor(src, ratelimit.NewQuota(100000), 2, 3)

	var abandoned []int
	status, err := sup.Run(context.Background(), 1, func(p source.Page) error {
		return nil
	}, func(page int, reason string) {
		abandoned = append(abandoned, page)
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !status.Finished {
		t.Fatal("expected Finished status")
	}
	if len(abandoned) != 1 || abandoned[0] != 1 {
		t.Fatalf("expected page 1 abandoned after exhausting retries, got %v", abandoned)
	}
}

func TestSupervisorStopsOnDatabaseError(t *testing.T) {
	src := &fakeSource{totalPages: 5}
	sup := NewSupervisor(src, ratelimit.NewQuota(100000), DefaultMaxRetries, 3)

	boom := errors.New("connection reset")
	_, err := sup.Run(context.Background(), 1, func(p source.Page) error {
		if p.Number == 2 {
			return boom
		}
		return nil
	}, nil)

	if err == nil {
		t.Fatal("expected a database error to stop the sweep")
	}
	var aerr *Error
	if !errors.As(err, &aerr) || aerr.Kind != KindDatabase {
		t.Fatalf("expected a wrapped KindDatabase error, got %v", err)
	}
}

func TestSupervisorReportsRateLimitDeferral(t *testing.T) {
	src := &fakeSource{totalPages: 1000}
	// A quota of one request per hour has a burst of one: the first page
	// is admitted and every later admission is refused.
	sup := NewSupervisor(src, ratelimit.NewQuota(1), DefaultMaxRetries, 3)

	status, err := sup.Run(context.Background(), 1, func(p source.Page) error {
		return nil
	}, nil)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Finished {
		t.Fatal("expected a PendingUntil deferral, not Finished")
	}
	if status.PendingUntil.IsZero() {
		t.Fatal("expected a non-zero PendingUntil")
	}
}
