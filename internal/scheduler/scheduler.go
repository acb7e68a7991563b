// Package scheduler drives a set of aggregators on their own wake
// schedules, re-sorting after every run the way the original
// BinaryHeap<ScheduledAggregator> loop does: pop the soonest-due
// aggregator, sleep until it's due, run it, and push it back in with
// whatever wake time it reports next.
package scheduler

import (
	"container/heap"
	"context"
	"log"
	"time"
)

// Status is what a Task reports after one run: the task is run again no
// sooner than PendingUntil. A PendingUntil at or before the current time
// (including the zero time) makes the task runnable again immediately.
type Status struct {
	PendingUntil time.Time
}

// Task is one schedulable unit: something that can be run to completion
// (or partial completion, reporting when to resume) and that knows its
// own name for logging.
type Task interface {
	Name() string
	Run(ctx context.Context) (Status, error)
}

type scheduledTask struct {
	task   Task
	wakeAt time.Time
}

// taskHeap is a min-heap ordered by wakeAt, the direct translation of
// the original's inverted Ord on ScheduledAggregator (there, a
// max-heap's Ord is reversed to make the earliest wake time pop first;
// here, Less already expresses that directly).
type taskHeap []*scheduledTask

func (h taskHeap) Len() int            { return len(h) }
func (h taskHeap) Less(i, j int) bool  { return h[i].wakeAt.Before(h[j].wakeAt) }
func (h taskHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x interface{}) { *h = append(*h, x.(*scheduledTask)) }
func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Scheduler owns the heap of tasks and the clock used to decide when to
// wake each one.
type Scheduler struct {
	heap taskHeap
	wake chan struct{}
}

// New builds a Scheduler with every task initially runnable immediately.
func New(tasks []Task) *Scheduler {
	s := &Scheduler{wake: make(chan struct{}, 1)}
	now := time.Now()
	for _, t := range tasks {
		heap.Push(&s.heap, &scheduledTask{task: t, wakeAt: now})
	}
	return s
}

// Run drives the heap until ctx is cancelled: pop the soonest-due task,
// sleep until it's due (waking early if Wake is called), run it, and
// push it back with its reported wake time.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		if s.heap.Len() == 0 {
			return
		}

		next := s.heap[0]
		wait := time.Until(next.wakeAt)
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			case <-s.wake:
				timer.Stop()
				continue
			}
		}

		item := heap.Pop(&s.heap).(*scheduledTask)
		status, err := item.task.Run(ctx)
		if err != nil {
			log.Printf("scheduler: task %q run failed: %v", item.task.Name(), err)
		}
		if ctx.Err() != nil {
			return
		}

		item.wakeAt = status.PendingUntil
		heap.Push(&s.heap, item)
	}
}

// Wake nudges the scheduler to re-check its heap immediately, used when
// an external event (not a timer) may have changed a task's readiness.
// Non-blocking: a pending wake is coalesced if one is already queued.
func (s *Scheduler) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
