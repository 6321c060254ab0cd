// Package transfer dispatches artifact and metadata transfers to a remote
// repository: a connector turns download/upload descriptions into transport
// calls, a bounded worker pool runs them in parallel, and per-task failures
// land in each item's own error slot so one bad transfer never aborts the
// batch.
package transfer

import (
	"context"
	"sync"
)

// Event describes the state of one transfer for listener callbacks.
type Event struct {
	// Name identifies the item, the repository-relative resource path.
	Name string
	// Upload reports the transfer direction.
	Upload bool
	// Transferred is the number of bytes moved so far.
	Transferred int64
}

// Listener observes transfer lifecycle events. Progressed returning false
// cancels that one transfer; the cancellation surfaces as a CANCELLED error
// on its task only. Implementations must be safe for concurrent use when
// shared across parallel transfers.
type Listener interface {
	Started(Event)
	Progressed(Event) bool
	Corrupted(Event, error)
	Succeeded(Event)
	Failed(Event, error)
}

// NopListener ignores all events and never cancels.
type NopListener struct{}

func (NopListener) Started(Event)          {}
func (NopListener) Progressed(Event) bool  { return true }
func (NopListener) Corrupted(Event, error) {}
func (NopListener) Succeeded(Event)        {}
func (NopListener) Failed(Event, error)    {}

// Runner executes transfer tasks on a bounded worker pool. A pool of size
// one runs tasks synchronously in submission order.
type Runner struct {
	workers int
}

// NewRunner creates a runner with the given pool size; sizes below one are
// clamped to one.
func NewRunner(workers int) *Runner {
	return &Runner{workers: max(workers, 1)}
}

// Run executes all tasks and blocks until every one has finished. Tasks
// must record their own failures; Run never aborts the batch.
func (r *Runner) Run(ctx context.Context, tasks []func(context.Context)) {
	if len(tasks) == 0 {
		return
	}
	if r.workers == 1 || len(tasks) == 1 {
		for _, task := range tasks {
			task(ctx)
		}
		return
	}

	jobs := make(chan func(context.Context), len(tasks))
	var wg sync.WaitGroup
	for range min(r.workers, len(tasks)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range jobs {
				task(ctx)
			}
		}()
	}
	for _, task := range tasks {
		jobs <- task
	}
	close(jobs)
	wg.Wait()
}
