package backend

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// WorkerRegistry tracks the in-flight background fetches, one per logical
// operation. Each worker runs under its own cancellable context; a
// cancelled worker must check its context at every network round-trip
// boundary and emit no result. Finished workers are reclaimed by a
// periodic sweep.
type WorkerRegistry struct {
	ctx context.Context

	mu      sync.Mutex
	workers map[uuid.UUID]*worker
}

type worker struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
}

func NewWorkerRegistry(ctx context.Context) *WorkerRegistry {
	return &WorkerRegistry{
		ctx:     ctx,
		workers: make(map[uuid.UUID]*worker),
	}
}

// Run starts fn on its own goroutine under a cancellable child context and
// returns the worker's id.
func (r *WorkerRegistry) Run(name string, fn func(ctx context.Context)) uuid.UUID {
	ctx, cancel := context.WithCancel(r.ctx)
	w := &worker{
		name:   name,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	id := uuid.New()

	r.mu.Lock()
	r.workers[id] = w
	r.mu.Unlock()

	go func() {
		defer close(w.done)
		defer cancel()
		fn(ctx)
	}()
	return id
}

// Cancel stops the worker with the given id, if still running.
func (r *WorkerRegistry) Cancel(id uuid.UUID) {
	r.mu.Lock()
	w, ok := r.workers[id]
	r.mu.Unlock()
	if ok {
		w.cancel()
	}
}

// CancelAll stops every registered worker and waits for each to exit.
// Called on session teardown before any shared state is released.
func (r *WorkerRegistry) CancelAll() {
	r.mu.Lock()
	workers := make([]*worker, 0, len(r.workers))
	for _, w := range r.workers {
		workers = append(workers, w)
	}
	r.workers = make(map[uuid.UUID]*worker)
	r.mu.Unlock()

	for _, w := range workers {
		w.cancel()
		<-w.done
	}
}

// Sweep reclaims finished workers and returns how many remain running.
func (r *WorkerRegistry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, w := range r.workers {
		select {
		case <-w.done:
			delete(r.workers, id)
		default:
		}
	}
	return len(r.workers)
}

// StartSweeper sweeps the registry on the given interval until ctx ends.
func (r *WorkerRegistry) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Sweep()
			}
		}
	}()
}
