package backend

import (
	"context"
	"log"
)

// Session serializes all state mutation onto one goroutine. Workers never
// touch shared state directly; they post closures that apply their
// immutable result payloads here.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc
	jobs   chan func()
	done   chan struct{}
}

func NewSession(parent context.Context) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(chan func(), 64),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Session) run() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case job := <-s.jobs:
			job()
		}
	}
}

// Post enqueues fn for the session goroutine. Jobs posted after shutdown
// are dropped.
func (s *Session) Post(fn func()) {
	select {
	case <-s.ctx.Done():
	case s.jobs <- fn:
	default:
		// queue full; block rather than drop while still honoring shutdown
		select {
		case <-s.ctx.Done():
		case s.jobs <- fn:
		}
	}
}

// Shutdown stops the session loop and waits for it to drain.
func (s *Session) Shutdown() {
	s.cancel()
	<-s.done
	log.Println("session loop stopped")
}
