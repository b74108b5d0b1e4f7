package util

import "time"

// Stopwatch accumulates elapsed time across Start/Stop cycles. It is used
// to track how long the current track has actually played, independent of
// the player's reported position.
type Stopwatch struct {
	running bool
	started time.Time
	elapsed time.Duration
}

func (s *Stopwatch) Start() {
	if s.running {
		return
	}
	s.started = time.Now()
	s.running = true
}

func (s *Stopwatch) Stop() {
	if !s.running {
		return
	}
	s.elapsed += time.Since(s.started)
	s.running = false
}

func (s *Stopwatch) Running() bool {
	return s.running
}

func (s *Stopwatch) Elapsed() time.Duration {
	e := s.elapsed
	if s.running {
		e += time.Since(s.started)
	}
	return e
}

func (s *Stopwatch) Reset() {
	s.running = false
	s.elapsed = time.Duration(0)
}
