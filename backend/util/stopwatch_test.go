package util

import (
	"testing"
	"time"
)

func TestStopwatchAccumulates(t *testing.T) {
	sw := &Stopwatch{}
	if sw.Elapsed() != 0 {
		t.Errorf("initial elapsed = %v", sw.Elapsed())
	}
	if sw.Running() {
		t.Error("stopwatch running before Start")
	}

	sw.Start()
	if !sw.Running() {
		t.Error("stopwatch not running after Start")
	}
	time.Sleep(10 * time.Millisecond)
	sw.Stop()
	first := sw.Elapsed()
	if first < 10*time.Millisecond {
		t.Errorf("elapsed = %v, want at least 10ms", first)
	}

	// stopped: elapsed holds still
	time.Sleep(10 * time.Millisecond)
	if sw.Elapsed() != first {
		t.Error("elapsed advanced while stopped")
	}

	// a second run adds on
	sw.Start()
	time.Sleep(10 * time.Millisecond)
	sw.Stop()
	if sw.Elapsed() <= first {
		t.Errorf("second run did not accumulate: %v", sw.Elapsed())
	}
}

func TestStopwatchIdempotentTransitions(t *testing.T) {
	sw := &Stopwatch{}
	sw.Start()
	time.Sleep(5 * time.Millisecond)
	before := sw.Elapsed()
	sw.Start() // no-op while running
	if sw.Elapsed() < before {
		t.Error("repeated Start rewound the clock")
	}
	sw.Stop()
	elapsed := sw.Elapsed()
	sw.Stop() // no-op while stopped
	if sw.Elapsed() != elapsed {
		t.Error("repeated Stop changed elapsed time")
	}
}

func TestStopwatchReset(t *testing.T) {
	sw := &Stopwatch{}
	sw.Start()
	time.Sleep(5 * time.Millisecond)
	sw.Reset()
	if sw.Elapsed() != 0 {
		t.Errorf("elapsed after reset = %v", sw.Elapsed())
	}
	if sw.Running() {
		t.Error("stopwatch still running after reset")
	}
	sw.Start()
	time.Sleep(5 * time.Millisecond)
	if sw.Elapsed() < 5*time.Millisecond {
		t.Errorf("restart after reset: %v", sw.Elapsed())
	}
}
