package backend

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewHostChecker(t *testing.T) {
	cases := []struct {
		baseURL string
		want    string
	}{
		{"https://music.example.com", "music.example.com:443"},
		{"http://music.example.com", "music.example.com:80"},
		{"https://music.example.com:8443/ampache", "music.example.com:8443"},
	}
	for _, c := range cases {
		checker, err := NewHostChecker(c.baseURL)
		if err != nil {
			t.Fatalf("NewHostChecker(%q): %v", c.baseURL, err)
		}
		if checker.addr != c.want {
			t.Errorf("NewHostChecker(%q) addr = %q, want %q", c.baseURL, checker.addr, c.want)
		}
	}
}

type fakeChecker struct {
	online atomic.Bool
}

func (f *fakeChecker) Online() bool { return f.online.Load() }

func TestWaitForNetworkAlreadyOnline(t *testing.T) {
	checker := &fakeChecker{}
	checker.online.Store(true)

	notified := false
	err := WaitForNetwork(context.Background(), checker, func(time.Duration) { notified = true })
	if err != nil {
		t.Fatalf("WaitForNetwork: %v", err)
	}
	if notified {
		t.Error("no notification expected when already online")
	}
}

func TestWaitForNetworkCancelled(t *testing.T) {
	checker := &fakeChecker{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WaitForNetwork(ctx, checker, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestWaitForNetworkRecovers(t *testing.T) {
	checker := &fakeChecker{}
	var notifications atomic.Int32
	go func() {
		time.Sleep(1500 * time.Millisecond)
		checker.online.Store(true)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := WaitForNetwork(ctx, checker, func(elapsed time.Duration) {
		notifications.Add(1)
	})
	if err != nil {
		t.Fatalf("WaitForNetwork: %v", err)
	}
	if notifications.Load() == 0 {
		t.Error("expected at least one wait notification")
	}
}
