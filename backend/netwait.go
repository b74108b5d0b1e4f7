package backend

import (
	"context"
	"net"
	"net/url"
	"time"
)

const (
	connectivityPollInterval = 1 * time.Second
	connectivityDialTimeout  = 2 * time.Second
)

// ConnectivityChecker reports whether the network is currently usable.
type ConnectivityChecker interface {
	Online() bool
}

// HostChecker probes connectivity by opening a TCP connection to one host.
type HostChecker struct {
	addr string
}

// NewHostChecker builds a checker for a server base URL such as
// "https://music.example.com".
func NewHostChecker(baseURL string) (*HostChecker, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	port := u.Port()
	if port == "" {
		if u.Scheme == "https" {
			port = "443"
		} else {
			port = "80"
		}
	}
	return &HostChecker{addr: net.JoinHostPort(u.Hostname(), port)}, nil
}

func (h *HostChecker) Online() bool {
	conn, err := net.DialTimeout("tcp", h.addr, connectivityDialTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// WaitForNetwork blocks until the checker reports connectivity, polling
// once per second. Each iteration spent waiting invokes notify with the
// elapsed wait time. Returns ctx.Err() if cancelled first.
func WaitForNetwork(ctx context.Context, checker ConnectivityChecker, notify func(elapsed time.Duration)) error {
	if checker.Online() {
		return nil
	}
	start := time.Now()
	ticker := time.NewTicker(connectivityPollInterval)
	defer ticker.Stop()
	for {
		if notify != nil {
			notify(time.Since(start))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if checker.Online() {
				return nil
			}
		}
	}
}
