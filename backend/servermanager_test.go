package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/amphora-app/amphora/backend/mediaprovider/ampache"
)

// fakeCreds hands out tokens from a scripted sequence and counts
// invalidations.
type fakeCreds struct {
	tokens      []string
	errs        []error
	calls       int32
	invalidated int32
}

func (f *fakeCreds) Token(ctx context.Context) (string, error) {
	i := int(atomic.AddInt32(&f.calls, 1)) - 1
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.tokens) {
		return f.tokens[i], nil
	}
	return f.tokens[len(f.tokens)-1], nil
}

func (f *fakeCreds) Invalidate() { atomic.AddInt32(&f.invalidated, 1) }

// tokenTestServer accepts the given tokens in playlist_generate calls and
// rejects everything else.
func tokenTestServer(t *testing.T, accept map[string]bool) *ampache.Client {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("auth")
		if accept[token] {
			fmt.Fprint(w, `<root><total_count>1</total_count></root>`)
			return
		}
		fmt.Fprint(w, `<root><error code="401">Session Expired</error></root>`)
	}))
	t.Cleanup(ts.Close)
	return ampache.NewClient(ts.URL, nil)
}

func newTestServerManager(client *ampache.Client, creds CredentialProvider) (*ServerManager, *[]time.Duration) {
	sm := NewServerManager("amphora-test")
	var delays []time.Duration
	sm.retrySleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	sm.Client = client
	sm.creds = creds
	return sm, &delays
}

func TestTokenFailureCountResetsOnSuccess(t *testing.T) {
	client := tokenTestServer(t, map[string]bool{"good": true})
	creds := &fakeCreds{tokens: []string{"stale", "stale", "stale", "good"}}
	sm, delays := newTestServerManager(client, creds)

	token, err := sm.Token(context.Background())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if token != "good" {
		t.Errorf("token = %q", token)
	}
	if len(*delays) != 3 {
		t.Errorf("got %d backoff sleeps, want 3", len(*delays))
	}
	if sm.LoginAttempts() != 0 {
		t.Errorf("attempts = %d after success, want 0", sm.LoginAttempts())
	}
	if n := atomic.LoadInt32(&creds.invalidated); n != 3 {
		t.Errorf("stale tokens invalidated %d times, want 3", n)
	}

	// cached token is returned without another credential lookup
	calls := atomic.LoadInt32(&creds.calls)
	if _, err := sm.Token(context.Background()); err != nil {
		t.Fatalf("second Token: %v", err)
	}
	if atomic.LoadInt32(&creds.calls) != calls {
		t.Error("cached token should not re-fetch credentials")
	}
}

func TestTokenExhaustsRetryBudget(t *testing.T) {
	client := tokenTestServer(t, nil) // rejects everything
	creds := &fakeCreds{tokens: []string{"stale"}}
	sm, delays := newTestServerManager(client, creds)

	_, err := sm.Token(context.Background())
	if !errors.Is(err, ErrLoginFailed) {
		t.Fatalf("got %v, want ErrLoginFailed", err)
	}
	// the 50th failure is terminal, so 49 sleeps happen
	if len(*delays) != maxLoginAttempts-1 {
		t.Errorf("got %d backoff sleeps, want %d", len(*delays), maxLoginAttempts-1)
	}

	// terminal state fails immediately from now on
	calls := atomic.LoadInt32(&creds.calls)
	if _, err := sm.Token(context.Background()); !errors.Is(err, ErrLoginFailed) {
		t.Fatalf("got %v after terminal failure", err)
	}
	if atomic.LoadInt32(&creds.calls) != calls {
		t.Error("terminal state must not hit the credential provider")
	}
}

func TestTokenFatalErrorShortCircuits(t *testing.T) {
	client := tokenTestServer(t, nil)
	fatal := &CredentialError{Message: "no stored password", Retryable: false}
	creds := &fakeCreds{errs: []error{fatal}}
	sm, delays := newTestServerManager(client, creds)

	_, err := sm.Token(context.Background())
	var credErr *CredentialError
	if !errors.As(err, &credErr) {
		t.Fatalf("got %v, want CredentialError", err)
	}
	if len(*delays) != 0 {
		t.Error("fatal errors must not back off")
	}
	if sm.LastError() != "no stored password" {
		t.Errorf("LastError = %q", sm.LastError())
	}
}

func TestRetryDelay(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 500 * time.Millisecond},
		{2, time.Second},
		{19, 9500 * time.Millisecond},
		{20, 10 * time.Second},
		{49, 10 * time.Second},
	}
	for _, c := range cases {
		if got := retryDelay(c.attempt); got != c.want {
			t.Errorf("retryDelay(%d) = %s, want %s", c.attempt, got, c.want)
		}
	}
}

func TestInvalidateDropsToken(t *testing.T) {
	client := tokenTestServer(t, map[string]bool{"t1": true, "t2": true})
	creds := &fakeCreds{tokens: []string{"t1", "t2"}}
	sm, _ := newTestServerManager(client, creds)

	first, err := sm.Token(context.Background())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	sm.Invalidate()
	second, err := sm.Token(context.Background())
	if err != nil {
		t.Fatalf("Token after invalidate: %v", err)
	}
	if first != "t1" || second != "t2" {
		t.Errorf("tokens = %q, %q", first, second)
	}
}

func TestConnectRunsCallbacks(t *testing.T) {
	client := tokenTestServer(t, map[string]bool{"tok": true})
	creds := &fakeCreds{tokens: []string{"tok"}}
	sm := NewServerManager("amphora-test")

	connected := false
	sm.OnServerConnected(func() { connected = true })
	conf := &ServerConfig{ID: uuid.New(), Nickname: "test"}
	if err := sm.connect(context.Background(), conf, client, creds); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if !connected {
		t.Error("OnServerConnected callback not invoked")
	}
	if sm.Server == nil {
		t.Error("Server not set after successful connect")
	}
	if sm.ServerID != conf.ID {
		t.Error("ServerID not adopted from config")
	}
}
