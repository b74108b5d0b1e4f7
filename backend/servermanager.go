package backend

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zalando/go-keyring"

	"github.com/amphora-app/amphora/backend/mediaprovider"
	"github.com/amphora-app/amphora/backend/mediaprovider/ampache"
)

const maxLoginAttempts = 50

// ErrLoginFailed is surfaced once the auth retry budget is exhausted.
// Further token requests fail immediately until the user re-authenticates.
var ErrLoginFailed = errors.New("login failed")

// ServerManager owns the connection to the active server: the protocol
// client, the credential provider, and the rolling token lease. It retries
// failed auth with a bounded backoff and hands out validated tokens only.
type ServerManager struct {
	ServerID uuid.UUID
	Client   *ampache.Client
	Server   mediaprovider.MediaProvider

	appName string
	creds   CredentialProvider

	mu          sync.Mutex
	token       string
	attempts    int
	loginFailed bool
	lastError   string

	// replaced in tests to avoid real sleeps
	retrySleep func(ctx context.Context, d time.Duration) error

	onServerConnected []func()
	onLogout          []func()
}

func NewServerManager(appName string) *ServerManager {
	return &ServerManager{
		appName:    appName,
		retrySleep: sleepCtx,
	}
}

// ConnectToServer builds the protocol client and credential provider for
// conf and establishes a validated token lease.
func (s *ServerManager) ConnectToServer(ctx context.Context, conf *ServerConfig, fadeTags []string) error {
	client := ampache.NewClient(conf.Hostname, fadeTags)
	return s.connect(ctx, conf, client, NewKeyringCredentialProvider(s.appName, conf, client))
}

func (s *ServerManager) connect(ctx context.Context, conf *ServerConfig, client *ampache.Client, creds CredentialProvider) error {
	s.mu.Lock()
	s.Client = client
	s.creds = creds
	s.token = ""
	s.attempts = 0
	s.loginFailed = false
	s.mu.Unlock()

	if _, err := s.Token(ctx); err != nil {
		return err
	}
	s.Server = ampache.NewMediaProvider(client, s)
	s.ServerID = conf.ID
	for _, cb := range s.onServerConnected {
		cb()
	}
	return nil
}

// Token returns a validated auth token, driving handshake and the retry
// state machine as needed. Tokens handed back by the credential provider
// may be stale-cached, so each fresh one is liveness-checked before use.
func (s *ServerManager) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.loginFailed {
		s.mu.Unlock()
		return "", ErrLoginFailed
	}
	if s.token != "" {
		token := s.token
		s.mu.Unlock()
		return token, nil
	}
	creds := s.creds
	client := s.Client
	s.mu.Unlock()

	if creds == nil || client == nil {
		return "", errors.New("not connected to a server")
	}

	for {
		token, err := creds.Token(ctx)
		if err != nil {
			if isFatalAuthError(err) {
				s.setLastError(err.Error())
				return "", err
			}
			if err := s.backoff(ctx, err); err != nil {
				return "", err
			}
			continue
		}

		ok, err := client.TokenTest(ctx, token)
		if ok {
			s.mu.Lock()
			s.token = token
			s.attempts = 0
			s.lastError = ""
			s.mu.Unlock()
			return token, nil
		}
		creds.Invalidate()
		if err == nil {
			err = errors.New("server rejected auth token")
		}
		if err := s.backoff(ctx, err); err != nil {
			return "", err
		}
	}
}

// Invalidate drops the current token so the next Token call re-fetches.
func (s *ServerManager) Invalidate() {
	s.mu.Lock()
	s.token = ""
	creds := s.creds
	s.mu.Unlock()
	if creds != nil {
		creds.Invalidate()
	}
}

// LastError describes the most recent auth failure, if any.
func (s *ServerManager) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// LoginAttempts returns the current consecutive-failure count.
func (s *ServerManager) LoginAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

func (s *ServerManager) backoff(ctx context.Context, cause error) error {
	s.mu.Lock()
	s.attempts++
	attempt := s.attempts
	s.lastError = cause.Error()
	if attempt >= maxLoginAttempts {
		s.loginFailed = true
		s.mu.Unlock()
		return ErrLoginFailed
	}
	s.mu.Unlock()
	return s.retrySleep(ctx, retryDelay(attempt))
}

// retryDelay scales with the attempt count, clamped to [100ms, 10s].
func retryDelay(attempt int) time.Duration {
	d := time.Duration(attempt) * 500 * time.Millisecond
	if d < 100*time.Millisecond {
		d = 100 * time.Millisecond
	}
	if d > 10*time.Second {
		d = 10 * time.Second
	}
	return d
}

func isFatalAuthError(err error) bool {
	var credErr *CredentialError
	if errors.As(err, &credErr) {
		return !credErr.Retryable
	}
	var authErr *ampache.AuthError
	if errors.As(err, &authErr) {
		return !authErr.Retryable
	}
	return false
}

func (s *ServerManager) setLastError(msg string) {
	s.mu.Lock()
	s.lastError = msg
	s.mu.Unlock()
}

// Logout destroys the session and removes the stored server password.
func (s *ServerManager) Logout() {
	if s.Server == nil {
		return
	}
	keyring.Delete(s.appName, s.ServerID.String())
	for _, cb := range s.onLogout {
		cb()
	}
	s.mu.Lock()
	s.token = ""
	s.attempts = 0
	s.loginFailed = false
	s.creds = nil
	s.mu.Unlock()
	s.Server = nil
	s.Client = nil
	s.ServerID = uuid.UUID{}
}

func (s *ServerManager) OnServerConnected(cb func()) {
	s.onServerConnected = append(s.onServerConnected, cb)
}

func (s *ServerManager) OnLogout(cb func()) {
	s.onLogout = append(s.onLogout, cb)
}

func (s *ServerManager) SetServerPassword(server *ServerConfig, password string) error {
	return keyring.Set(s.appName, server.ID.String(), password)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
