package backend

import (
	"context"
	"sync"

	"github.com/zalando/go-keyring"

	"github.com/amphora-app/amphora/backend/mediaprovider/ampache"
)

// CredentialError is returned when the credential provider cannot yield a
// token. Retryable is false for conditions user intervention must fix,
// such as a missing or rejected password.
type CredentialError struct {
	Code      int
	Message   string
	Retryable bool
}

func (e *CredentialError) Error() string {
	return e.Message
}

// CredentialProvider yields an auth token for one configured server.
// Tokens may be stale-cached; callers must validate liveness before use.
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// keyringCredentialProvider reads the server password from the OS keyring,
// performs the handshake, and caches the resulting token until invalidated.
type keyringCredentialProvider struct {
	appName string
	conf    *ServerConfig
	client  *ampache.Client

	mu    sync.Mutex
	token string
}

func NewKeyringCredentialProvider(appName string, conf *ServerConfig, client *ampache.Client) CredentialProvider {
	return &keyringCredentialProvider{
		appName: appName,
		conf:    conf,
		client:  client,
	}
}

func (k *keyringCredentialProvider) Token(ctx context.Context) (string, error) {
	k.mu.Lock()
	if k.token != "" {
		token := k.token
		k.mu.Unlock()
		return token, nil
	}
	k.mu.Unlock()

	password, err := keyring.Get(k.appName, k.conf.ID.String())
	if err != nil {
		return "", &CredentialError{
			Message:   "no stored password for server " + k.conf.Nickname,
			Retryable: false,
		}
	}
	token, err := k.client.Handshake(ctx, k.conf.Username, password)
	if err != nil {
		return "", err
	}
	k.mu.Lock()
	k.token = token
	k.mu.Unlock()
	return token, nil
}

func (k *keyringCredentialProvider) Invalidate() {
	k.mu.Lock()
	k.token = ""
	k.mu.Unlock()
}
