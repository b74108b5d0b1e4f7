package ampache

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidResponse indicates a response that parsed as XML but was
	// missing fields the protocol requires.
	ErrInvalidResponse = errors.New("invalid server response")
)

// AuthError is returned for handshake and token failures. Retryable is
// false for errors user intervention is needed to fix, such as bad
// credentials or an unsupported server API version.
type AuthError struct {
	Message   string
	Retryable bool
}

func (e *AuthError) Error() string {
	return e.Message
}

// ServerError wraps an <error> element returned by the server.
type ServerError struct {
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("server error %s: %s", e.Code, e.Message)
	}
	return "server error: " + e.Message
}
