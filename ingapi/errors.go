package ingapi

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthorizationFailed is returned when the token or resource endpoint
	// answers with a status other than 200.
	ErrAuthorizationFailed = errors.New("ingapi: authorization failed")

	// ErrTransport wraps errors returned by the Sender.
	ErrTransport = errors.New("ingapi: transport error")

	// ErrInvalidTokenResponse is returned when the token response body lacks
	// an access token or a usable server key.
	ErrInvalidTokenResponse = errors.New("ingapi: invalid token response")

	ErrNoCredentials = errors.New("ingapi: client id and signing key are required")
	ErrInvalidURL    = errors.New("ingapi: invalid base url")
)

// StatusError reports a non-200 answer from one of the flow steps.
type StatusError struct {
	Step       Step
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ingapi: %s step: unexpected status %d", e.Step, e.StatusCode)
}

// Is makes errors.Is(err, ErrAuthorizationFailed) hold for any StatusError.
func (e *StatusError) Is(target error) bool {
	return target == ErrAuthorizationFailed
}
