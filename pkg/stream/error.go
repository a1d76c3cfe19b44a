package stream

import (
	"errors"
	"fmt"
)

// ErrNoEndpoint is returned by New when no endpoint URL is configured.
var ErrNoEndpoint = errors.New("no chat endpoint configured")

// ConnectionError reports that the stream could not be established or was
// lost: transport failures, timeouts, cancellation and non-2xx responses.
// It is terminal for the turn.
type ConnectionError struct {
	// StatusCode is set when the server answered with a non-2xx status.
	StatusCode int

	// Body is a bounded excerpt of the error response body.
	Body string

	// Err is the underlying transport or read error, if any.
	Err error
}

func (e *ConnectionError) Error() string {
	if e.StatusCode != 0 {
		if e.Body != "" {
			return fmt.Sprintf("chat endpoint returned status %d: %s", e.StatusCode, e.Body)
		}
		return fmt.Sprintf("chat endpoint returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("stream connection failed: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
