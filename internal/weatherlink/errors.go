package weatherlink

import (
	"errors"
	"fmt"
)

var (
	// ErrCannotConnect covers network failures, timeouts and unexpected
	// upstream statuses. Polling retries these on the next tick.
	ErrCannotConnect = errors.New("cannot connect to WeatherLink")

	// ErrInvalidAuth is returned for 401/403 responses.
	ErrInvalidAuth = errors.New("invalid WeatherLink credentials")

	// ErrStationNotFound means the configured station is not visible to the key.
	ErrStationNotFound = errors.New("station not found")
)

// StatusError carries the upstream status of a failed request.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
	Err        error
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: %s returned HTTP %d", e.Err, e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s returned HTTP %d: %s", e.Err, e.Endpoint, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err should stop setup instead of being retried.
func IsFatal(err error) bool {
	return errors.Is(err, ErrInvalidAuth) || errors.Is(err, ErrStationNotFound)
}
