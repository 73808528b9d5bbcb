package sisapi

import (
	"errors"
	"fmt"
)

// Static errors that can be wrapped with context.
var (
	ErrConfigRequired      = errors.New("config is required")
	ErrEndpointRequired    = errors.New("API endpoint is required")
	ErrAccessKeyRequired   = errors.New("access key is required")
	ErrUnknownServer       = errors.New("unknown server name")
	ErrNotFound            = errors.New("resource not found")
	ErrNoActiveSemester    = errors.New("no active semester")
	ErrNoActiveReportCycle = errors.New("no active report cycle")
	ErrMultipleMatches     = errors.New("multiple matching resources")
	ErrAPIKeyNotFound      = errors.New("API key not found in key store")
)

// InvalidJSONMarker is attached to request diagnostics when a response
// body that should carry JSON cannot be parsed.
const InvalidJSONMarker = "Invalid JSON"

// QuotaExceededError is returned when a request is attempted against a
// server whose quota has already been exhausted. It is fatal for that
// server identity: the limiter never resets it, so callers must stop
// issuing requests to the server until the process restarts.
type QuotaExceededError struct {
	Server string
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("request limit reached for server %s", e.Server)
}

// Is lets errors.Is match any two quota errors regardless of server.
func (e *QuotaExceededError) Is(target error) bool {
	_, ok := target.(*QuotaExceededError)

	return ok
}

// ValidationError reports a rejected argument at a public API boundary.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// RequestError carries the diagnostics of a failed API request. The
// request itself never panics or aborts the client; resource accessors
// translate an unsuccessful response into this error.
type RequestError struct {
	Description string
	Method      string
	URL         string
	StatusCode  int
	Body        string
	// JSON is the parsed response body, or InvalidJSONMarker when the
	// body could not be parsed.
	JSON interface{}
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %s %s returned status %d", e.Description, e.Method, e.URL, e.StatusCode)
}

// IsQuotaExceeded checks whether err is a per-server quota stop.
func IsQuotaExceeded(err error) bool {
	var quotaErr *QuotaExceededError

	return errors.As(err, &quotaErr)
}

// IsNotFound checks whether err signals a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks whether err is a boundary validation failure.
func IsValidation(err error) bool {
	var validationErr *ValidationError

	return errors.As(err, &validationErr)
}
