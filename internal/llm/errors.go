package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrMissingAPIKey is returned when a provider's credentials are not set.
	ErrMissingAPIKey = errors.New("API key is not configured")
	// ErrRateLimited matches a StatusError for HTTP 429.
	ErrRateLimited = errors.New("rate limited by provider")
)

// StatusError is a non-success reply from a provider API.
type StatusError struct {
	Provider string
	Code     int
	Message  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.Code, e.Message)
}

// Is lets errors.Is(err, ErrRateLimited) match throttling replies.
func (e *StatusError) Is(target error) bool {
	return target == ErrRateLimited && e.Code == http.StatusTooManyRequests
}

// Temporary reports whether the same request may succeed later.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

const maxErrorBody = 300

// newStatusError prefers the API's own message and falls back to the raw
// body, shortened.
func newStatusError(provider string, code int, message string, body []byte) *StatusError {
	if message == "" {
		message = strings.TrimSpace(string(body))
		if len(message) > maxErrorBody {
			message = message[:maxErrorBody] + "..."
		}
	}
	if message == "" {
		message = http.StatusText(code)
	}
	return &StatusError{Provider: provider, Code: code, Message: message}
}
