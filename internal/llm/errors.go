package llm

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrNoProvider is returned when the registry is empty or the name is unknown.
var ErrNoProvider = errors.New("no llm provider available")

// maxErrorBody caps how much of a vendor error body is kept.
const maxErrorBody = 500

// APIError is a non-success HTTP response from a vendor.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Retryable reports whether the status suggests a transient failure.
func (e *APIError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

func newAPIError(provider string, status int, body []byte) *APIError {
	return &APIError{Provider: provider, StatusCode: status, Body: truncateBody(string(body), maxErrorBody)}
}

// truncateBody cuts s to at most n bytes without splitting a rune.
func truncateBody(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
