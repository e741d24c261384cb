package telegram

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// APIError is returned when the Bot API answers ok=false or a non-2xx status
type APIError struct {
	Method      string
	Code        int
	Description string
	// RetryAfter is set on 429 responses: the server-dictated wait before retrying
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("telegram %s: %d %s (retry after %s)", e.Method, e.Code, e.Description, e.RetryAfter)
	}
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// IsNotModified reports an edit that would leave the message unchanged
func (e *APIError) IsNotModified() bool {
	return strings.Contains(strings.ToLower(e.Description), "message is not modified")
}

// RetryAfter extracts the flood-wait duration from err, if any
func RetryAfter(err error) (time.Duration, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return apiErr.RetryAfter, true
	}
	return 0, false
}

// IsNotModified reports whether err is a "message is not modified" API error
func IsNotModified(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsNotModified()
}
