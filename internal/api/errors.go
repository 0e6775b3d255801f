package api

import (
	"errors"
	"fmt"
)

// ErrNoFilename is returned when a binary response has no usable content-disposition filename
var ErrNoFilename = errors.New("response has no content-disposition filename")

// UpstreamError is a non-200 response from the portal. The body is kept raw;
// error bodies are never parsed.
type UpstreamError struct {
	StatusCode int
	Body       string
	URL        string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("portal API error (status %d): %s", e.StatusCode, e.Body)
}

// IsUpstreamStatus reports whether err is an UpstreamError with the given status
func IsUpstreamStatus(err error, status int) bool {
	var upstream *UpstreamError
	return errors.As(err, &upstream) && upstream.StatusCode == status
}
