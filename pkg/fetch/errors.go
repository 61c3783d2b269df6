package fetch

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrCircuitOpen is returned when the breaker blocks the domain
	ErrCircuitOpen = errors.New("circuit open")
	// ErrNotModifiedNoCache is returned on 304 when no cached copy exists
	ErrNotModifiedNoCache = errors.New("not modified but no cached copy")
	// ErrOversized is returned when a body exceeds the configured limit
	ErrOversized = errors.New("response too large")
	// ErrXMLTooDeep is returned for XML nested deeper than the allowed depth
	ErrXMLTooDeep = errors.New("xml nesting too deep")
	// ErrXMLEntity is returned for XML declaring entities
	ErrXMLEntity = errors.New("xml entity declarations are not allowed")
)

// HTTPError is a non-success HTTP status
type HTTPError struct {
	Status    int
	Retryable bool
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.Status, http.StatusText(e.Status))
}

// retryableStatus reports statuses worth another attempt
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
