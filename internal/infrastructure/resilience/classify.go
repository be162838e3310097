package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// StatusError is a non-2xx answer from an HTTP backend.
type StatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("%s status: %s: %s", e.Operation, e.Status, body)
}

// ClassifyTransport treats network errors and retryable HTTP statuses as transient.
// Cancellation is neither retried nor held against the backend.
func ClassifyTransport(err error) Verdict {
	if err == nil {
		return Verdict{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Verdict{}
	}
	if IsCircuitOpen(err) {
		return Verdict{Retryable: true, RecordFailure: true}
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if RetryableStatus(statusErr.StatusCode) {
			return Verdict{Retryable: true, RecordFailure: true}
		}
		return Verdict{}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return Verdict{Retryable: true, RecordFailure: true}
	}
	return Verdict{RecordFailure: true}
}

func RetryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
