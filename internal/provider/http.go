package provider

import (
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// FailureFromStatus maps an HTTP status code from a provider API to a
// structured failure. The body is trimmed into the message so operators can
// see what the upstream actually said.
func FailureFromStatus(statusCode int, body string, retryAfter time.Duration) *Failure {
	message := summarizeBody(body)
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return &Failure{Kind: FailureAuth, Message: message}
	case statusCode == http.StatusNotFound:
		return &Failure{Kind: FailureNotFound, Message: message}
	case statusCode == http.StatusRequestTimeout:
		return &Failure{Kind: FailureTimeout, Message: message, RetryAfter: retryAfter}
	case statusCode == http.StatusTooManyRequests:
		return &Failure{Kind: FailureRateLimited, Message: message, RetryAfter: retryAfter}
	case statusCode >= http.StatusInternalServerError:
		return &Failure{Kind: FailureServer, Message: message, RetryAfter: retryAfter}
	default:
		return &Failure{Kind: FailureBadRequest, Message: message}
	}
}

// FailureFromTransport maps a transport-level error (connection refused, DNS,
// timeout) to a structured failure.
func FailureFromTransport(err error) *Failure {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if ok := asNetError(err, &netErr); ok && netErr.Timeout() {
		return &Failure{Kind: FailureTimeout, Message: err.Error()}
	}
	return &Failure{Kind: FailureNetwork, Message: err.Error()}
}

func asNetError(err error, target *net.Error) bool {
	for err != nil {
		if ne, ok := err.(net.Error); ok {
			*target = ne
			return true
		}
		if ue, ok := err.(*url.Error); ok {
			err = ue.Err
			continue
		}
		type unwrapper interface{ Unwrap() error }
		if uw, ok := err.(unwrapper); ok {
			err = uw.Unwrap()
			continue
		}
		return false
	}
	return false
}

// ParseRetryAfter interprets a Retry-After header as a delay. Both the
// delta-seconds and HTTP-date forms are accepted; anything else yields zero.
func ParseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if delay := time.Until(at); delay > 0 {
			return delay
		}
	}
	return 0
}

func summarizeBody(body string) string {
	const maxLen = 280
	trimmed := strings.TrimSpace(body)
	trimmed = strings.Join(strings.Fields(trimmed), " ")
	if len(trimmed) > maxLen {
		return trimmed[:maxLen] + "..."
	}
	return trimmed
}
