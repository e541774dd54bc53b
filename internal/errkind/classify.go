package errkind

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// Classify maps a raw failure onto the taxonomy. The mapping is evaluated in
// precedence order:
//
//  1. An error that is already Classified passes through unchanged.
//  2. Explicit non-retryable markers (auth, validation, not-found,
//     context cancellation) map to their kinds with retryable=false.
//  3. Rate-limit, upstream 5xx, network timeout, connection reset/refused and
//     DNS failures map to their kinds with retryable=true.
//  4. Anything else is kind=unknown with retryable=true. Failing open toward
//     retrying is deliberate (see Kind.RetryableByDefault); testers asserting
//     on unknown errors should expect retries.
func Classify(service string, err error) *Classified {
	if err == nil {
		return nil
	}

	if classified, ok := As(err); ok {
		return classified
	}

	// Context cancellation is the caller giving up, not a transient fault.
	if errors.Is(err, context.Canceled) {
		return wrapNonRetryable(err, service, KindValidation, "operation cancelled")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(err, service, KindTimeout, "request deadline exceeded")
	}

	if netErr, ok := asNetError(err); ok && netErr.Timeout() {
		return Wrap(err, service, KindTimeout, "network timeout")
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return Wrap(err, service, KindConnection, "DNS lookup failed for %s", dnsErr.Name)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		var errno syscall.Errno
		if errors.As(opErr.Err, &errno) {
			switch errno {
			case syscall.ECONNREFUSED:
				return Wrap(err, service, KindConnection, "connection refused")
			case syscall.ECONNRESET:
				return Wrap(err, service, KindConnection, "connection reset by peer")
			case syscall.ETIMEDOUT:
				return Wrap(err, service, KindTimeout, "connection timed out")
			}
		}
		return Wrap(err, service, KindConnection, "network operation failed")
	}

	// Fall back to message inspection for wrapped transport errors that lost
	// their concrete type along the way.
	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "unauthorized", "invalid api key", "invalid_auth", "forbidden", "permission denied"):
		return wrapNonRetryable(err, service, KindAuth, "authentication failed")
	case containsAny(msg, "not found", "not_found", "no such"):
		return wrapNonRetryable(err, service, KindNotFound, "resource not found")
	case containsAny(msg, "invalid request", "invalid_request", "malformed", "missing required"):
		return wrapNonRetryable(err, service, KindValidation, "invalid request")
	case containsAny(msg, "rate limit", "rate_limited", "too many requests"):
		return Wrap(err, service, KindRateLimit, "rate limited")
	case containsAny(msg, "timeout", "timed out", "i/o timeout", "deadline exceeded"):
		return Wrap(err, service, KindTimeout, "request timed out")
	case containsAny(msg, "connection refused", "connection reset", "broken pipe", "network is unreachable", "eof"):
		return Wrap(err, service, KindConnection, "connection failed")
	}

	return Wrap(err, service, KindUnknown, "unexpected failure")
}

// FromHTTPStatus classifies a non-2xx HTTP response from an integration.
// retryAfter carries the parsed Retry-After header (zero when absent); it is
// attached only to rate-limit errors, where the server's hint supersedes
// computed backoff.
func FromHTTPStatus(service string, status int, body string, retryAfter time.Duration) *Classified {
	summary := body
	if len(summary) > 200 {
		summary = summary[:200]
	}

	var classified *Classified
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		classified = New(service, KindAuth, "request rejected with status %d", status)
	case status == http.StatusNotFound:
		classified = New(service, KindNotFound, "resource not found (status %d)", status)
	case status == http.StatusTooManyRequests:
		classified = New(service, KindRateLimit, "rate limited (status %d)", status)
		classified.RetryAfter = retryAfter
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		classified = New(service, KindValidation, "request rejected with status %d", status)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		classified = New(service, KindTimeout, "upstream timed out (status %d)", status)
	case status >= 500:
		classified = New(service, KindUpstream, "upstream error (status %d)", status)
	default:
		classified = New(service, KindUnknown, "unexpected status %d", status)
	}

	if summary != "" {
		classified.WithContext("response_body", summary)
	}
	classified.WithContext("status_code", strconv.Itoa(status))
	return classified
}

func wrapNonRetryable(err error, service string, kind Kind, msg string) *Classified {
	classified := Wrap(err, service, kind, "%s", msg)
	classified.Retryable = false
	return classified
}

func asNetError(err error) (net.Error, bool) {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr, true
	}
	return nil, false
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
