// Package errkind defines the error taxonomy shared by every integration
// adapter and the workflow engine. Raw failures from third-party calls are
// classified into a Classified error carrying a kind tag, the owning service,
// and a retryability decision; callers match on the tag instead of on
// concrete error types.
package errkind

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Kind tags a failure with its position in the taxonomy.
type Kind string

const (
	// KindValidation marks malformed or missing input. Never retryable.
	KindValidation Kind = "validation"
	// KindAuth marks authentication/authorization failures. Never retryable.
	KindAuth Kind = "auth"
	// KindNotFound marks a missing upstream resource. Never retryable.
	KindNotFound Kind = "not_found"
	// KindRateLimit marks a rate-limited request, often carrying a
	// server-suggested wait.
	KindRateLimit Kind = "rate_limit"
	// KindTimeout marks a request that exceeded its deadline.
	KindTimeout Kind = "timeout"
	// KindConnection marks connection-level failures (refused, reset, DNS).
	KindConnection Kind = "connection"
	// KindUpstream marks 5xx-class upstream server errors.
	KindUpstream Kind = "upstream_error"
	// KindUnknown marks failures the classifier could not identify.
	KindUnknown Kind = "unknown"
)

// RetryableByDefault reports whether errors of this kind are retried when a
// policy does not say otherwise. Unknown errors are retryable on purpose:
// most transient integration failures are unknown-shaped network blips, so
// the classifier fails open toward retrying rather than dropping work on the
// floor. Policies can still exclude unknown via their non-retryable set.
func (k Kind) RetryableByDefault() bool {
	switch k {
	case KindRateLimit, KindTimeout, KindConnection, KindUpstream, KindUnknown:
		return true
	default:
		return false
	}
}

// IsValid reports whether k is a known taxonomy tag.
func (k Kind) IsValid() bool {
	switch k {
	case KindValidation, KindAuth, KindNotFound, KindRateLimit,
		KindTimeout, KindConnection, KindUpstream, KindUnknown:
		return true
	default:
		return false
	}
}

// Classified is a failure annotated with its taxonomy kind, the service it
// originated from, and diagnostic context. The original failure is always
// retained as the cause so the full chain survives classification.
type Classified struct {
	// Kind is the taxonomy tag.
	Kind Kind
	// Service scopes the error to the integration that produced it
	// (e.g. "slack", "llm", "notion", "workflow").
	Service string
	// Retryable is the classifier's verdict; retry policies may narrow it.
	Retryable bool
	// Message is the human-readable failure description.
	Message string
	// Context holds key-value diagnostics (status codes, identifiers).
	Context map[string]string
	// RetryAfter is a server-suggested wait before retrying. Zero when the
	// server gave no hint. Only meaningful for rate_limit errors.
	RetryAfter time.Duration

	cause error
}

// Error implements the error interface. The cause chain is included so a
// Classified surfaced as a run record's error message reads end to end.
func (e *Classified) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s: %s", e.Service, e.Kind, e.Message)
	if e.cause != nil && e.cause.Error() != e.Message {
		fmt.Fprintf(&b, ": %s", e.cause.Error())
	}
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", k, e.Context[k]))
		}
		fmt.Fprintf(&b, " (%s)", strings.Join(parts, " "))
	}
	return b.String()
}

// Unwrap exposes the original failure for errors.Is/errors.As.
func (e *Classified) Unwrap() error {
	return e.cause
}

// Cause returns the original failure, or nil if the error was created fresh.
func (e *Classified) Cause() error {
	return e.cause
}

// WithContext attaches a diagnostic key-value pair and returns the error for
// chaining.
func (e *Classified) WithContext(key, value string) *Classified {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// New creates a Classified error with the kind's default retryability.
func New(service string, kind Kind, format string, args ...interface{}) *Classified {
	return &Classified{
		Kind:      kind,
		Service:   service,
		Retryable: kind.RetryableByDefault(),
		Message:   fmt.Sprintf(format, args...),
	}
}

// Wrap classifies an existing failure under the given kind, retaining it as
// the cause.
func Wrap(err error, service string, kind Kind, format string, args ...interface{}) *Classified {
	return &Classified{
		Kind:      kind,
		Service:   service,
		Retryable: kind.RetryableByDefault(),
		Message:   fmt.Sprintf(format, args...),
		cause:     err,
	}
}

// As extracts a Classified from anywhere in err's chain.
func As(err error) (*Classified, bool) {
	var classified *Classified
	if errors.As(err, &classified) {
		return classified, true
	}
	return nil, false
}

// KindOf returns the taxonomy kind of err, or KindUnknown when err carries no
// classification.
func KindOf(err error) Kind {
	if classified, ok := As(err); ok {
		return classified.Kind
	}
	return KindUnknown
}
