package domain

import "errors"

// ErrorKind classifies a failure per spec §7's taxonomy. It is not a Go
// error type itself — it rides inside a Failure response so downstream
// consumers on the bus can decide whether to skip or dead-letter.
type ErrorKind string

const (
	// ErrorKindTransientTransport covers HTTP timeouts, socket resets,
	// upstream 5xx, and bus delivery timeouts. Policy: bounded retry, then
	// drop the affected slot or surface as a failed response.
	ErrorKindTransientTransport ErrorKind = "transient_transport"

	// ErrorKindMalformedPayload covers JSON/Base64/UTF-8 decode failures and
	// missing query parameters. Policy: log, emit a failed response, and
	// always continue the underlying browser request.
	ErrorKindMalformedPayload ErrorKind = "malformed_payload"

	// ErrorKindResourceExhaustion covers BrowserPoolEmpty and closed
	// semaphores. Policy: log, drop the command.
	ErrorKindResourceExhaustion ErrorKind = "resource_exhaustion"

	// ErrorKindFatal covers browser launch failure, listener bind failure,
	// and missing configuration. Policy: abort the process at startup.
	ErrorKindFatal ErrorKind = "fatal"

	// ErrorKindPreflightArtifact marks a response intercepted without a
	// Cookie header. Policy: silently continue, do not emit.
	ErrorKindPreflightArtifact ErrorKind = "preflight_artifact"
)

// Sentinel errors for the resource-exhaustion and fatal kinds that have a
// single, well-known cause and therefore benefit from errors.Is comparisons
// rather than string matching.
var (
	// ErrBrowserPoolEmpty is logged when a round-robin dispatch has no
	// workers to deliver to; the command is then dropped.
	ErrBrowserPoolEmpty = errors.New("domain: browser pool is empty")

	// ErrSemaphoreClosed names the case where a bounded-concurrency permit
	// cannot be acquired because the owning component is shutting down. The
	// sinks in this module stop on a failed Acquire without returning it.
	ErrSemaphoreClosed = errors.New("domain: semaphore closed")
)
