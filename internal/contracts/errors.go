package contracts

import "errors"

// Error taxonomy for upstream fetches. Adapter failures are recoverable:
// the gateway moves on to the next source. Only configuration errors are
// fatal, and those are rejected at run start.
var (
	// ErrNetwork: timeout, connection refused, 5xx.
	ErrNetwork = errors.New("network error")

	// ErrFormat: the upstream answered with an unexpected payload shape.
	// Treated like ErrNetwork for fallback purposes but logged distinctly.
	ErrFormat = errors.New("format error")

	// ErrRateLimited: explicit throttle signal (HTTP 429 or equivalent).
	// Triggers immediate fallback to the next source, no same-source retry.
	ErrRateLimited = errors.New("rate limited")

	// ErrAllSourcesExhausted: every configured source failed for a field.
	// The field becomes MISSING unless degradation permits a default.
	ErrAllSourcesExhausted = errors.New("all sources exhausted")

	// ErrConfiguration: invalid run configuration. Fatal, pre-network.
	ErrConfiguration = errors.New("configuration error")

	// ErrMissing: the requested value is not available from any source.
	ErrMissing = errors.New("missing")

	// ErrUnsupported: this source does not serve the requested kind at
	// all (e.g. a list-only provider asked for klines). Recoverable, the
	// gateway just moves on.
	ErrUnsupported = errors.New("unsupported request kind")

	// ErrRunInFlight: a newer run superseded this one (single-flight).
	ErrRunInFlight = errors.New("run superseded")
)

// Recoverable reports whether err may be satisfied by trying another
// source or by degrading, rather than aborting the run.
func Recoverable(err error) bool {
	return errors.Is(err, ErrNetwork) ||
		errors.Is(err, ErrFormat) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrUnsupported) ||
		errors.Is(err, ErrAllSourcesExhausted)
}
