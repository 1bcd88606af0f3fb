package guard

import "errors"

// Sentinel errors for the scan pipeline. Callers classify failures with
// errors.Is and degrade the verdict instead of aborting the sweep.
var (
	// ErrQuotaExhausted means the day or month request quota is spent.
	// Waiting will not help within the current window.
	ErrQuotaExhausted = errors.New("request quota exhausted")

	// ErrThrottled means the reputation service itself rejected the call
	// with a quota response, independent of local accounting.
	ErrThrottled = errors.New("throttled by reputation service")

	// ErrNetwork means the reputation service could not be reached.
	ErrNetwork = errors.New("reputation service unreachable")

	// ErrMalformedResponse means the reputation service answered with a
	// body that could not be decoded.
	ErrMalformedResponse = errors.New("malformed reputation response")

	// ErrNotFound is returned by stores when the requested entry is absent.
	ErrNotFound = errors.New("not found")
)
