package fallback

import "strings"

// Kind classifies a backend generation error into the orchestrator's
// control-flow categories.
type Kind int

const (
	// KindFatal is a non-recoverable error (bad prompt, auth failure).
	// Aborts the whole call; never retried, never cascaded.
	KindFatal Kind = iota
	// KindRateLimited means this model's quota is spent. Cascade to the next
	// model immediately; no further attempts on this one.
	KindRateLimited
	// KindUnavailable means the model does not exist or is not served for
	// this credential. Cascades like a rate limit but is logged separately
	// since it points at configuration rather than load.
	KindUnavailable
	// KindTransient is a passing failure (5xx, network hiccup). Retry the
	// same model with backoff before advancing.
	KindTransient
)

// String returns the label used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindUnavailable:
		return "unavailable"
	case KindTransient:
		return "transient"
	default:
		return "fatal"
	}
}

// Signature lists per classification. Matching is substring-based over the
// provider's error text: the GenAI backend does not expose stable typed
// errors for quota conditions, so this is the one backend-coupled spot in
// the orchestrator. Keep every signature here and nowhere else.
var (
	rateLimitSignatures = []string{
		"429",
		"rate limit",
		"quota",
		"resource_exhausted",
		"resource exhausted",
		"too many requests",
	}
	unavailableSignatures = []string{
		"404",
		"not found",
		"not_found",
		"not supported",
		"not available",
	}
	transientSignatures = []string{
		"500",
		"502",
		"503",
		"504",
		"internal error",
		"overloaded",
		"temporarily unavailable",
		"deadline exceeded",
		"connection reset",
		"connection refused",
		"unexpected eof",
	}
)

// Classify maps a backend error to its Kind. A nil error has no kind;
// callers must not pass one.
func Classify(err error) Kind {
	msg := strings.ToLower(err.Error())

	for _, sig := range rateLimitSignatures {
		if strings.Contains(msg, sig) {
			return KindRateLimited
		}
	}
	for _, sig := range unavailableSignatures {
		if strings.Contains(msg, sig) {
			return KindUnavailable
		}
	}
	for _, sig := range transientSignatures {
		if strings.Contains(msg, sig) {
			return KindTransient
		}
	}
	return KindFatal
}
