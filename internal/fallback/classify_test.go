package fallback

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"http 429", errors.New("googleapi: Error 429: Resource has been exhausted"), KindRateLimited},
		{"quota", errors.New("Quota exceeded for quota metric"), KindRateLimited},
		{"resource exhausted status", errors.New("rpc error: code = ResourceExhausted desc = RESOURCE_EXHAUSTED"), KindRateLimited},
		{"too many requests", errors.New("too many requests, slow down"), KindRateLimited},
		{"http 404", errors.New("Error 404: model not found"), KindUnavailable},
		{"not supported", errors.New("this model is not supported for generateContent"), KindUnavailable},
		{"http 500", errors.New("Error 500: internal error encountered"), KindTransient},
		{"http 503", errors.New("Error 503: the model is overloaded"), KindTransient},
		{"deadline", errors.New("context deadline exceeded"), KindTransient},
		{"connection reset", errors.New("read tcp: connection reset by peer"), KindTransient},
		{"invalid key", errors.New("API key not valid. Please pass a valid API key."), KindFatal},
		{"safety block", errors.New("response blocked by safety settings"), KindFatal},
		{"wrapped rate limit", fmt.Errorf("generate: %w", errors.New("429 RESOURCE_EXHAUSTED")), KindRateLimited},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Classify(tc.err); got != tc.want {
				t.Errorf("Classify(%v) = %s, want %s", tc.err, got, tc.want)
			}
		})
	}
}

func TestKindString(t *testing.T) {
	t.Parallel()

	cases := map[Kind]string{
		KindFatal:       "fatal",
		KindRateLimited: "rate_limited",
		KindUnavailable: "unavailable",
		KindTransient:   "transient",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}
