package llm

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsTransientError(t *testing.T) {
	transient := []error{
		errors.New("request timeout"),
		errors.New("Connection reset by peer"),
		errors.New("Rate Limit exceeded"),
		fmt.Errorf("upstream returned 429"),
		errors.New("502 bad gateway"),
		errors.New("503 service unavailable"),
	}
	for _, err := range transient {
		if !IsTransientError(err) {
			t.Errorf("expected %v to be transient", err)
		}
	}

	permanent := []error{
		errors.New("invalid api key"),
		errors.New("400 bad request"),
		errors.New("model not found"),
	}
	for _, err := range permanent {
		if IsTransientError(err) {
			t.Errorf("expected %v to be permanent", err)
		}
	}

	if IsTransientError(nil) {
		t.Error("nil error must not be transient")
	}
}

func TestClassifyErrorFallback(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{errors.New("something broke"), 500},
		{errors.New("rate limit hit"), 429},
		{errors.New("got 502 from upstream"), 502},
		{errors.New("503 unavailable"), 503},
	}

	for _, tc := range cases {
		classified := ClassifyError(tc.err)
		if classified.StatusCode != tc.status {
			t.Errorf("ClassifyError(%v) status = %d, want %d", tc.err, classified.StatusCode, tc.status)
		}
		if classified.Cause != tc.err.Error() {
			t.Errorf("cause should carry the original error text, got %q", classified.Cause)
		}
	}
}
