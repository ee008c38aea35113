package llm

import "strings"

// TransientClassifier decides whether an upstream error is worth retrying.
// Kept pluggable because substring matching against provider error text is
// inherently fragile.
type TransientClassifier func(error) bool

var transientMarkers = []string{
	"timeout",
	"connection",
	"rate limit",
	"429",
	"502",
	"503",
}

// IsTransientError is the default classifier: case-insensitive substring
// match against the usual throttling and availability failures.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
