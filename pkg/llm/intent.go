package llm

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dbrevel/queryplane/internal/apperrors"
)

// minIntentLength and maxIntentLength match models/query.py's
// QueryRequest.intent field constraint (1-5000 characters).
const (
	minIntentLength = 1
	maxIntentLength = 5000
)

// promptInjectionPhrases is the exact case-insensitive substring blacklist
// from models/query.py's QueryRequest intent validator.
var promptInjectionPhrases = []string{
	"ignore all",
	"ignore previous",
	"ignore the above",
	"ignore your instructions",
	"ignore your previous instructions",
	"forget your instructions",
	"forget what you are doing",
	"do not follow your instructions",
	"disregard",
	"system:",
	"assistant:",
	"you are now",
	"you are a new assistant",
	"your new instructions are",
	"pretend you are",
}

// ValidateIntent rejects an intent string that is empty, too long, or
// contains a known prompt-injection phrase (spec.md §4.6's precondition on
// Synthesize, matching models/query.py's field_validator).
func ValidateIntent(intent string) error {
	n := utf8.RuneCountInString(intent)
	if n < minIntentLength || n > maxIntentLength {
		return apperrors.New(apperrors.InvalidIntent, "llm.ValidateIntent",
			fmt.Errorf("intent must be between %d and %d characters, got %d", minIntentLength, maxIntentLength, n))
	}
	if strings.TrimSpace(intent) == "" {
		return apperrors.New(apperrors.InvalidIntent, "llm.ValidateIntent",
			fmt.Errorf("intent must not be blank"))
	}

	lower := strings.ToLower(intent)
	for _, phrase := range promptInjectionPhrases {
		if strings.Contains(lower, phrase) {
			return apperrors.New(apperrors.InvalidIntent, "llm.ValidateIntent",
				fmt.Errorf("intent contains a disallowed phrase: %q", phrase))
		}
	}
	return nil
}
