package turn

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for turn operations, checked with errors.Is.
var (
	// ErrTurnActive indicates a turn is already streaming for this
	// session. The host UI is expected to disable the send affordance
	// while streaming; the controller does not queue.
	ErrTurnActive = errors.New("a turn is already active")

	// ErrEmptyMessage indicates Send was called with neither text nor
	// staged attachments.
	ErrEmptyMessage = errors.New("message text or attachments required")

	// ErrCreditsExhausted indicates the workspace ran out of usage
	// credits. The host UI shows a paywall instead of a generic error
	// bubble.
	ErrCreditsExhausted = errors.New("usage credits exhausted")
)

// creditPhrases is the centralized substring table for detecting credit
// exhaustion in surfaced error text. The server does not emit a
// structured error code for this yet, so classification is best-effort
// string matching; keep every phrase here and covered by tests.
var creditPhrases = []string{
	"credits exhausted",
	"insufficient credits",
	"out of credits",
	"no credits remaining",
	"message limit reached",
	"upgrade your plan",
}

// classify turns surfaced error text into a typed error. Credit
// exhaustion maps to ErrCreditsExhausted; anything else stays a plain
// stream error.
func classify(message string) error {
	lower := strings.ToLower(message)
	for _, phrase := range creditPhrases {
		if strings.Contains(lower, phrase) {
			return fmt.Errorf("%s: %w", message, ErrCreditsExhausted)
		}
	}
	return errors.New(message)
}
