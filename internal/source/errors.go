package source

import (
	"errors"
	"fmt"
	"strings"
)

// Failure markers for upstream calls. The orchestrator keys its retry and
// cooldown decisions off these via errors.Is.
var (
	// ErrRateLimited means the upstream signalled throttling. Global in
	// nature: the whole cycle backs off, not just the failing title.
	ErrRateLimited = errors.New("rate limited")
	// ErrNetwork marks transient transport failures worth retrying.
	ErrNetwork = errors.New("network failure")
	// ErrMalformed marks responses we could not interpret. Permanent for the
	// attempt; retrying the same payload will not help.
	ErrMalformed = errors.New("malformed response")
)

// Wrap tags an error with the provided marker while keeping operation context
// in the message. The marker should be one of the exported sentinels above.
func Wrap(marker error, operation, message string, err error) error {
	detail := buildDetail(operation, message)
	if marker == nil {
		marker = ErrNetwork
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Transient reports whether an error is worth a same-cycle retry.
func Transient(err error) bool {
	return errors.Is(err, ErrNetwork)
}

func buildDetail(operation, message string) string {
	parts := make([]string, 0, 2)
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "source failure"
	}
	return strings.Join(parts, ": ")
}
