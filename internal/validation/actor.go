// Package validation holds input checks shared by every mutating operation.
package validation

import (
	"strings"
	"unicode"

	"github.com/skeinhq/skein/internal/types"
)

// MaxActorLength caps actor identity strings. Long "actors" are almost
// always prompt fragments pasted into the wrong argument.
const MaxActorLength = 128

// Actor validates and normalizes an actor identity string for audit
// attribution. The control/format scan runs before trimming so a leading
// or trailing control character is caught even though plain whitespace is
// trimmed. Accented and non-ASCII letters pass unchanged.
func Actor(actor string) (string, error) {
	for _, r := range actor {
		if unicode.IsControl(r) || unicode.Is(unicode.Cf, r) {
			return "", types.Validationf("actor contains control or format character U+%04X", r)
		}
	}
	trimmed := strings.TrimSpace(actor)
	if trimmed == "" {
		return "", types.Validationf("actor must not be empty")
	}
	if len(trimmed) > MaxActorLength {
		return "", types.Validationf("actor must be %d characters or less (got %d)", MaxActorLength, len(trimmed))
	}
	return trimmed, nil
}

// Priority validates a priority value arriving as untyped input. Booleans
// are explicitly rejected even though they coerce to integers in looser
// runtimes, and floats only pass when integral representations are not
// involved at all.
func Priority(value any) (int, error) {
	switch v := value.(type) {
	case bool:
		return 0, types.Validationf("priority must be an integer between 0 and 4, not a boolean")
	case int:
		return checkPriorityRange(v)
	case int64:
		return checkPriorityRange(int(v))
	case float64:
		// JSON decodes all numbers to float64; accept only whole values.
		if v != float64(int(v)) {
			return 0, types.Validationf("priority must be an integer between 0 and 4 (got %v)", v)
		}
		return checkPriorityRange(int(v))
	default:
		return 0, types.Validationf("priority must be an integer between 0 and 4 (got %T)", value)
	}
}

func checkPriorityRange(p int) (int, error) {
	if p < 0 || p > 4 {
		return 0, types.Validationf("priority must be between 0 and 4 (got %d)", p)
	}
	return p, nil
}
