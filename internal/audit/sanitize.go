package audit

import "strings"

// RedactedMarker replaces the value of any sensitive field before an entry
// leaves the process.
const RedactedMarker = "<REDACTED>"

// sensitiveFragments are matched case-insensitively as substrings of field
// names.
var sensitiveFragments = []string{"password", "pwd", "pw", "secret", "token"}

func isSensitiveField(key string) bool {
	lowered := strings.ToLower(key)
	for _, fragment := range sensitiveFragments {
		if strings.Contains(lowered, fragment) {
			return true
		}
	}
	return false
}

// Sanitize returns a deep copy of the payload with every sensitive field
// value replaced by RedactedMarker, recursing into nested maps and lists.
// The caller's payload is never mutated.
func Sanitize(payload map[string]any) map[string]any {
	out, _ := sanitizeValue(payload).(map[string]any)
	return out
}

func sanitizeValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, inner := range v {
			if isSensitiveField(key) {
				out[key] = RedactedMarker
				continue
			}
			out[key] = sanitizeValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, inner := range v {
			out[i] = sanitizeValue(inner)
		}
		return out
	default:
		return value
	}
}
