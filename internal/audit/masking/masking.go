package masking

import "strings"

const maskToken = "****"

// MaskReference redacts a payment reference (bank or mobile-money transaction
// id) while keeping the last four characters for reconciliation.
func MaskReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if len(trimmed) <= 4 {
		return maskToken
	}
	return maskToken + trimmed[len(trimmed)-4:]
}

// MaskFields returns a copy of metadata with the named string fields masked.
func MaskFields(metadata map[string]any, keys ...string) map[string]any {
	if len(metadata) == 0 {
		return nil
	}
	out := make(map[string]any, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	for _, key := range keys {
		if s, ok := out[key].(string); ok {
			out[key] = MaskReference(s)
		}
	}
	return out
}
