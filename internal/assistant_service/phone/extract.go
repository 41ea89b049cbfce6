package phone

import (
	"encoding/json"
	"strings"
)

// placeholderPrefix marks a phone value that is NOT a dialable number. The
// orchestrator must never deliver a placeholder to the owner.
const placeholderPrefix = "number pending"

// numberKeys are the field names providers have been observed to use for the
// bound number, tried in order.
var numberKeys = []string{"number", "phoneNumber", "phone_number"}

// extractStrategy attempts to pull a phone number out of one decoded
// response shape.
type extractStrategy func(map[string]any) (string, bool)

// Ordered strategies: top-level fields first, then a nested details lookup.
var strategies = []extractStrategy{
	extractTopLevel,
	extractFromDetails,
}

// ExtractNumber runs the ordered extraction strategies over each raw response
// in turn and returns the first usable number found.
func ExtractNumber(raws ...json.RawMessage) (string, bool) {
	for _, raw := range raws {
		if len(raw) == 0 {
			continue
		}
		var decoded map[string]any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			continue
		}
		for _, strategy := range strategies {
			if number, ok := strategy(decoded); ok {
				return number, true
			}
		}
	}
	return "", false
}

// Placeholder builds the human-readable fallback carrying the provider id for
// manual reconciliation.
func Placeholder(providerID string) string {
	return placeholderPrefix + " (provider ref " + providerID + ")"
}

// IsPlaceholder reports whether a stored phone value is the non-final
// placeholder rather than a dialable number.
func IsPlaceholder(number string) bool {
	return strings.HasPrefix(strings.TrimSpace(number), placeholderPrefix)
}

func extractTopLevel(decoded map[string]any) (string, bool) {
	for _, key := range numberKeys {
		if s, ok := decoded[key].(string); ok && strings.TrimSpace(s) != "" {
			return s, true
		}
	}
	return "", false
}

func extractFromDetails(decoded map[string]any) (string, bool) {
	details, ok := decoded["details"].(map[string]any)
	if !ok {
		return "", false
	}
	return extractTopLevel(details)
}
