package enrichment

import (
	"encoding/json"
	"fmt"
	"strings"
)

// minContentLength is the threshold below which derived content is treated as
// not-yet-arrived noise.
const minContentLength = 20

// objectArtifact is the stringification artifact some upstream pipelines emit
// instead of real content.
const objectArtifact = "[object Object]"

// Keys tried, in order, when extracting text out of object fragments.
var extractionKeys = []string{"text", "content", "value", "analysis"}

// Lifecycle tags on derived-content objects.
var (
	pendingStates  = map[string]struct{}{"loading": {}, "pending": {}}
	terminalStates = map[string]struct{}{"ready": {}, "complete": {}, "generated": {}}
)

// Normalize flattens the many shapes the enrichment pipeline may hand back
// into a plain string. It is total, side-effect free, and idempotent over
// string inputs:
//
//	nil                    -> ""
//	string                 -> itself
//	array                  -> fragments stringified and newline-joined
//	object, lifecycle tag  -> "" while loading/pending, else extracted value
//	object, no tag         -> extracted value, else JSON
//	other primitive        -> fmt.Sprint
func Normalize(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, normalizeFragment(item))
		}
		return strings.Join(parts, "\n")
	case map[string]any:
		return normalizeObject(v)
	default:
		return fmt.Sprint(v)
	}
}

// ContentArrived reports whether raw carries usable derived content, and
// returns the normalized content when it does. Content still mid-lifecycle,
// shorter than the minimum, or equal to a stringification artifact counts as
// not arrived.
func ContentArrived(raw any) (string, bool) {
	content := strings.TrimSpace(Normalize(raw))
	if len(content) < minContentLength {
		return "", false
	}
	if content == objectArtifact {
		return "", false
	}
	return content, true
}

func normalizeFragment(item any) string {
	if obj, ok := item.(map[string]any); ok {
		for _, key := range extractionKeys {
			if s, ok := obj[key].(string); ok {
				return s
			}
		}
		return jsonString(obj)
	}
	return Normalize(item)
}

func normalizeObject(obj map[string]any) string {
	state := lifecycleTag(obj)
	if _, pending := pendingStates[state]; pending {
		return ""
	}

	for _, key := range extractionKeys {
		if inner, ok := obj[key]; ok && inner != nil {
			return Normalize(inner)
		}
	}

	if _, terminal := terminalStates[state]; terminal {
		// Tagged terminal but carrying no recognizable value field.
		return ""
	}
	return jsonString(obj)
}

func lifecycleTag(obj map[string]any) string {
	for _, key := range []string{"state", "status"} {
		if s, ok := obj[key].(string); ok {
			return strings.ToLower(s)
		}
	}
	return ""
}

func jsonString(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
