package extraction

import (
	"regexp"
	"strings"
)

// ContactCandidate is a person mentioned in conversation, with the
// relationship word that introduced them when one was present.
type ContactCandidate struct {
	Name         string
	Relationship string
}

var relationshipWords = `mom|mother|dad|father|sister|brother|wife|husband|partner|boss|coworker|colleague|friend|neighbor|doctor|dentist|son|daughter|aunt|uncle|cousin|grandma|grandpa`

// Patterns tried in order; the first pass collects relationship-introduced
// names ("my sister Anna"), the second bare action-verb mentions
// ("call John", "text Maria").
var (
	relationPattern = regexp.MustCompile(`(?i)\bmy\s+(` + relationshipWords + `)\s+([A-Z][a-z]+)`)
	actionPattern   = regexp.MustCompile(`(?i)\b(?:call|text|email|message|remind|tell)\s+([A-Z][a-z]+)\b`)
)

// nonNames filters pronouns and common sentence-start words the action
// pattern would otherwise capture.
var nonNames = map[string]struct{}{
	"me": {}, "him": {}, "her": {}, "them": {}, "us": {}, "you": {},
	"my": {}, "the": {}, "a": {}, "an": {}, "everyone": {}, "someone": {},
}

// ExtractContacts pulls contact-name candidates out of free-form chat text.
func ExtractContacts(text string) []ContactCandidate {
	seen := make(map[string]int)
	var out []ContactCandidate

	for _, m := range relationPattern.FindAllStringSubmatch(text, -1) {
		name := titleCase(m[2])
		if _, skip := nonNames[strings.ToLower(name)]; skip {
			continue
		}
		if idx, dup := seen[name]; dup {
			if out[idx].Relationship == "" {
				out[idx].Relationship = strings.ToLower(m[1])
			}
			continue
		}
		seen[name] = len(out)
		out = append(out, ContactCandidate{Name: name, Relationship: strings.ToLower(m[1])})
	}

	for _, m := range actionPattern.FindAllStringSubmatch(text, -1) {
		name := titleCase(m[1])
		if _, skip := nonNames[strings.ToLower(name)]; skip {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = len(out)
		out = append(out, ContactCandidate{Name: name})
	}

	return out
}

func titleCase(word string) string {
	lower := strings.ToLower(word)
	if lower == "" {
		return ""
	}
	return strings.ToUpper(lower[:1]) + lower[1:]
}
