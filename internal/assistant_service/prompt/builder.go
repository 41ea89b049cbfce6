package prompt

import (
	"fmt"
	"strings"

	"github.com/kendallhq/kendall/internal/assistant_service/domain"
)

// traitDescriptions maps the discrete personality trait choices from the
// signup wizard to the prose fed into the system prompt.
var traitDescriptions = map[string]string{
	"warm":         "you speak with genuine warmth and make people feel at ease",
	"witty":        "you have a quick, playful sense of humor and enjoy light banter",
	"professional": "you keep a polished, businesslike tone and get to the point",
	"direct":       "you are straightforward and never bury the answer",
	"patient":      "you explain things calmly and never rush the caller",
	"upbeat":       "you bring an energetic, optimistic tone to every conversation",
	"calm":         "you keep a steady, reassuring presence even when the caller is stressed",
}

const knowledgeDirectives = `KNOWLEDGE

The following is everything you know about the owner's documents and context. ` +
	`Treat it as your only source of facts about the owner's files. You must not ` +
	`invent, guess, or extrapolate facts that are not stated below. If a caller ` +
	`asks about something not covered here, say you don't have that information ` +
	`and offer to take a message instead.`

// Build assembles the agent profile from the stored record fields plus the
// currently available knowledge block. The enrichment update rebuilds the
// profile from the same fields, so for a given record the output differs only
// in the knowledge block; any other divergence would make the assistant's
// personality shift between activation and enrichment. Voice selection is
// attached by the caller.
func Build(rec *domain.AssistantRecord, knowledge string) domain.AgentProfile {
	name := rec.AssistantName
	if name == "" {
		name = "Kendall"
	}

	sections := make([]string, 0, 6)

	// Identity framing.
	identity := fmt.Sprintf("You are %s, the personal AI assistant of %s.", name, rec.OwnerName)
	if rec.Nickname != "" {
		identity += fmt.Sprintf(" Friends call you %s.", rec.Nickname)
	}
	identity += " You answer the phone on the owner's behalf, take messages, and help callers with anything the owner has shared with you."
	sections = append(sections, identity)

	if p := personalityBlock(rec); p != "" {
		sections = append(sections, p)
	}

	if rec.UseCase != "" {
		sections = append(sections, fmt.Sprintf("Your primary purpose: %s.", strings.TrimRight(rec.UseCase, ".")))
	}

	if rec.Boundaries != "" {
		sections = append(sections, "BOUNDARIES\n\n"+rec.Boundaries)
	}

	if rec.ContextRules != "" {
		sections = append(sections, "CONTEXT AND RULES\n\n"+rec.ContextRules)
	}

	if strings.TrimSpace(knowledge) != "" {
		sections = append(sections, knowledgeDirectives+"\n\n"+knowledge)
	}

	profile := domain.AgentProfile{
		Name:         name,
		SystemPrompt: strings.Join(sections, "\n\n"),
		FirstMessage: fmt.Sprintf("Hi, this is %s. How can I help you?", name),
	}

	if rec.ForwardingEnabled {
		// Forwarding is silently omitted rather than sent malformed when the
		// owner's number cannot be formatted.
		if number, err := domain.NormalizeE164(rec.OwnerMobile); err == nil {
			profile.ForwardingNumber = number
		}
	}

	return profile
}

// personalityBlock renders either the free-text personality or the combined
// discrete trait choices. Multiple traits are joined with connective phrasing
// rather than listed, so the prompt reads as one description.
func personalityBlock(rec *domain.AssistantRecord) string {
	if rec.CustomPersonality != "" {
		return "PERSONALITY\n\n" + rec.CustomPersonality
	}

	descriptions := make([]string, 0, len(rec.PersonalityTraits))
	for _, trait := range rec.PersonalityTraits {
		if d, ok := traitDescriptions[strings.ToLower(strings.TrimSpace(trait))]; ok {
			descriptions = append(descriptions, d)
		}
	}
	if len(descriptions) == 0 {
		return ""
	}

	var joined string
	switch len(descriptions) {
	case 1:
		joined = descriptions[0]
	case 2:
		joined = descriptions[0] + ", and at the same time " + descriptions[1]
	default:
		joined = strings.Join(descriptions[:len(descriptions)-1], "; beyond that, ") +
			"; and finally, " + descriptions[len(descriptions)-1]
	}

	return "PERSONALITY\n\nIn every conversation, " + joined + "."
}
