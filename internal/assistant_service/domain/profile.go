package domain

// VoiceProvider identifies which voice backend a resolved voice belongs to.
type VoiceProvider string

const (
	VoiceProviderElevenLabs VoiceProvider = "11labs"
	VoiceProviderVAPI       VoiceProvider = "vapi"
)

// VoiceSelection is the transient resolution of a user voice input to a
// provider/id pair understood by the agent platform. It is never persisted
// on its own.
type VoiceSelection struct {
	Provider VoiceProvider
	VoiceID  string
}

// AgentProfile is the structured bundle passed to the agent platform when
// creating or updating an agent. The enrichment update must be built from the
// same stored fields as the creation call, differing only in the knowledge
// block, so the assistant's personality does not drift between activation and
// enrichment.
type AgentProfile struct {
	Name         string
	SystemPrompt string
	FirstMessage string

	// Voice is nil when the owner made no explicit voice choice; the platform
	// default applies.
	Voice *VoiceSelection

	// ForwardingNumber is an E.164 number calls are forwarded to, or empty
	// when forwarding is disabled or the owner's number could not be
	// formatted validly.
	ForwardingNumber string
}

// PhoneBinding is the result of purchasing a number and binding it to an
// agent. Once bound it is not expected to move to another agent.
type PhoneBinding struct {
	// PhoneNumber is E.164, or a human-readable placeholder when the real
	// number could not be extracted from the provider response. Placeholders
	// must never be delivered to the owner as a contact number.
	PhoneNumber        string
	ProviderID         string
	ProviderAccountRef string
}
