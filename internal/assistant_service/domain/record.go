package domain

import (
	"time"

	"github.com/google/uuid"
)

// RecordStatus is the provisioning lifecycle status of an assistant record.
type RecordStatus string

const (
	StatusProcessing RecordStatus = "processing"
	StatusActive     RecordStatus = "active"
	StatusError      RecordStatus = "error"
)

// AssistantRecord is the persistent row representing one provisioned
// owner/assistant pairing. It is created at the start of provisioning and
// mutated by the orchestrator at every step.
type AssistantRecord struct {
	ID uuid.UUID

	// Owner identity.
	OwnerName    string
	OwnerEmail   string
	OwnerMobile  string

	// Assistant identity.
	AssistantName string
	Nickname      string

	// Personality configuration. Either discrete trait choices or a free-text
	// personality; boundaries and use case shape the system prompt.
	PersonalityTraits  []string
	CustomPersonality  string
	Boundaries         string
	UseCase            string
	ContextRules       string
	ForwardingEnabled  bool
	VoiceChoice        string

	// Derived knowledge, populated asynchronously by the external enrichment
	// pipeline. May be absent or mid-flight for a bounded period after creation.
	AttachedFileURLs    []string
	AnalyzedFileContent string

	// Provisioning outputs.
	AgentID                 string
	PhoneNumber             string
	PhoneProviderID         string
	PhoneProviderAccountRef string

	Status      RecordStatus
	ErrorDetail string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChatRole identifies the author of a chat message.
type ChatRole string

const (
	RoleOwner     ChatRole = "owner"
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage is one message exchanged over the web/text channel.
type ChatMessage struct {
	ID        uuid.UUID
	RecordID  uuid.UUID
	Role      ChatRole
	Content   string
	Sentiment string
	CreatedAt time.Time
}

// Contact is a lightweight relationship extracted from conversation traffic.
type Contact struct {
	ID           uuid.UUID
	RecordID     uuid.UUID
	Name         string
	Relationship string
	MentionCount int
	LastSeenAt   time.Time
}

// Memory is a free-form remembered fact scoped to one record.
type Memory struct {
	ID        uuid.UUID
	RecordID  uuid.UUID
	Content   string
	CreatedAt time.Time
}
