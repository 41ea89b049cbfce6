package domain

import "time"

// Subjects for provisioning lifecycle events published to NATS.
const (
	SubjectProvisioningCompleted = "assistant.provisioning.completed"
	SubjectProvisioningFailed    = "assistant.provisioning.failed"
)

// ProvisioningEvent is the payload published when a provisioning run reaches
// a terminal state. Publishing is best-effort and never fails the request.
type ProvisioningEvent struct {
	RecordID    string       `json:"record_id"`
	AgentID     string       `json:"agent_id,omitempty"`
	PhoneNumber string       `json:"phone_number,omitempty"`
	Status      RecordStatus `json:"status"`
	Error       string       `json:"error,omitempty"`
	OccurredAt  time.Time    `json:"occurred_at"`
}
