package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/kendallhq/kendall/internal/assistant_service/domain"
)

// Updatable record fields, keyed by storage column name. The camelCase JSON
// view used by the transport layer is mapped down to these at the boundary;
// everything below the repository speaks snake_case.
const (
	FieldStatus                  = "status"
	FieldErrorDetail             = "error_detail"
	FieldAgentID                 = "agent_id"
	FieldPhoneNumber             = "phone_number"
	FieldPhoneProviderID         = "phone_provider_id"
	FieldPhoneProviderAccountRef = "phone_provider_account_ref"
	FieldVoiceChoice             = "voice_choice"
	FieldAnalyzedFileContent     = "analyzed_file_content"
)

// RecordRepository persists assistant records.
type RecordRepository interface {
	Create(ctx context.Context, record *domain.AssistantRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.AssistantRecord, error)
	// Update applies a partial update. Keys must be Field* constants; unknown
	// keys are rejected.
	Update(ctx context.Context, id uuid.UUID, fields map[string]any) error
}

// MessageRepository persists chat messages.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.ChatMessage) error
	ListByRecordID(ctx context.Context, recordID uuid.UUID, limit int) ([]*domain.ChatMessage, error)
}

// ContactRepository persists relationship contacts extracted from chat traffic.
type ContactRepository interface {
	// Upsert inserts the contact or bumps its mention count if a contact with
	// the same name already exists for the record.
	Upsert(ctx context.Context, contact *domain.Contact) error
	ListByRecordID(ctx context.Context, recordID uuid.UUID) ([]*domain.Contact, error)
}

// MemoryRepository persists free-form memories.
type MemoryRepository interface {
	Create(ctx context.Context, memory *domain.Memory) error
	ListByRecordID(ctx context.Context, recordID uuid.UUID, limit int) ([]*domain.Memory, error)
}
