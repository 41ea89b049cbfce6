package app

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kendallhq/kendall/internal/assistant_service/domain"
	"github.com/kendallhq/kendall/internal/assistant_service/extraction"
	"github.com/kendallhq/kendall/internal/assistant_service/repository"
)

const chatHistoryLimit = 50

// Explicit "remember that ..." requests become memories verbatim.
var rememberPattern = regexp.MustCompile(`(?i)\bremember\s+(?:that\s+)?(.+)`)

// ChatAppService stores chat traffic and mines it for relationship data.
// Extraction failures never fail the message write.
type ChatAppService struct {
	records  repository.RecordRepository
	messages repository.MessageRepository
	contacts repository.ContactRepository
	memories repository.MemoryRepository
	logger   *slog.Logger
}

func NewChatAppService(
	records repository.RecordRepository,
	messages repository.MessageRepository,
	contacts repository.ContactRepository,
	memories repository.MemoryRepository,
	logger *slog.Logger,
) *ChatAppService {
	return &ChatAppService{
		records:  records,
		messages: messages,
		contacts: contacts,
		memories: memories,
		logger:   logger.With("service", "chat_app"),
	}
}

// PostMessage stores one message on the record's chat thread. Owner messages
// additionally feed contact extraction, memory capture, and sentiment scoring.
func (s *ChatAppService) PostMessage(ctx context.Context, recordID uuid.UUID, role domain.ChatRole, content string) (*domain.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.NewClientError("message content must not be empty")
	}
	if role != domain.RoleOwner && role != domain.RoleAssistant {
		return nil, domain.NewClientError(fmt.Sprintf("unknown message role %q", role))
	}

	// The record must exist and be addressable before we accept traffic for it.
	if _, err := s.records.GetByID(ctx, recordID); err != nil {
		return nil, err
	}

	msg := &domain.ChatMessage{
		ID:        uuid.New(),
		RecordID:  recordID,
		Role:      role,
		Content:   content,
		Sentiment: extraction.ScoreSentiment(content),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to store chat message: %w", err)
	}

	if role == domain.RoleOwner {
		s.mine(ctx, recordID, content)
	}
	return msg, nil
}

// History returns the most recent messages for a record.
func (s *ChatAppService) History(ctx context.Context, recordID uuid.UUID) ([]*domain.ChatMessage, error) {
	if _, err := s.records.GetByID(ctx, recordID); err != nil {
		return nil, err
	}
	return s.messages.ListByRecordID(ctx, recordID, chatHistoryLimit)
}

func (s *ChatAppService) mine(ctx context.Context, recordID uuid.UUID, content string) {
	logger := s.logger.With("record_id", recordID)

	for _, candidate := range extraction.ExtractContacts(content) {
		contact := &domain.Contact{
			ID:           uuid.New(),
			RecordID:     recordID,
			Name:         candidate.Name,
			Relationship: candidate.Relationship,
			MentionCount: 1,
			LastSeenAt:   time.Now().UTC(),
		}
		if err := s.contacts.Upsert(ctx, contact); err != nil {
			logger.WarnContext(ctx, "Failed to upsert extracted contact", "name", candidate.Name, "error", err)
		}
	}

	if m := rememberPattern.FindStringSubmatch(content); m != nil {
		memory := &domain.Memory{
			ID:        uuid.New(),
			RecordID:  recordID,
			Content:   strings.TrimSpace(m[1]),
			CreatedAt: time.Now().UTC(),
		}
		if err := s.memories.Create(ctx, memory); err != nil {
			logger.WarnContext(ctx, "Failed to store memory", "error", err)
		}
	}
}
