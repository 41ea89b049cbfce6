package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kendallhq/kendall/internal/assistant_service/domain"
)

type PgMessageRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewPgMessageRepository(db *pgxpool.Pool, logger *slog.Logger) *PgMessageRepository {
	return &PgMessageRepository{db: db, logger: logger.With("repository", "chat_messages")}
}

func (r *PgMessageRepository) Create(ctx context.Context, msg *domain.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (id, record_id, role, content, sentiment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx, query, msg.ID, msg.RecordID, msg.Role, msg.Content, msg.Sentiment, msg.CreatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error creating chat message", "error", err, "record_id", msg.RecordID)
		return fmt.Errorf("failed to create chat message: %w", err)
	}
	return nil
}

func (r *PgMessageRepository) ListByRecordID(ctx context.Context, recordID uuid.UUID, limit int) ([]*domain.ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, record_id, role, content, sentiment, created_at
		FROM chat_messages
		WHERE record_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, recordID, limit)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing chat messages", "error", err, "record_id", recordID)
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	defer rows.Close()

	var messages []*domain.ChatMessage
	for rows.Next() {
		msg := &domain.ChatMessage{}
		if err := rows.Scan(&msg.ID, &msg.RecordID, &msg.Role, &msg.Content, &msg.Sentiment, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
