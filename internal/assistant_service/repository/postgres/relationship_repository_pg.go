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

type PgContactRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewPgContactRepository(db *pgxpool.Pool, logger *slog.Logger) *PgContactRepository {
	return &PgContactRepository{db: db, logger: logger.With("repository", "relationship_contacts")}
}

func (r *PgContactRepository) Upsert(ctx context.Context, contact *domain.Contact) error {
	query := `
		INSERT INTO relationship_contacts (id, record_id, name, relationship, mention_count, last_seen)
		VALUES ($1, $2, $3, $4, 1, $5)
		ON CONFLICT (record_id, name) DO UPDATE SET
			mention_count = relationship_contacts.mention_count + 1,
			relationship  = CASE WHEN EXCLUDED.relationship <> '' THEN EXCLUDED.relationship ELSE relationship_contacts.relationship END,
			last_seen     = EXCLUDED.last_seen
	`
	if contact.LastSeenAt.IsZero() {
		contact.LastSeenAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx, query, contact.ID, contact.RecordID, contact.Name, contact.Relationship, contact.LastSeenAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error upserting contact", "error", err, "record_id", contact.RecordID, "name", contact.Name)
		return fmt.Errorf("failed to upsert contact: %w", err)
	}
	return nil
}

func (r *PgContactRepository) ListByRecordID(ctx context.Context, recordID uuid.UUID) ([]*domain.Contact, error) {
	query := `
		SELECT id, record_id, name, relationship, mention_count, last_seen
		FROM relationship_contacts
		WHERE record_id = $1
		ORDER BY mention_count DESC, last_seen DESC
	`
	rows, err := r.db.Query(ctx, query, recordID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing contacts", "error", err, "record_id", recordID)
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	var contacts []*domain.Contact
	for rows.Next() {
		ct := &domain.Contact{}
		if err := rows.Scan(&ct.ID, &ct.RecordID, &ct.Name, &ct.Relationship, &ct.MentionCount, &ct.LastSeenAt); err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, ct)
	}
	return contacts, rows.Err()
}

type PgMemoryRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewPgMemoryRepository(db *pgxpool.Pool, logger *slog.Logger) *PgMemoryRepository {
	return &PgMemoryRepository{db: db, logger: logger.With("repository", "relationship_memories")}
}

func (r *PgMemoryRepository) Create(ctx context.Context, memory *domain.Memory) error {
	query := `
		INSERT INTO relationship_memories (id, record_id, content, created_at)
		VALUES ($1, $2, $3, $4)
	`
	if memory.CreatedAt.IsZero() {
		memory.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx, query, memory.ID, memory.RecordID, memory.Content, memory.CreatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error creating memory", "error", err, "record_id", memory.RecordID)
		return fmt.Errorf("failed to create memory: %w", err)
	}
	return nil
}

func (r *PgMemoryRepository) ListByRecordID(ctx context.Context, recordID uuid.UUID, limit int) ([]*domain.Memory, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, record_id, content, created_at
		FROM relationship_memories
		WHERE record_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, recordID, limit)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing memories", "error", err, "record_id", recordID)
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	defer rows.Close()

	var memories []*domain.Memory
	for rows.Next() {
		m := &domain.Memory{}
		if err := rows.Scan(&m.ID, &m.RecordID, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan memory: %w", err)
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}
