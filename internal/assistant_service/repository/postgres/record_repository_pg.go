package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kendallhq/kendall/internal/assistant_service/domain"
	"github.com/kendallhq/kendall/internal/assistant_service/repository"
)

// updatableColumns whitelists the columns Update may touch.
var updatableColumns = map[string]struct{}{
	repository.FieldStatus:                  {},
	repository.FieldErrorDetail:             {},
	repository.FieldAgentID:                 {},
	repository.FieldPhoneNumber:             {},
	repository.FieldPhoneProviderID:         {},
	repository.FieldPhoneProviderAccountRef: {},
	repository.FieldVoiceChoice:             {},
	repository.FieldAnalyzedFileContent:     {},
}

type PgRecordRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewPgRecordRepository(db *pgxpool.Pool, logger *slog.Logger) *PgRecordRepository {
	return &PgRecordRepository{db: db, logger: logger.With("repository", "records")}
}

func (r *PgRecordRepository) Create(ctx context.Context, rec *domain.AssistantRecord) error {
	query := `
		INSERT INTO assistant_records (
			id, owner_name, owner_email, owner_mobile,
			assistant_name, nickname,
			personality_traits, custom_personality, boundaries, use_case, context_rules,
			forwarding_enabled, voice_choice,
			attached_file_urls, analyzed_file_content,
			agent_id, phone_number, phone_provider_id, phone_provider_account_ref,
			status, error_detail, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)
	`
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	_, err := r.db.Exec(ctx, query,
		rec.ID, rec.OwnerName, rec.OwnerEmail, rec.OwnerMobile,
		rec.AssistantName, rec.Nickname,
		rec.PersonalityTraits, rec.CustomPersonality, rec.Boundaries, rec.UseCase, rec.ContextRules,
		rec.ForwardingEnabled, rec.VoiceChoice,
		rec.AttachedFileURLs, rec.AnalyzedFileContent,
		rec.AgentID, rec.PhoneNumber, rec.PhoneProviderID, rec.PhoneProviderAccountRef,
		rec.Status, rec.ErrorDetail, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error creating assistant record", "error", err, "record_id", rec.ID)
		return fmt.Errorf("failed to create assistant record: %w", err)
	}
	r.logger.InfoContext(ctx, "Assistant record created", "record_id", rec.ID)
	return nil
}

func (r *PgRecordRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.AssistantRecord, error) {
	query := `
		SELECT id, owner_name, owner_email, owner_mobile,
		       assistant_name, nickname,
		       personality_traits, custom_personality, boundaries, use_case, context_rules,
		       forwarding_enabled, voice_choice,
		       attached_file_urls, analyzed_file_content,
		       agent_id, phone_number, phone_provider_id, phone_provider_account_ref,
		       status, error_detail, created_at, updated_at
		FROM assistant_records
		WHERE id = $1
	`
	rec := &domain.AssistantRecord{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&rec.ID, &rec.OwnerName, &rec.OwnerEmail, &rec.OwnerMobile,
		&rec.AssistantName, &rec.Nickname,
		&rec.PersonalityTraits, &rec.CustomPersonality, &rec.Boundaries, &rec.UseCase, &rec.ContextRules,
		&rec.ForwardingEnabled, &rec.VoiceChoice,
		&rec.AttachedFileURLs, &rec.AnalyzedFileContent,
		&rec.AgentID, &rec.PhoneNumber, &rec.PhoneProviderID, &rec.PhoneProviderAccountRef,
		&rec.Status, &rec.ErrorDetail, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error getting assistant record by ID", "error", err, "record_id", id)
		return nil, fmt.Errorf("failed to get assistant record: %w", err)
	}
	return rec, nil
}

func (r *PgRecordRepository) Update(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	setClauses := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+2)
	i := 1
	for column, value := range fields {
		if _, ok := updatableColumns[column]; !ok {
			return fmt.Errorf("update of column %q not allowed", column)
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, i))
		args = append(args, value)
		i++
	}
	setClauses = append(setClauses, fmt.Sprintf("updated_at = $%d", i))
	args = append(args, time.Now().UTC())
	i++
	args = append(args, id)

	query := fmt.Sprintf("UPDATE assistant_records SET %s WHERE id = $%d", strings.Join(setClauses, ", "), i)

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error updating assistant record", "error", err, "record_id", id)
		return fmt.Errorf("failed to update assistant record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
