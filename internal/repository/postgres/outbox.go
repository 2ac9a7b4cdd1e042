package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kenko/clinic-api/internal/model"
	"github.com/kenko/clinic-api/internal/repository"
)

type OutboxRepository struct {
	BaseRepository
}

var _ repository.OutboxRepository = (*OutboxRepository)(nil)

func NewOutboxRepository(base BaseRepository) *OutboxRepository {
	return &OutboxRepository{base}
}

func (r *OutboxRepository) GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	query := `
		SELECT id, organization_id, aggregate_id, event_type, payload, status,
			error_message, retry_count, created_at, processed_at, updated_at
		FROM outbox_events
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	events := []*model.OutboxEvent{}
	if err := r.db.SelectContext(ctx, &events, query, string(model.OutboxStatusPending), limit); err != nil {
		return nil, fmt.Errorf("failed to get pending events: %w", err)
	}
	return events, nil
}

func (r *OutboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE outbox_events
		SET status = $1, processed_at = NOW(), updated_at = NOW()
		WHERE id = $2
	`
	res, err := r.db.ExecContext(ctx, query, string(model.OutboxStatusProcessed), id)
	if err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return expectOne(res, "outbox event "+id.String())
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE outbox_events
		SET status = $1, error_message = $2, retry_count = retry_count + 1, updated_at = NOW()
		WHERE id = $3
	`
	res, err := r.db.ExecContext(ctx, query, string(model.OutboxStatusFailed), errorMessage, id)
	if err != nil {
		return fmt.Errorf("failed to mark event failed: %w", err)
	}
	return expectOne(res, "outbox event "+id.String())
}

func (r *OutboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM outbox_events
		WHERE status = $1
		AND processed_at < $2
	`
	result, err := r.db.ExecContext(ctx, query, string(model.OutboxStatusProcessed), before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed events: %w", err)
	}

	return result.RowsAffected()
}
