package repository

import (
	"context"

	"github.com/erkinov-wtf/rmbot-sub002/internal/domain"
)

// DeliveryAttemptRepository stores escalation delivery attempts. Append
// only; idempotency checks scan for a prior success instead of mutating
// rows.
type DeliveryAttemptRepository interface {
	Create(ctx context.Context, attempt *domain.DeliveryAttempt) error
	ListByEvent(ctx context.Context, eventID int64) ([]domain.DeliveryAttempt, error)
	HasSuccess(ctx context.Context, eventID int64, channel domain.ChannelKind) (bool, error)
}

type deliveryAttemptRepository struct {
	db DB
}

// NewDeliveryAttemptRepository builds repository.
func NewDeliveryAttemptRepository(db DB) DeliveryAttemptRepository {
	return &deliveryAttemptRepository{db: db}
}

func (r *deliveryAttemptRepository) Create(ctx context.Context, attempt *domain.DeliveryAttempt) error {
	const query = `
        INSERT INTO delivery_attempts (id, event_id, channel, outcome, detail, duration_ms)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING created_at`
	return r.db.QueryRow(ctx, query,
		attempt.ID,
		attempt.EventID,
		attempt.Channel,
		attempt.Outcome,
		attempt.Detail,
		attempt.DurationMS,
	).Scan(&attempt.CreatedAt)
}

func (r *deliveryAttemptRepository) ListByEvent(ctx context.Context, eventID int64) ([]domain.DeliveryAttempt, error) {
	const query = `
        SELECT id, event_id, channel, outcome, detail, duration_ms, created_at
        FROM delivery_attempts WHERE event_id=$1 ORDER BY id ASC`
	rows, err := r.db.Query(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.DeliveryAttempt
	for rows.Next() {
		var attempt domain.DeliveryAttempt
		if err := rows.Scan(
			&attempt.ID,
			&attempt.EventID,
			&attempt.Channel,
			&attempt.Outcome,
			&attempt.Detail,
			&attempt.DurationMS,
			&attempt.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, attempt)
	}
	return result, rows.Err()
}

func (r *deliveryAttemptRepository) HasSuccess(ctx context.Context, eventID int64, channel domain.ChannelKind) (bool, error) {
	const query = `
        SELECT EXISTS (
            SELECT 1 FROM delivery_attempts
            WHERE event_id=$1 AND channel=$2 AND outcome='success'
        )`
	var exists bool
	if err := r.db.QueryRow(ctx, query, eventID, channel).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
