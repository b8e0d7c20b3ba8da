package repository

import (
	"context"

	"github.com/erkinov-wtf/rmbot-sub002/internal/domain"
)

// SessionTransitionRepository stores timer audit entries. Append-only; the
// replay functions in the domain package derive durations from this log.
type SessionTransitionRepository interface {
	Create(ctx context.Context, transition *domain.WorkSessionTransition) error
	ListBySession(ctx context.Context, sessionID string) ([]domain.WorkSessionTransition, error)
}

type sessionTransitionRepository struct {
	db DB
}

// NewSessionTransitionRepository builds repository.
func NewSessionTransitionRepository(db DB) SessionTransitionRepository {
	return &sessionTransitionRepository{db: db}
}

func (r *sessionTransitionRepository) Create(ctx context.Context, transition *domain.WorkSessionTransition) error {
	const query = `
        INSERT INTO session_transitions (id, session_id, technician_id, from_status, to_status, action)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING created_at`
	return r.db.QueryRow(ctx, query,
		transition.ID,
		transition.SessionID,
		transition.TechnicianID,
		transition.FromStatus,
		transition.ToStatus,
		transition.Action,
	).Scan(&transition.CreatedAt)
}

func (r *sessionTransitionRepository) ListBySession(ctx context.Context, sessionID string) ([]domain.WorkSessionTransition, error) {
	const query = `
        SELECT id, session_id, technician_id, from_status, to_status, action, created_at
        FROM session_transitions WHERE session_id=$1 ORDER BY id ASC`
	rows, err := r.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.WorkSessionTransition
	for rows.Next() {
		var transition domain.WorkSessionTransition
		if err := rows.Scan(
			&transition.ID,
			&transition.SessionID,
			&transition.TechnicianID,
			&transition.FromStatus,
			&transition.ToStatus,
			&transition.Action,
			&transition.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, transition)
	}
	return result, rows.Err()
}
