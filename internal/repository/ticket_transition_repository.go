package repository

import (
	"context"
	"time"

	"github.com/erkinov-wtf/rmbot-sub002/internal/domain"
)

// TicketTransitionRepository stores workflow audit entries. The log is
// append-only; rows are never updated or deleted.
type TicketTransitionRepository interface {
	Create(ctx context.Context, transition *domain.TicketTransition) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketTransition, error)
	HasAction(ctx context.Context, ticketID string, action domain.WorkflowAction) (bool, error)
	CountActionsSince(ctx context.Context, since time.Time) (map[domain.WorkflowAction]int, error)
}

type ticketTransitionRepository struct {
	db DB
}

// NewTicketTransitionRepository builds repository.
func NewTicketTransitionRepository(db DB) TicketTransitionRepository {
	return &ticketTransitionRepository{db: db}
}

func (r *ticketTransitionRepository) Create(ctx context.Context, transition *domain.TicketTransition) error {
	const query = `
        INSERT INTO ticket_transitions (id, ticket_id, from_status, to_status, action, actor, note, metadata)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING created_at`
	return r.db.QueryRow(ctx, query,
		transition.ID,
		transition.TicketID,
		transition.FromStatus,
		transition.ToStatus,
		transition.Action,
		transition.Actor,
		transition.Note,
		transition.Metadata,
	).Scan(&transition.CreatedAt)
}

func (r *ticketTransitionRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketTransition, error) {
	const query = `
        SELECT id, ticket_id, from_status, to_status, action, actor, note, metadata, created_at
        FROM ticket_transitions WHERE ticket_id=$1 ORDER BY id ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketTransition
	for rows.Next() {
		var transition domain.TicketTransition
		if err := rows.Scan(
			&transition.ID,
			&transition.TicketID,
			&transition.FromStatus,
			&transition.ToStatus,
			&transition.Action,
			&transition.Actor,
			&transition.Note,
			&transition.Metadata,
			&transition.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, transition)
	}
	return result, rows.Err()
}

func (r *ticketTransitionRepository) HasAction(ctx context.Context, ticketID string, action domain.WorkflowAction) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM ticket_transitions WHERE ticket_id=$1 AND action=$2)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, ticketID, action).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *ticketTransitionRepository) CountActionsSince(ctx context.Context, since time.Time) (map[domain.WorkflowAction]int, error) {
	const query = `
        SELECT action, COUNT(*) FROM ticket_transitions
        WHERE created_at >= $1 GROUP BY action`
	rows, err := r.db.Query(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.WorkflowAction]int)
	for rows.Next() {
		var action domain.WorkflowAction
		var count int
		if err := rows.Scan(&action, &count); err != nil {
			return nil, err
		}
		counts[action] = count
	}
	return counts, rows.Err()
}
