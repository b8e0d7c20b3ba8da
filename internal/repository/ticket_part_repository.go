package repository

import (
	"context"
	"time"

	"github.com/erkinov-wtf/rmbot-sub002/internal/domain"
)

// TicketPartRepository stores the part specs attached to a ticket.
type TicketPartRepository interface {
	CreateMany(ctx context.Context, ticketID string, parts []domain.TicketPartSpec) ([]domain.TicketPartSpec, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketPartSpec, error)
	// SoftDeleteByTicket hides the parts together with their ticket.
	SoftDeleteByTicket(ctx context.Context, ticketID string, at time.Time) error
}

type ticketPartRepository struct {
	db DB
}

// NewTicketPartRepository instantiates repository.
func NewTicketPartRepository(db DB) TicketPartRepository {
	return &ticketPartRepository{db: db}
}

func (r *ticketPartRepository) CreateMany(ctx context.Context, ticketID string, parts []domain.TicketPartSpec) ([]domain.TicketPartSpec, error) {
	const query = `
        INSERT INTO ticket_parts (ticket_id, part_name, severity, estimated_minutes, position)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	result := make([]domain.TicketPartSpec, 0, len(parts))
	for i, part := range parts {
		part.TicketID = ticketID
		part.Position = i
		if err := r.db.QueryRow(ctx, query,
			part.TicketID,
			part.PartName,
			part.Severity,
			part.EstimatedMinutes,
			part.Position,
		).Scan(&part.ID, &part.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, part)
	}
	return result, nil
}

func (r *ticketPartRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketPartSpec, error) {
	const query = `
        SELECT id, ticket_id, part_name, severity, estimated_minutes, position, created_at, deleted_at
        FROM ticket_parts WHERE ticket_id=$1 AND deleted_at IS NULL ORDER BY position ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketPartSpec
	for rows.Next() {
		var part domain.TicketPartSpec
		if err := rows.Scan(
			&part.ID,
			&part.TicketID,
			&part.PartName,
			&part.Severity,
			&part.EstimatedMinutes,
			&part.Position,
			&part.CreatedAt,
			&part.DeletedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, part)
	}
	return result, rows.Err()
}

func (r *ticketPartRepository) SoftDeleteByTicket(ctx context.Context, ticketID string, at time.Time) error {
	const query = `UPDATE ticket_parts SET deleted_at=$1 WHERE ticket_id=$2 AND deleted_at IS NULL`
	_, err := r.db.Exec(ctx, query, at, ticketID)
	return err
}
