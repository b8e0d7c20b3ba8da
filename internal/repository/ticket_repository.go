package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/erkinov-wtf/rmbot-sub002/internal/domain"
)

const ticketColumns = `id, inventory_item_id, technician_id, status, total_duration, flag_color,
               xp_amount, is_manual, note, approved_by, approved_at, assigned_at, started_at,
               finished_at, created_at, updated_at, deleted_at`

// TicketFilter captures board and report search parameters.
type TicketFilter struct {
	InventoryItemID *string
	TechnicianID    *string
	Statuses        []domain.TicketStatus
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
	Limit           int
	Offset          int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// GetByIDForUpdate locks the ticket row for the rest of the
	// transaction; workflow actions serialize through it.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	CountOpen(ctx context.Context) (int, error)
	CountByStatuses(ctx context.Context, statuses []domain.TicketStatus) (int, error)
	SoftDelete(ctx context.Context, id string, at time.Time) error
}

type ticketRepository struct {
	db DB
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DB) TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (inventory_item_id, technician_id, status, total_duration, flag_color, xp_amount, is_manual, note)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		ticket.InventoryItemID,
		ticket.TechnicianID,
		ticket.Status,
		ticket.TotalDuration,
		ticket.FlagColor,
		ticket.XPAmount,
		ticket.IsManual,
		ticket.Note,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET technician_id=$1, status=$2, total_duration=$3, flag_color=$4,
            xp_amount=$5, is_manual=$6, note=$7, approved_by=$8, approved_at=$9,
            assigned_at=$10, started_at=$11, finished_at=$12, updated_at=NOW()
        WHERE id=$13 AND deleted_at IS NULL`
	cmd, err := r.db.Exec(ctx, query,
		ticket.TechnicianID,
		ticket.Status,
		ticket.TotalDuration,
		ticket.FlagColor,
		ticket.XPAmount,
		ticket.IsManual,
		ticket.Note,
		ticket.ApprovedBy,
		ticket.ApprovedAt,
		ticket.AssignedAt,
		ticket.StartedAt,
		ticket.FinishedAt,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1 AND deleted_at IS NULL`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1 AND deleted_at IS NULL FOR UPDATE`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := r.db.QueryRow(ctx, query, arg).Scan(
		&ticket.ID,
		&ticket.InventoryItemID,
		&ticket.TechnicianID,
		&ticket.Status,
		&ticket.TotalDuration,
		&ticket.FlagColor,
		&ticket.XPAmount,
		&ticket.IsManual,
		&ticket.Note,
		&ticket.ApprovedBy,
		&ticket.ApprovedAt,
		&ticket.AssignedAt,
		&ticket.StartedAt,
		&ticket.FinishedAt,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.DeletedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	clauses := []string{"deleted_at IS NULL"}
	args := []any{}

	if filter.InventoryItemID != nil {
		args = append(args, *filter.InventoryItemID)
		clauses = append(clauses, fmt.Sprintf("inventory_item_id=$%d", len(args)))
	}
	if filter.TechnicianID != nil {
		args = append(args, *filter.TechnicianID)
		clauses = append(clauses, fmt.Sprintf("technician_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) CountOpen(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM tickets WHERE status <> 'DONE' AND deleted_at IS NULL`
	var count int
	if err := r.db.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ticketRepository) CountByStatuses(ctx context.Context, statuses []domain.TicketStatus) (int, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	placeholders := make([]string, len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = status
	}
	query := fmt.Sprintf(`SELECT COUNT(*) FROM tickets WHERE status IN (%s) AND deleted_at IS NULL`,
		strings.Join(placeholders, ","))
	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ticketRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE tickets SET deleted_at=$1, updated_at=NOW() WHERE id=$2 AND deleted_at IS NULL`
	cmd, err := r.db.Exec(ctx, query, at, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.InventoryItemID,
			&ticket.TechnicianID,
			&ticket.Status,
			&ticket.TotalDuration,
			&ticket.FlagColor,
			&ticket.XPAmount,
			&ticket.IsManual,
			&ticket.Note,
			&ticket.ApprovedBy,
			&ticket.ApprovedAt,
			&ticket.AssignedAt,
			&ticket.StartedAt,
			&ticket.FinishedAt,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
			&ticket.DeletedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
