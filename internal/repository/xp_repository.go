package repository

import (
	"context"

	"github.com/erkinov-wtf/rmbot-sub002/internal/domain"
)

// XPRepository stores the technician XP ledger. Entries are append-only
// and unique by reference, so replaying a workflow action cannot credit a
// technician twice.
type XPRepository interface {
	// Create inserts the entry unless its reference already exists.
	// Returns false when the entry was already posted.
	Create(ctx context.Context, entry *domain.XPEntry) (bool, error)
	ListByTechnician(ctx context.Context, technicianID string, limit, offset int) ([]domain.XPEntry, error)
	SumByTechnician(ctx context.Context, technicianID string) (int, error)
}

type xpRepository struct {
	db DB
}

// NewXPRepository builds repository.
func NewXPRepository(db DB) XPRepository {
	return &xpRepository{db: db}
}

func (r *xpRepository) Create(ctx context.Context, entry *domain.XPEntry) (bool, error) {
	const query = `
        INSERT INTO xp_entries (id, technician_id, ticket_id, entry_type, amount, reference)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (reference) DO NOTHING`
	cmd, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.TechnicianID,
		entry.TicketID,
		entry.Type,
		entry.Amount,
		entry.Reference,
	)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *xpRepository) ListByTechnician(ctx context.Context, technicianID string, limit, offset int) ([]domain.XPEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, technician_id, ticket_id, entry_type, amount, reference, created_at
        FROM xp_entries WHERE technician_id=$1 ORDER BY id DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, technicianID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.XPEntry
	for rows.Next() {
		var entry domain.XPEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.TechnicianID,
			&entry.TicketID,
			&entry.Type,
			&entry.Amount,
			&entry.Reference,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func (r *xpRepository) SumByTechnician(ctx context.Context, technicianID string) (int, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM xp_entries WHERE technician_id=$1`
	var total int
	if err := r.db.QueryRow(ctx, query, technicianID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}
