package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/erkinov-wtf/rmbot-sub002/internal/domain"
)

// TechnicianRepository handles persistence for technicians.
type TechnicianRepository interface {
	Create(ctx context.Context, technician *domain.Technician) error
	Update(ctx context.Context, technician *domain.Technician) error
	GetByID(ctx context.Context, id string) (*domain.Technician, error)
	List(ctx context.Context, filter TechnicianFilter) ([]domain.Technician, error)
}

// TechnicianFilter defines query params for technician listing.
type TechnicianFilter struct {
	Role   *domain.TechnicianRole
	Active *bool
	Limit  int
	Offset int
}

type technicianRepository struct {
	db DB
}

// NewTechnicianRepository instantiates the repository.
func NewTechnicianRepository(db DB) TechnicianRepository {
	return &technicianRepository{db: db}
}

func (r *technicianRepository) Create(ctx context.Context, technician *domain.Technician) error {
	const query = `
        INSERT INTO technicians (name, telegram_chat_id, role, active_flag)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at, updated_at`

	return r.db.QueryRow(ctx, query,
		technician.Name,
		technician.TelegramChatID,
		technician.Role,
		technician.Active,
	).Scan(&technician.ID, &technician.CreatedAt, &technician.UpdatedAt)
}

func (r *technicianRepository) Update(ctx context.Context, technician *domain.Technician) error {
	const query = `
        UPDATE technicians
        SET name=$1, telegram_chat_id=$2, role=$3, active_flag=$4, updated_at=NOW()
        WHERE id=$5`

	cmd, err := r.db.Exec(ctx, query,
		technician.Name,
		technician.TelegramChatID,
		technician.Role,
		technician.Active,
		technician.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *technicianRepository) GetByID(ctx context.Context, id string) (*domain.Technician, error) {
	const query = `
        SELECT id, name, telegram_chat_id, role, active_flag, created_at, updated_at
        FROM technicians WHERE id=$1`

	var technician domain.Technician
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&technician.ID,
		&technician.Name,
		&technician.TelegramChatID,
		&technician.Role,
		&technician.Active,
		&technician.CreatedAt,
		&technician.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &technician, nil
}

func (r *technicianRepository) List(ctx context.Context, filter TechnicianFilter) ([]domain.Technician, error) {
	query := `
        SELECT id, name, telegram_chat_id, role, active_flag, created_at, updated_at
        FROM technicians`
	args := []any{}
	clauses := []string{}

	if filter.Role != nil {
		args = append(args, *filter.Role)
		clauses = append(clauses, fmt.Sprintf("role=$%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		clauses = append(clauses, fmt.Sprintf("active_flag=$%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	query += " ORDER BY created_at DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Technician
	for rows.Next() {
		var technician domain.Technician
		if err := rows.Scan(
			&technician.ID,
			&technician.Name,
			&technician.TelegramChatID,
			&technician.Role,
			&technician.Active,
			&technician.CreatedAt,
			&technician.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, technician)
	}
	return result, rows.Err()
}
