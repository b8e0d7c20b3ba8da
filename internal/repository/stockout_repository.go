package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/erkinov-wtf/rmbot-sub002/internal/domain"
)

const stockoutColumns = `id, started_at, ended_at, start_count, end_count, created_at, updated_at`

// StockoutRepository persists stockout incidents. A partial unique index
// guarantees at most one open incident; Create surfaces a conflict when two
// detectors race.
type StockoutRepository interface {
	Create(ctx context.Context, incident *domain.StockoutIncident) error
	// GetOpenForUpdate locks the open incident row so a detector tick and
	// a close race serialize.
	GetOpenForUpdate(ctx context.Context) (*domain.StockoutIncident, error)
	GetOpen(ctx context.Context) (*domain.StockoutIncident, error)
	Close(ctx context.Context, id string, endedAt time.Time, endCount int) error
	List(ctx context.Context, limit, offset int) ([]domain.StockoutIncident, error)
}

type stockoutRepository struct {
	db DB
}

// NewStockoutRepository instantiates repository.
func NewStockoutRepository(db DB) StockoutRepository {
	return &stockoutRepository{db: db}
}

func (r *stockoutRepository) Create(ctx context.Context, incident *domain.StockoutIncident) error {
	const query = `
        INSERT INTO stockout_incidents (id, started_at, start_count)
        VALUES ($1,$2,$3)
        RETURNING created_at, updated_at`
	return r.db.QueryRow(ctx, query, incident.ID, incident.StartedAt, incident.StartCount).
		Scan(&incident.CreatedAt, &incident.UpdatedAt)
}

func (r *stockoutRepository) GetOpen(ctx context.Context) (*domain.StockoutIncident, error) {
	query := `SELECT ` + stockoutColumns + ` FROM stockout_incidents WHERE ended_at IS NULL`
	return r.fetchSingle(ctx, query)
}

func (r *stockoutRepository) GetOpenForUpdate(ctx context.Context) (*domain.StockoutIncident, error) {
	query := `SELECT ` + stockoutColumns + ` FROM stockout_incidents WHERE ended_at IS NULL FOR UPDATE`
	return r.fetchSingle(ctx, query)
}

func (r *stockoutRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.StockoutIncident, error) {
	var incident domain.StockoutIncident
	if err := r.db.QueryRow(ctx, query, args...).Scan(
		&incident.ID,
		&incident.StartedAt,
		&incident.EndedAt,
		&incident.StartCount,
		&incident.EndCount,
		&incident.CreatedAt,
		&incident.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &incident, nil
}

func (r *stockoutRepository) Close(ctx context.Context, id string, endedAt time.Time, endCount int) error {
	const query = `
        UPDATE stockout_incidents SET ended_at=$1, end_count=$2, updated_at=NOW()
        WHERE id=$3 AND ended_at IS NULL`
	cmd, err := r.db.Exec(ctx, query, endedAt, endCount, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *stockoutRepository) List(ctx context.Context, limit, offset int) ([]domain.StockoutIncident, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + stockoutColumns + ` FROM stockout_incidents ORDER BY started_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.StockoutIncident
	for rows.Next() {
		var incident domain.StockoutIncident
		if err := rows.Scan(
			&incident.ID,
			&incident.StartedAt,
			&incident.EndedAt,
			&incident.StartCount,
			&incident.EndCount,
			&incident.CreatedAt,
			&incident.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, incident)
	}
	return result, rows.Err()
}
