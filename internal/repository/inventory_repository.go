package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/erkinov-wtf/rmbot-sub002/internal/domain"
)

// InventoryRepository encapsulates fleet persistence.
type InventoryRepository interface {
	Create(ctx context.Context, item *domain.InventoryItem) error
	UpdateState(ctx context.Context, id string, state domain.InventoryState) error
	GetByID(ctx context.Context, id string) (*domain.InventoryItem, error)
	GetByIDForUpdate(ctx context.Context, id string) (*domain.InventoryItem, error)
	List(ctx context.Context, state *domain.InventoryState, limit, offset int) ([]domain.InventoryItem, error)
	CountByState(ctx context.Context, state domain.InventoryState) (int, error)
}

type inventoryRepository struct {
	db DB
}

// NewInventoryRepository instantiates repository.
func NewInventoryRepository(db DB) InventoryRepository {
	return &inventoryRepository{db: db}
}

func (r *inventoryRepository) Create(ctx context.Context, item *domain.InventoryItem) error {
	const query = `
        INSERT INTO inventory_items (label, state)
        VALUES ($1,$2)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query, item.Label, item.State).
		Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
}

func (r *inventoryRepository) UpdateState(ctx context.Context, id string, state domain.InventoryState) error {
	const query = `UPDATE inventory_items SET state=$1, updated_at=NOW() WHERE id=$2 AND deleted_at IS NULL`
	cmd, err := r.db.Exec(ctx, query, state, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *inventoryRepository) GetByID(ctx context.Context, id string) (*domain.InventoryItem, error) {
	const query = `
        SELECT id, label, state, created_at, updated_at, deleted_at
        FROM inventory_items WHERE id=$1 AND deleted_at IS NULL`
	return r.fetchSingle(ctx, query, id)
}

func (r *inventoryRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.InventoryItem, error) {
	const query = `
        SELECT id, label, state, created_at, updated_at, deleted_at
        FROM inventory_items WHERE id=$1 AND deleted_at IS NULL FOR UPDATE`
	return r.fetchSingle(ctx, query, id)
}

func (r *inventoryRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.InventoryItem, error) {
	var item domain.InventoryItem
	if err := r.db.QueryRow(ctx, query, arg).Scan(
		&item.ID,
		&item.Label,
		&item.State,
		&item.CreatedAt,
		&item.UpdatedAt,
		&item.DeletedAt,
	); err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *inventoryRepository) List(ctx context.Context, state *domain.InventoryState, limit, offset int) ([]domain.InventoryItem, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `
        SELECT id, label, state, created_at, updated_at, deleted_at
        FROM inventory_items WHERE deleted_at IS NULL`
	args := []any{}
	if state != nil {
		args = append(args, *state)
		query += ` AND state=$1`
	}
	query += fmt.Sprintf(` ORDER BY label ASC LIMIT %d OFFSET %d`, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.InventoryItem
	for rows.Next() {
		var item domain.InventoryItem
		if err := rows.Scan(
			&item.ID,
			&item.Label,
			&item.State,
			&item.CreatedAt,
			&item.UpdatedAt,
			&item.DeletedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

func (r *inventoryRepository) CountByState(ctx context.Context, state domain.InventoryState) (int, error) {
	const query = `SELECT COUNT(*) FROM inventory_items WHERE state=$1 AND deleted_at IS NULL`
	var count int
	if err := r.db.QueryRow(ctx, query, state).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
