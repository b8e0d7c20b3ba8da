package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/erkinov-wtf/rmbot-sub002/internal/domain"
)

// RulesRepository persists rules document revisions and the single active
// pointer row. It owns its transactions because publishing must insert the
// revision and flip the pointer atomically.
type RulesRepository interface {
	Publish(ctx context.Context, doc []byte, createdBy string) (domain.RulesVersion, error)
	Activate(ctx context.Context, version int) (domain.RulesVersion, error)
	Active(ctx context.Context) (domain.RulesVersion, error)
	Get(ctx context.Context, version int) (domain.RulesVersion, error)
	List(ctx context.Context, limit int) ([]domain.RulesVersion, error)
}

type rulesRepository struct {
	pool *pgxpool.Pool
}

// NewRulesRepository instantiates repository.
func NewRulesRepository(pool *pgxpool.Pool) RulesRepository {
	return &rulesRepository{pool: pool}
}

func (r *rulesRepository) Publish(ctx context.Context, doc []byte, createdBy string) (domain.RulesVersion, error) {
	var stored domain.RulesVersion
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const insert = `
            INSERT INTO rules_versions (document, created_by)
            VALUES ($1,$2)
            RETURNING version, document, created_by, created_at`
		if err := tx.QueryRow(ctx, insert, string(doc), createdBy).Scan(
			&stored.Version,
			&stored.Document,
			&stored.CreatedBy,
			&stored.CreatedAt,
		); err != nil {
			return err
		}
		const flip = `
            INSERT INTO rules_active (id, version) VALUES (1, $1)
            ON CONFLICT (id) DO UPDATE SET version=EXCLUDED.version, updated_at=NOW()`
		_, err := tx.Exec(ctx, flip, stored.Version)
		return err
	})
	if err != nil {
		return domain.RulesVersion{}, err
	}
	return stored, nil
}

func (r *rulesRepository) Activate(ctx context.Context, version int) (domain.RulesVersion, error) {
	stored, err := r.Get(ctx, version)
	if err != nil {
		return domain.RulesVersion{}, err
	}
	const flip = `
        INSERT INTO rules_active (id, version) VALUES (1, $1)
        ON CONFLICT (id) DO UPDATE SET version=EXCLUDED.version, updated_at=NOW()`
	if _, err := r.pool.Exec(ctx, flip, version); err != nil {
		return domain.RulesVersion{}, err
	}
	return stored, nil
}

func (r *rulesRepository) Active(ctx context.Context) (domain.RulesVersion, error) {
	const query = `
        SELECT v.version, v.document, v.created_by, v.created_at
        FROM rules_versions v
        JOIN rules_active a ON a.version = v.version
        WHERE a.id = 1`
	var stored domain.RulesVersion
	if err := r.pool.QueryRow(ctx, query).Scan(
		&stored.Version,
		&stored.Document,
		&stored.CreatedBy,
		&stored.CreatedAt,
	); err != nil {
		return domain.RulesVersion{}, err
	}
	return stored, nil
}

func (r *rulesRepository) Get(ctx context.Context, version int) (domain.RulesVersion, error) {
	const query = `
        SELECT version, document, created_by, created_at
        FROM rules_versions WHERE version=$1`
	var stored domain.RulesVersion
	if err := r.pool.QueryRow(ctx, query, version).Scan(
		&stored.Version,
		&stored.Document,
		&stored.CreatedBy,
		&stored.CreatedAt,
	); err != nil {
		return domain.RulesVersion{}, err
	}
	return stored, nil
}

func (r *rulesRepository) List(ctx context.Context, limit int) ([]domain.RulesVersion, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `
        SELECT version, document, created_by, created_at
        FROM rules_versions ORDER BY version DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.RulesVersion
	for rows.Next() {
		var stored domain.RulesVersion
		if err := rows.Scan(
			&stored.Version,
			&stored.Document,
			&stored.CreatedBy,
			&stored.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, stored)
	}
	return result, rows.Err()
}
