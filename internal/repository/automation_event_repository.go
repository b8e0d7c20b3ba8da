package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/erkinov-wtf/rmbot-sub002/internal/domain"
)

// AutomationEventFilter narrows event listings.
type AutomationEventFilter struct {
	Rule   *domain.RuleKey
	Kind   *domain.EventKind
	Limit  int
	Offset int
}

// AutomationEventRepository stores evaluator events. Append-only; the
// latest row per rule carries the cooldown and trigger state the evaluator
// reads back after a restart.
type AutomationEventRepository interface {
	Create(ctx context.Context, event *domain.AutomationEvent) error
	GetByID(ctx context.Context, id int64) (*domain.AutomationEvent, error)
	LatestByRule(ctx context.Context, rule domain.RuleKey) (*domain.AutomationEvent, error)
	List(ctx context.Context, filter AutomationEventFilter) ([]domain.AutomationEvent, error)
}

type automationEventRepository struct {
	db DB
}

// NewAutomationEventRepository builds repository.
func NewAutomationEventRepository(db DB) AutomationEventRepository {
	return &automationEventRepository{db: db}
}

func (r *automationEventRepository) Create(ctx context.Context, event *domain.AutomationEvent) error {
	const query = `
        INSERT INTO automation_events (id, rule, kind, value, threshold, details)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING created_at`
	return r.db.QueryRow(ctx, query,
		event.ID,
		event.Rule,
		event.Kind,
		event.Value,
		event.Threshold,
		event.Details,
	).Scan(&event.CreatedAt)
}

func (r *automationEventRepository) GetByID(ctx context.Context, id int64) (*domain.AutomationEvent, error) {
	const query = `
        SELECT id, rule, kind, value, threshold, details, created_at
        FROM automation_events WHERE id=$1`
	var event domain.AutomationEvent
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&event.ID,
		&event.Rule,
		&event.Kind,
		&event.Value,
		&event.Threshold,
		&event.Details,
		&event.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *automationEventRepository) LatestByRule(ctx context.Context, rule domain.RuleKey) (*domain.AutomationEvent, error) {
	const query = `
        SELECT id, rule, kind, value, threshold, details, created_at
        FROM automation_events WHERE rule=$1 ORDER BY id DESC LIMIT 1`
	var event domain.AutomationEvent
	if err := r.db.QueryRow(ctx, query, rule).Scan(
		&event.ID,
		&event.Rule,
		&event.Kind,
		&event.Value,
		&event.Threshold,
		&event.Details,
		&event.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *automationEventRepository) List(ctx context.Context, filter AutomationEventFilter) ([]domain.AutomationEvent, error) {
	query := `
        SELECT id, rule, kind, value, threshold, details, created_at
        FROM automation_events`
	args := []any{}
	clauses := []string{}

	if filter.Rule != nil {
		args = append(args, *filter.Rule)
		clauses = append(clauses, fmt.Sprintf("rule=$%d", len(args)))
	}
	if filter.Kind != nil {
		args = append(args, *filter.Kind)
		clauses = append(clauses, fmt.Sprintf("kind=$%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT %d OFFSET %d", limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AutomationEvent
	for rows.Next() {
		var event domain.AutomationEvent
		if err := rows.Scan(
			&event.ID,
			&event.Rule,
			&event.Kind,
			&event.Value,
			&event.Threshold,
			&event.Details,
			&event.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, event)
	}
	return result, rows.Err()
}
