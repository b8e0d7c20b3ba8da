package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/erkinov-wtf/rmbot-sub002/internal/domain"
)

const sessionColumns = `id, ticket_id, technician_id, status, active_seconds, started_at, stopped_at, created_at, updated_at`

// SessionRepository encapsulates work session persistence.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.WorkSession) error
	Update(ctx context.Context, session *domain.WorkSession) error
	GetByID(ctx context.Context, id string) (*domain.WorkSession, error)
	// GetByIDForUpdate locks the session row so concurrent timer actions
	// serialize.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.WorkSession, error)
	GetOpenByTicket(ctx context.Context, ticketID string) (*domain.WorkSession, error)
	GetOpenByTechnician(ctx context.Context, technicianID string) (*domain.WorkSession, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.WorkSession, error)
	ListPaused(ctx context.Context) ([]domain.WorkSession, error)
	// ListByTechnicianOverlapping returns sessions whose lifetime
	// intersects [from, to); budget accounting walks their logs.
	ListByTechnicianOverlapping(ctx context.Context, technicianID string, from, to time.Time) ([]domain.WorkSession, error)
}

type sessionRepository struct {
	db DB
}

// NewSessionRepository instantiates repository.
func NewSessionRepository(db DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, session *domain.WorkSession) error {
	const query = `
        INSERT INTO work_sessions (id, ticket_id, technician_id, status, active_seconds, started_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		session.ID,
		session.TicketID,
		session.TechnicianID,
		session.Status,
		session.ActiveSeconds,
		session.StartedAt,
	).Scan(&session.CreatedAt, &session.UpdatedAt)
}

func (r *sessionRepository) Update(ctx context.Context, session *domain.WorkSession) error {
	const query = `
        UPDATE work_sessions SET status=$1, active_seconds=$2, stopped_at=$3, updated_at=NOW()
        WHERE id=$4`
	cmd, err := r.db.Exec(ctx, query,
		session.Status,
		session.ActiveSeconds,
		session.StoppedAt,
		session.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *sessionRepository) GetByID(ctx context.Context, id string) (*domain.WorkSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM work_sessions WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *sessionRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.WorkSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM work_sessions WHERE id=$1 FOR UPDATE`
	return r.fetchSingle(ctx, query, id)
}

func (r *sessionRepository) GetOpenByTicket(ctx context.Context, ticketID string) (*domain.WorkSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM work_sessions WHERE ticket_id=$1 AND status <> 'STOPPED'`
	return r.fetchSingle(ctx, query, ticketID)
}

func (r *sessionRepository) GetOpenByTechnician(ctx context.Context, technicianID string) (*domain.WorkSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM work_sessions WHERE technician_id=$1 AND status <> 'STOPPED'`
	return r.fetchSingle(ctx, query, technicianID)
}

func (r *sessionRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.WorkSession, error) {
	var session domain.WorkSession
	if err := r.db.QueryRow(ctx, query, arg).Scan(
		&session.ID,
		&session.TicketID,
		&session.TechnicianID,
		&session.Status,
		&session.ActiveSeconds,
		&session.StartedAt,
		&session.StoppedAt,
		&session.CreatedAt,
		&session.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.WorkSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM work_sessions WHERE ticket_id=$1 ORDER BY started_at ASC`
	return r.list(ctx, query, ticketID)
}

func (r *sessionRepository) ListPaused(ctx context.Context) ([]domain.WorkSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM work_sessions WHERE status='PAUSED' ORDER BY started_at ASC`
	return r.list(ctx, query)
}

func (r *sessionRepository) ListByTechnicianOverlapping(ctx context.Context, technicianID string, from, to time.Time) ([]domain.WorkSession, error) {
	query := `SELECT ` + sessionColumns + `
        FROM work_sessions
        WHERE technician_id=$1 AND started_at < $2 AND (stopped_at IS NULL OR stopped_at >= $3)
        ORDER BY started_at ASC`
	return r.list(ctx, query, technicianID, to, from)
}

func (r *sessionRepository) list(ctx context.Context, query string, args ...any) ([]domain.WorkSession, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.WorkSession
	for rows.Next() {
		var session domain.WorkSession
		if err := rows.Scan(
			&session.ID,
			&session.TicketID,
			&session.TechnicianID,
			&session.Status,
			&session.ActiveSeconds,
			&session.StartedAt,
			&session.StoppedAt,
			&session.CreatedAt,
			&session.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, session)
	}
	return result, rows.Err()
}
