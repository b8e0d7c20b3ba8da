package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RepoProvider exposes the repositories available to a transactional
// operation. Every repository obtained from one provider shares the same
// transaction.
type RepoProvider interface {
	Tickets() TicketRepository
	TicketParts() TicketPartRepository
	TicketTransitions() TicketTransitionRepository
	Sessions() SessionRepository
	SessionTransitions() SessionTransitionRepository
	Inventory() InventoryRepository
	Technicians() TechnicianRepository
	Stockouts() StockoutRepository
	AutomationEvents() AutomationEventRepository
	DeliveryAttempts() DeliveryAttemptRepository
	XP() XPRepository
}

// TxRunner runs a function inside one database transaction and hands it
// repositories bound to that transaction. The transaction commits when fn
// returns nil and rolls back otherwise.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos RepoProvider) error) error
}

type poolTxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner builds a TxRunner backed by the pgx pool.
func NewTxRunner(pool *pgxpool.Pool) TxRunner {
	return &poolTxRunner{pool: pool}
}

func (r *poolTxRunner) WithTx(ctx context.Context, fn func(repos RepoProvider) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(NewRepositories(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
