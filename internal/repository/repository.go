package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the querier shared by pool-backed and transaction-backed
// repositories. Both *pgxpool.Pool and pgx.Tx satisfy it, so the same
// repository code serves plain reads and transactional writes.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repositories bundles every repository bound to one querier. A bundle
// built from the pool serves read paths; TxRunner builds one per
// transaction for write paths.
type Repositories struct {
	db DB
}

// NewRepositories binds a bundle to a querier.
func NewRepositories(db DB) *Repositories {
	return &Repositories{db: db}
}

// Tickets returns the ticket repository.
func (r *Repositories) Tickets() TicketRepository {
	return &ticketRepository{db: r.db}
}

// TicketParts returns the part spec repository.
func (r *Repositories) TicketParts() TicketPartRepository {
	return &ticketPartRepository{db: r.db}
}

// TicketTransitions returns the workflow audit repository.
func (r *Repositories) TicketTransitions() TicketTransitionRepository {
	return &ticketTransitionRepository{db: r.db}
}

// Sessions returns the work session repository.
func (r *Repositories) Sessions() SessionRepository {
	return &sessionRepository{db: r.db}
}

// SessionTransitions returns the timer audit repository.
func (r *Repositories) SessionTransitions() SessionTransitionRepository {
	return &sessionTransitionRepository{db: r.db}
}

// Inventory returns the inventory repository.
func (r *Repositories) Inventory() InventoryRepository {
	return &inventoryRepository{db: r.db}
}

// Technicians returns the technician repository.
func (r *Repositories) Technicians() TechnicianRepository {
	return &technicianRepository{db: r.db}
}

// Stockouts returns the stockout incident repository.
func (r *Repositories) Stockouts() StockoutRepository {
	return &stockoutRepository{db: r.db}
}

// AutomationEvents returns the automation event repository.
func (r *Repositories) AutomationEvents() AutomationEventRepository {
	return &automationEventRepository{db: r.db}
}

// DeliveryAttempts returns the delivery attempt repository.
func (r *Repositories) DeliveryAttempts() DeliveryAttemptRepository {
	return &deliveryAttemptRepository{db: r.db}
}

// XP returns the XP ledger repository.
func (r *Repositories) XP() XPRepository {
	return &xpRepository{db: r.db}
}
