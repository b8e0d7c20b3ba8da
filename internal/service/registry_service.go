package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/erkinov-wtf/rmbot-sub002/internal/domain"
	"github.com/erkinov-wtf/rmbot-sub002/internal/repository"
	apperrors "github.com/erkinov-wtf/rmbot-sub002/pkg/util"
)

// RegistryService serves the technician and fleet read models plus the two
// manual fleet state moves (activate, retire). IN_SERVICE is owned by the
// workflow and cannot be set by hand.
type RegistryService struct {
	repos  repository.RepoProvider
	logger *zap.Logger
}

// NewRegistryService constructs the service.
func NewRegistryService(repos repository.RepoProvider, logger *zap.Logger) *RegistryService {
	return &RegistryService{repos: repos, logger: logger}
}

// Technicians lists staff.
func (s *RegistryService) Technicians(ctx context.Context, filter repository.TechnicianFilter) ([]domain.Technician, error) {
	technicians, err := s.repos.Technicians().List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return technicians, nil
}

// Technician fetches one staff member.
func (s *RegistryService) Technician(ctx context.Context, id string) (*domain.Technician, error) {
	technician, err := s.repos.Technicians().GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return technician, nil
}

// TechnicianXP returns the ledger and running total for one technician.
func (s *RegistryService) TechnicianXP(ctx context.Context, technicianID string, limit, offset int) ([]domain.XPEntry, int, error) {
	if _, err := s.repos.Technicians().GetByID(ctx, technicianID); err != nil {
		return nil, 0, apperrors.MapError(err)
	}
	entries, err := s.repos.XP().ListByTechnician(ctx, technicianID, limit, offset)
	if err != nil {
		return nil, 0, apperrors.MapError(err)
	}
	total, err := s.repos.XP().SumByTechnician(ctx, technicianID)
	if err != nil {
		return nil, 0, apperrors.MapError(err)
	}
	return entries, total, nil
}

// Inventory lists fleet items, optionally by state.
func (s *RegistryService) Inventory(ctx context.Context, state *domain.InventoryState, limit, offset int) ([]domain.InventoryItem, error) {
	items, err := s.repos.Inventory().List(ctx, state, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return items, nil
}

// InventoryItem fetches one fleet item.
func (s *RegistryService) InventoryItem(ctx context.Context, id string) (*domain.InventoryItem, error) {
	item, err := s.repos.Inventory().GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return item, nil
}

// SetInventoryState activates or retires an item. An item currently under
// repair keeps its workflow-owned state.
func (s *RegistryService) SetInventoryState(ctx context.Context, id string, state domain.InventoryState) (*domain.InventoryItem, error) {
	if state != domain.InventoryStateReady && state != domain.InventoryStateRetired {
		return nil, apperrors.NewValidationError("state must be READY or RETIRED", map[string]any{"state": state})
	}

	item, err := s.repos.Inventory().GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if item.State == domain.InventoryStateInService {
		return nil, apperrors.NewConflict("item is under repair", map[string]any{"inventory_item_id": id})
	}
	if item.State == state {
		return item, nil
	}

	if err := s.repos.Inventory().UpdateState(ctx, id, state); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("inventory state changed",
		zap.String("inventory_item_id", id),
		zap.String("from", string(item.State)),
		zap.String("to", string(state)),
	)
	item.State = state
	return item, nil
}
