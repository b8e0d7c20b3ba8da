package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/erkinov-wtf/rmbot-sub002/internal/domain"
	"github.com/erkinov-wtf/rmbot-sub002/internal/observability"
	"github.com/erkinov-wtf/rmbot-sub002/internal/repository"
	apperrors "github.com/erkinov-wtf/rmbot-sub002/pkg/util"
)

// StockoutService watches the ready fleet during business hours and keeps
// the singleton open incident in sync with it.
type StockoutService struct {
	tx      repository.TxRunner
	repos   repository.RepoProvider
	rules   RulesSource
	metrics *observability.Metrics
	logger  *zap.Logger
}

// StockoutDependencies bundles collaborators for the stockout service.
type StockoutDependencies struct {
	Tx      repository.TxRunner
	Repos   repository.RepoProvider
	Rules   RulesSource
	Metrics *observability.Metrics
	Logger  *zap.Logger
}

// NewStockoutService constructs the service.
func NewStockoutService(deps StockoutDependencies) *StockoutService {
	return &StockoutService{
		tx:      deps.Tx,
		repos:   deps.Repos,
		rules:   deps.Rules,
		metrics: deps.Metrics,
		logger:  deps.Logger,
	}
}

// Check evaluates fleet readiness at now. Inside the business window a zero
// ready count opens an incident and a recovery closes the open one; outside
// the window nothing is opened or resolved, an idle shop is not a stockout.
// Returns the incident left open, if any.
func (s *StockoutService) Check(ctx context.Context, now time.Time) (*domain.StockoutIncident, error) {
	snap := s.rules.Active()
	if snap == nil {
		return nil, apperrors.NewInternalError(errors.New("no active rules snapshot"))
	}

	if !snap.Calendar.InBusinessWindow(now) {
		ready, err := s.repos.Inventory().CountByState(ctx, domain.InventoryStateReady)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		open, err := s.Current(ctx)
		if err != nil {
			return nil, err
		}
		s.metrics.SetReadyFleet(ready)
		s.metrics.SetOpenStockout(open != nil)
		return open, nil
	}

	var (
		ready int
		open  *domain.StockoutIncident
	)
	err := s.tx.WithTx(ctx, func(repos repository.RepoProvider) error {
		incident, err := repos.Stockouts().GetOpenForUpdate(ctx)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		haveOpen := err == nil

		ready, err = repos.Inventory().CountByState(ctx, domain.InventoryStateReady)
		if err != nil {
			return err
		}

		switch {
		case ready == 0 && !haveOpen:
			created := &domain.StockoutIncident{
				ID:         uuid.NewString(),
				StartedAt:  now.UTC(),
				StartCount: ready,
			}
			if err := repos.Stockouts().Create(ctx, created); err != nil {
				return err
			}
			open = created
			s.logger.Warn("stockout incident opened", zap.String("incident_id", created.ID))
		case ready > 0 && haveOpen:
			endedAt := now.UTC()
			if err := repos.Stockouts().Close(ctx, incident.ID, endedAt, ready); err != nil {
				return err
			}
			incident.EndedAt = &endedAt
			incident.EndCount = &ready
			s.logger.Info("stockout incident resolved",
				zap.String("incident_id", incident.ID),
				zap.Duration("duration", incident.Duration(endedAt)),
				zap.Int("ready_count", ready),
			)
		case haveOpen:
			open = incident
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.metrics.SetReadyFleet(ready)
	s.metrics.SetOpenStockout(open != nil)
	return open, nil
}

// Current returns the open incident, or nil when the fleet is healthy.
func (s *StockoutService) Current(ctx context.Context) (*domain.StockoutIncident, error) {
	incident, err := s.repos.Stockouts().GetOpen(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.MapError(err)
	}
	return incident, nil
}

// History lists incidents, newest first.
func (s *StockoutService) History(ctx context.Context, limit, offset int) ([]domain.StockoutIncident, error) {
	incidents, err := s.repos.Stockouts().List(ctx, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return incidents, nil
}
