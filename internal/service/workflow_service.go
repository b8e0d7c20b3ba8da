package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/erkinov-wtf/rmbot-sub002/internal/domain"
	"github.com/erkinov-wtf/rmbot-sub002/internal/events"
	"github.com/erkinov-wtf/rmbot-sub002/internal/observability"
	"github.com/erkinov-wtf/rmbot-sub002/internal/repository"
	"github.com/erkinov-wtf/rmbot-sub002/internal/rules"
	"github.com/erkinov-wtf/rmbot-sub002/pkg/ident"
	apperrors "github.com/erkinov-wtf/rmbot-sub002/pkg/util"
)

// RulesSource serves the active rules snapshot to services.
type RulesSource interface {
	Active() *rules.Snapshot
}

// workflowTransitions maps each action to the statuses it may leave and the
// status it lands on.
var workflowTransitions = map[domain.WorkflowAction]struct {
	from []domain.TicketStatus
	to   domain.TicketStatus
}{
	domain.ActionApproveReview: {from: []domain.TicketStatus{domain.TicketStatusUnderReview}, to: domain.TicketStatusNew},
	domain.ActionAssign:        {from: []domain.TicketStatus{domain.TicketStatusNew}, to: domain.TicketStatusAssigned},
	domain.ActionStart:         {from: []domain.TicketStatus{domain.TicketStatusAssigned, domain.TicketStatusRework}, to: domain.TicketStatusInProgress},
	domain.ActionWaitingQC:     {from: []domain.TicketStatus{domain.TicketStatusInProgress}, to: domain.TicketStatusWaitingQC},
	domain.ActionQCPass:        {from: []domain.TicketStatus{domain.TicketStatusWaitingQC}, to: domain.TicketStatusDone},
	domain.ActionQCFail:        {from: []domain.TicketStatus{domain.TicketStatusWaitingQC}, to: domain.TicketStatusRework},
}

func nextStatus(action domain.WorkflowAction, current domain.TicketStatus) (domain.TicketStatus, error) {
	rule, ok := workflowTransitions[action]
	if !ok {
		return "", apperrors.NewValidationError("unknown workflow action", map[string]any{"action": string(action)})
	}
	for _, from := range rule.from {
		if from == current {
			return rule.to, nil
		}
	}
	return "", apperrors.NewInvalidTransition(string(action), string(current), string(rule.to))
}

// WorkflowService owns the ticket state machine and its cross-aggregate side
// effects: inventory state, work sessions and XP postings. Every action locks
// the ticket row, so concurrent calls on one ticket serialize.
type WorkflowService struct {
	tx         repository.TxRunner
	repos      repository.RepoProvider
	rules      RulesSource
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// WorkflowDependencies bundles collaborators for the workflow service.
type WorkflowDependencies struct {
	Tx         repository.TxRunner
	Repos      repository.RepoProvider
	Rules      RulesSource
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Now        func() time.Time
}

// TicketPartInput describes one part on intake.
type TicketPartInput struct {
	PartName         string
	Severity         domain.SeverityColor
	EstimatedMinutes int
}

// ManualMetrics carries admin-entered overrides for the computed ticket
// numbers. Overrides never bypass state-machine legality.
type ManualMetrics struct {
	TotalDuration int
	FlagColor     domain.SeverityColor
	XPAmount      int
}

// TicketCreateInput describes the intake payload.
type TicketCreateInput struct {
	InventoryItemID string
	Note            string
	Parts           []TicketPartInput
	Manual          *ManualMetrics
}

// NewWorkflowService constructs the service.
func NewWorkflowService(deps WorkflowDependencies) *WorkflowService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &WorkflowService{
		tx:         deps.Tx,
		repos:      deps.Repos,
		rules:      deps.Rules,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		now:        now,
	}
}

// CreateTicket registers a repair job in UNDER_REVIEW. Duration, flag color
// and XP are derived from the part specs and the active rules unless the
// intake carries manual overrides.
func (s *WorkflowService) CreateTicket(ctx context.Context, actor string, input TicketCreateInput) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if input.InventoryItemID == "" {
		return nil, apperrors.NewValidationError("inventory_item_id is required", nil)
	}
	parts, err := buildParts(input.Parts)
	if err != nil {
		return nil, err
	}

	ticket := &domain.Ticket{
		InventoryItemID: input.InventoryItemID,
		Status:          domain.TicketStatusUnderReview,
		Note:            strings.TrimSpace(input.Note),
	}
	if input.Manual != nil {
		if !validSeverity(input.Manual.FlagColor) {
			return nil, apperrors.NewValidationError("invalid flag color", map[string]any{"flag_color": string(input.Manual.FlagColor)})
		}
		if input.Manual.TotalDuration < 0 || input.Manual.XPAmount < 0 {
			return nil, apperrors.NewValidationError("manual metrics must not be negative", nil)
		}
		ticket.IsManual = true
		ticket.TotalDuration = input.Manual.TotalDuration
		ticket.FlagColor = input.Manual.FlagColor
		ticket.XPAmount = input.Manual.XPAmount
	} else {
		snap := s.rules.Active()
		if snap == nil {
			return nil, apperrors.NewInternalError(errors.New("no active rules snapshot"))
		}
		ticket.TotalDuration = domain.TotalDuration(parts)
		ticket.FlagColor = domain.MaxSeverity(parts)
		ticket.XPAmount = snap.Config.TicketXP.Amount(ticket.FlagColor)
	}

	outbox := events.NewOutbox(s.dispatcher, s.logger)
	err = s.tx.WithTx(ctx, func(repos repository.RepoProvider) error {
		item, err := repos.Inventory().GetByID(ctx, input.InventoryItemID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFound("inventory item", map[string]any{"inventory_item_id": input.InventoryItemID})
			}
			return err
		}
		if item.State == domain.InventoryStateRetired {
			return apperrors.NewValidationError("inventory item is retired", map[string]any{"inventory_item_id": item.ID})
		}

		if err := repos.Tickets().Create(ctx, ticket); err != nil {
			return err
		}
		created, err := repos.TicketParts().CreateMany(ctx, ticket.ID, parts)
		if err != nil {
			return err
		}
		ticket.Parts = created

		if _, err := appendTransition(ctx, repos, ticket, "", domain.ActionCreate, actor, ticket.Note,
			map[string]any{"part_count": len(created)}); err != nil {
			return err
		}

		outbox.Add(events.Event{
			Type:     events.EventTicketCreated,
			TicketID: ticket.ID,
			Actor:    actor,
			Payload: events.TicketCreatedPayload{
				InventoryItemID: ticket.InventoryItemID,
				FlagColor:       ticket.FlagColor,
				TotalDuration:   ticket.TotalDuration,
				PartCount:       len(created),
			},
		})
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	outbox.Flush(ctx)
	s.metrics.RecordTransition(string(domain.ActionCreate))
	return ticket, nil
}

// ApproveReview moves UNDER_REVIEW to NEW, recording who approved the intake.
func (s *WorkflowService) ApproveReview(ctx context.Context, ticketID, actor string) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	var ticket *domain.Ticket
	outbox := events.NewOutbox(s.dispatcher, s.logger)
	err := s.tx.WithTx(ctx, func(repos repository.RepoProvider) error {
		var err error
		ticket, err = lockTicket(ctx, repos, ticketID)
		if err != nil {
			return err
		}
		from := ticket.Status
		next, err := nextStatus(domain.ActionApproveReview, from)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		ticket.Status = next
		ticket.ApprovedBy = &actor
		ticket.ApprovedAt = &now
		if err := repos.Tickets().Update(ctx, ticket); err != nil {
			return err
		}
		if _, err := appendTransition(ctx, repos, ticket, from, domain.ActionApproveReview, actor, "", nil); err != nil {
			return err
		}

		outbox.Add(statusEvent(events.EventTicketApproved, ticket, from, domain.ActionApproveReview, actor, ""))
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	outbox.Flush(ctx)
	s.metrics.RecordTransition(string(domain.ActionApproveReview))
	return ticket, nil
}

// Assign hands a reviewed ticket to a technician.
func (s *WorkflowService) Assign(ctx context.Context, ticketID, technicianID, actor string) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if technicianID == "" {
		return nil, apperrors.NewValidationError("technician_id is required", nil)
	}
	var ticket *domain.Ticket
	outbox := events.NewOutbox(s.dispatcher, s.logger)
	err := s.tx.WithTx(ctx, func(repos repository.RepoProvider) error {
		var err error
		ticket, err = lockTicket(ctx, repos, ticketID)
		if err != nil {
			return err
		}
		from := ticket.Status
		next, err := nextStatus(domain.ActionAssign, from)
		if err != nil {
			return err
		}
		if ticket.ApprovedBy == nil {
			return apperrors.NewValidationError("ticket has not passed review", map[string]any{"ticket_id": ticket.ID})
		}

		technician, err := repos.Technicians().GetByID(ctx, technicianID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFound("technician", map[string]any{"technician_id": technicianID})
			}
			return err
		}
		if !technician.Active {
			return apperrors.NewValidationError("technician is not active", map[string]any{"technician_id": technicianID})
		}

		now := s.now().UTC()
		ticket.Status = next
		ticket.TechnicianID = &technician.ID
		ticket.AssignedAt = &now
		if err := repos.Tickets().Update(ctx, ticket); err != nil {
			return err
		}
		if _, err := appendTransition(ctx, repos, ticket, from, domain.ActionAssign, actor, "",
			map[string]any{"technician_id": technician.ID}); err != nil {
			return err
		}

		outbox.Add(events.Event{
			Type:     events.EventTicketAssigned,
			TicketID: ticket.ID,
			Actor:    actor,
			Payload:  events.TicketAssignedPayload{TechnicianID: technician.ID},
		})
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	outbox.Flush(ctx)
	s.metrics.RecordTransition(string(domain.ActionAssign))
	return ticket, nil
}

// Start begins active repair work: the ticket enters IN_PROGRESS, the
// inventory item leaves the ready fleet and the assigned technician gets a
// running work session. A technician already working elsewhere is rejected
// with a conflict.
func (s *WorkflowService) Start(ctx context.Context, ticketID, actor string) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	var ticket *domain.Ticket
	outbox := events.NewOutbox(s.dispatcher, s.logger)
	err := s.tx.WithTx(ctx, func(repos repository.RepoProvider) error {
		var err error
		ticket, err = lockTicket(ctx, repos, ticketID)
		if err != nil {
			return err
		}
		from := ticket.Status
		next, err := nextStatus(domain.ActionStart, from)
		if err != nil {
			return err
		}
		if ticket.TechnicianID == nil {
			return apperrors.NewValidationError("ticket has no technician", map[string]any{"ticket_id": ticket.ID})
		}
		technicianID := *ticket.TechnicianID

		if _, err := repos.Sessions().GetOpenByTechnician(ctx, technicianID); err == nil {
			return apperrors.NewConflict("technician already has an open work session",
				map[string]any{"technician_id": technicianID})
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		now := s.now().UTC()
		ticket.Status = next
		if ticket.StartedAt == nil {
			ticket.StartedAt = &now
		}
		if err := repos.Tickets().Update(ctx, ticket); err != nil {
			return err
		}
		if err := repos.Inventory().UpdateState(ctx, ticket.InventoryItemID, domain.InventoryStateInService); err != nil {
			return err
		}
		session, err := openWorkSession(ctx, repos, ticket.ID, technicianID, now)
		if err != nil {
			return err
		}
		if _, err := appendTransition(ctx, repos, ticket, from, domain.ActionStart, actor, "",
			map[string]any{"session_id": session.ID}); err != nil {
			return err
		}

		outbox.Add(statusEvent(events.EventTicketStarted, ticket, from, domain.ActionStart, actor, ""))
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	outbox.Flush(ctx)
	s.metrics.RecordTransition(string(domain.ActionStart))
	return ticket, nil
}

// MoveToWaitingQC parks a repaired ticket for inspection. The ticket's work
// session must be stopped first so the recorded active time is final.
func (s *WorkflowService) MoveToWaitingQC(ctx context.Context, ticketID, actor string) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	var ticket *domain.Ticket
	outbox := events.NewOutbox(s.dispatcher, s.logger)
	err := s.tx.WithTx(ctx, func(repos repository.RepoProvider) error {
		var err error
		ticket, err = lockTicket(ctx, repos, ticketID)
		if err != nil {
			return err
		}
		from := ticket.Status
		next, err := nextStatus(domain.ActionWaitingQC, from)
		if err != nil {
			return err
		}
		if _, err := repos.Sessions().GetOpenByTicket(ctx, ticket.ID); err == nil {
			return apperrors.NewValidationError("work session is still open", map[string]any{"ticket_id": ticket.ID})
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		ticket.Status = next
		if err := repos.Tickets().Update(ctx, ticket); err != nil {
			return err
		}
		if _, err := appendTransition(ctx, repos, ticket, from, domain.ActionWaitingQC, actor, "", nil); err != nil {
			return err
		}

		outbox.Add(statusEvent(events.EventTicketWaiting, ticket, from, domain.ActionWaitingQC, actor, ""))
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	outbox.Flush(ctx)
	s.metrics.RecordTransition(string(domain.ActionWaitingQC))
	return ticket, nil
}

// QCPass completes a ticket and returns the item to the ready fleet. The
// repairing technician is paid the ticket reward plus a first-pass bonus
// when the job passed on the first inspection within its planned duration.
// The inspector is credited for the review.
func (s *WorkflowService) QCPass(ctx context.Context, ticketID, actor string) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	var (
		ticket    *domain.Ticket
		awarded   int
		firstPass bool
	)
	outbox := events.NewOutbox(s.dispatcher, s.logger)
	err := s.tx.WithTx(ctx, func(repos repository.RepoProvider) error {
		var err error
		ticket, err = lockTicket(ctx, repos, ticketID)
		if err != nil {
			return err
		}
		from := ticket.Status
		next, err := nextStatus(domain.ActionQCPass, from)
		if err != nil {
			return err
		}
		if ticket.TechnicianID == nil {
			return apperrors.NewValidationError("ticket has no technician", map[string]any{"ticket_id": ticket.ID})
		}
		snap := s.rules.Active()
		if snap == nil {
			return apperrors.NewInternalError(errors.New("no active rules snapshot"))
		}

		now := s.now().UTC()
		ticket.Status = next
		ticket.FinishedAt = &now
		if err := repos.Tickets().Update(ctx, ticket); err != nil {
			return err
		}
		if err := repos.Inventory().UpdateState(ctx, ticket.InventoryItemID, domain.InventoryStateReady); err != nil {
			return err
		}

		firstPass, err = firstPassEligible(ctx, repos, ticket)
		if err != nil {
			return err
		}
		awarded, err = postRepairXP(ctx, repos, ticket, snap, firstPass)
		if err != nil {
			return err
		}
		transition, err := appendTransition(ctx, repos, ticket, from, domain.ActionQCPass, actor, "",
			map[string]any{"xp_awarded": awarded, "first_pass": firstPass})
		if err != nil {
			return err
		}
		if err := postReviewXP(ctx, repos, ticket, transition.ID, actor, snap); err != nil {
			return err
		}

		outbox.Add(events.Event{
			Type:     events.EventTicketQCPassed,
			TicketID: ticket.ID,
			Actor:    actor,
			Payload: events.TicketQCPayload{
				TechnicianID: *ticket.TechnicianID,
				XPAwarded:    awarded,
				FirstPass:    firstPass,
			},
		})
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	outbox.Flush(ctx)
	s.metrics.RecordTransition(string(domain.ActionQCPass))
	return ticket, nil
}

// QCFail sends a ticket back for rework. The inspector is still credited for
// the review; the repair reward waits for a pass.
func (s *WorkflowService) QCFail(ctx context.Context, ticketID, actor, note string) (*domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	var ticket *domain.Ticket
	outbox := events.NewOutbox(s.dispatcher, s.logger)
	err := s.tx.WithTx(ctx, func(repos repository.RepoProvider) error {
		var err error
		ticket, err = lockTicket(ctx, repos, ticketID)
		if err != nil {
			return err
		}
		from := ticket.Status
		next, err := nextStatus(domain.ActionQCFail, from)
		if err != nil {
			return err
		}
		snap := s.rules.Active()
		if snap == nil {
			return apperrors.NewInternalError(errors.New("no active rules snapshot"))
		}

		note = strings.TrimSpace(note)
		ticket.Status = next
		if note != "" {
			ticket.Note = note
		}
		if err := repos.Tickets().Update(ctx, ticket); err != nil {
			return err
		}
		transition, err := appendTransition(ctx, repos, ticket, from, domain.ActionQCFail, actor, note, nil)
		if err != nil {
			return err
		}
		if err := postReviewXP(ctx, repos, ticket, transition.ID, actor, snap); err != nil {
			return err
		}

		technicianID := ""
		if ticket.TechnicianID != nil {
			technicianID = *ticket.TechnicianID
		}
		outbox.Add(events.Event{
			Type:     events.EventTicketQCFailed,
			TicketID: ticket.ID,
			Actor:    actor,
			Payload: events.TicketQCPayload{
				TechnicianID: technicianID,
				Reason:       note,
			},
		})
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	outbox.Flush(ctx)
	s.metrics.RecordTransition(string(domain.ActionQCFail))
	return ticket, nil
}

// SoftDelete hides a mistaken intake together with its part specs. Tickets
// with an open work session cannot be deleted; an in-service item returns to
// the ready fleet.
func (s *WorkflowService) SoftDelete(ctx context.Context, ticketID, actor string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	err := s.tx.WithTx(ctx, func(repos repository.RepoProvider) error {
		ticket, err := lockTicket(ctx, repos, ticketID)
		if err != nil {
			return err
		}
		if _, err := repos.Sessions().GetOpenByTicket(ctx, ticket.ID); err == nil {
			return apperrors.NewConflict("ticket has an open work session", map[string]any{"ticket_id": ticket.ID})
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		now := s.now().UTC()
		if err := repos.Tickets().SoftDelete(ctx, ticket.ID, now); err != nil {
			return err
		}
		if err := repos.TicketParts().SoftDeleteByTicket(ctx, ticket.ID, now); err != nil {
			return err
		}
		switch ticket.Status {
		case domain.TicketStatusInProgress, domain.TicketStatusWaitingQC, domain.TicketStatusRework:
			if err := repos.Inventory().UpdateState(ctx, ticket.InventoryItemID, domain.InventoryStateReady); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperrors.MapError(err)
	}
	s.logger.Info("ticket deleted",
		zap.String("ticket_id", ticketID),
		zap.String("actor", actor),
	)
	return nil
}

// Get returns a ticket with its part specs.
func (s *WorkflowService) Get(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.repos.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	parts, err := s.repos.TicketParts().ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	ticket.Parts = parts
	return ticket, nil
}

// List returns tickets matching the filter.
func (s *WorkflowService) List(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	tickets, err := s.repos.Tickets().ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// History returns the transition log for a ticket, oldest first.
func (s *WorkflowService) History(ctx context.Context, ticketID string) ([]domain.TicketTransition, error) {
	if _, err := s.Get(ctx, ticketID); err != nil {
		return nil, err
	}
	transitions, err := s.repos.TicketTransitions().ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return transitions, nil
}

func lockTicket(ctx context.Context, repos repository.RepoProvider, ticketID string) (*domain.Ticket, error) {
	ticket, err := repos.Tickets().GetByIDForUpdate(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, err
	}
	return ticket, nil
}

func appendTransition(ctx context.Context, repos repository.RepoProvider, ticket *domain.Ticket, from domain.TicketStatus, action domain.WorkflowAction, actor, note string, metadata map[string]any) (*domain.TicketTransition, error) {
	transition := &domain.TicketTransition{
		ID:         ident.Next(),
		TicketID:   ticket.ID,
		FromStatus: from,
		ToStatus:   ticket.Status,
		Action:     action,
		Actor:      actor,
		Note:       note,
		Metadata:   metadata,
	}
	if err := repos.TicketTransitions().Create(ctx, transition); err != nil {
		return nil, err
	}
	return transition, nil
}

// openWorkSession writes a session with its initial RUNNING transition. The
// partial unique indexes on work_sessions reject a second open session per
// technician or per ticket at commit.
func openWorkSession(ctx context.Context, repos repository.RepoProvider, ticketID, technicianID string, now time.Time) (*domain.WorkSession, error) {
	session := &domain.WorkSession{
		ID:           uuid.NewString(),
		TicketID:     ticketID,
		TechnicianID: technicianID,
		Status:       domain.SessionStatusRunning,
		StartedAt:    now,
	}
	if err := repos.Sessions().Create(ctx, session); err != nil {
		return nil, err
	}
	transition := &domain.WorkSessionTransition{
		ID:           ident.Next(),
		SessionID:    session.ID,
		TechnicianID: technicianID,
		FromStatus:   "",
		ToStatus:     domain.SessionStatusRunning,
		Action:       domain.SessionActionStart,
	}
	if err := repos.SessionTransitions().Create(ctx, transition); err != nil {
		return nil, err
	}
	return session, nil
}

// firstPassEligible checks the bonus conditions: no qc_fail on record, some
// active work logged, and active time within the planned duration.
func firstPassEligible(ctx context.Context, repos repository.RepoProvider, ticket *domain.Ticket) (bool, error) {
	failed, err := repos.TicketTransitions().HasAction(ctx, ticket.ID, domain.ActionQCFail)
	if err != nil {
		return false, err
	}
	if failed {
		return false, nil
	}
	sessions, err := repos.Sessions().ListByTicket(ctx, ticket.ID)
	if err != nil {
		return false, err
	}
	var active int64
	for _, session := range sessions {
		active += session.ActiveSeconds
	}
	if active <= 0 {
		return false, nil
	}
	return active <= int64(ticket.TotalDuration)*60, nil
}

func postRepairXP(ctx context.Context, repos repository.RepoProvider, ticket *domain.Ticket, snap *rules.Snapshot, firstPass bool) (int, error) {
	technicianID := *ticket.TechnicianID
	awarded := 0
	if ticket.XPAmount > 0 {
		inserted, err := repos.XP().Create(ctx, &domain.XPEntry{
			ID:           ident.Next(),
			TechnicianID: technicianID,
			TicketID:     ticket.ID,
			Type:         domain.XPTicketReward,
			Amount:       ticket.XPAmount,
			Reference:    domain.XPReference(domain.XPTicketReward, ticket.ID),
		})
		if err != nil {
			return 0, err
		}
		if inserted {
			awarded += ticket.XPAmount
		}
	}
	if firstPass && snap.Config.TicketXP.FirstPassBonus > 0 {
		inserted, err := repos.XP().Create(ctx, &domain.XPEntry{
			ID:           ident.Next(),
			TechnicianID: technicianID,
			TicketID:     ticket.ID,
			Type:         domain.XPFirstPassBonus,
			Amount:       snap.Config.TicketXP.FirstPassBonus,
			Reference:    domain.XPReference(domain.XPFirstPassBonus, ticket.ID),
		})
		if err != nil {
			return 0, err
		}
		if inserted {
			awarded += snap.Config.TicketXP.FirstPassBonus
		}
	}
	return awarded, nil
}

func postReviewXP(ctx context.Context, repos repository.RepoProvider, ticket *domain.Ticket, transitionID int64, inspector string, snap *rules.Snapshot) error {
	amount := snap.Config.TicketXP.QCReview
	if amount <= 0 {
		return nil
	}
	_, err := repos.XP().Create(ctx, &domain.XPEntry{
		ID:           ident.Next(),
		TechnicianID: inspector,
		TicketID:     ticket.ID,
		Type:         domain.XPQCReview,
		Amount:       amount,
		Reference:    domain.XPReviewReference(ticket.ID, transitionID),
	})
	return err
}

func statusEvent(eventType events.EventType, ticket *domain.Ticket, from domain.TicketStatus, action domain.WorkflowAction, actor, note string) events.Event {
	return events.Event{
		Type:     eventType,
		TicketID: ticket.ID,
		Actor:    actor,
		Payload: events.TicketStatusChangedPayload{
			OldStatus: from,
			NewStatus: ticket.Status,
			Action:    action,
			Note:      note,
		},
	}
}

func requireActor(actor string) error {
	if strings.TrimSpace(actor) == "" {
		return apperrors.NewValidationError("actor is required", nil)
	}
	return nil
}

func buildParts(inputs []TicketPartInput) ([]domain.TicketPartSpec, error) {
	parts := make([]domain.TicketPartSpec, 0, len(inputs))
	for i, input := range inputs {
		name := strings.TrimSpace(input.PartName)
		if name == "" {
			return nil, apperrors.NewValidationError("part name is required", map[string]any{"position": i})
		}
		if input.EstimatedMinutes <= 0 {
			return nil, apperrors.NewValidationError("estimated minutes must be positive", map[string]any{"part": name})
		}
		if !validSeverity(input.Severity) {
			return nil, apperrors.NewValidationError("invalid severity color", map[string]any{"part": name, "severity": string(input.Severity)})
		}
		parts = append(parts, domain.TicketPartSpec{
			PartName:         name,
			Severity:         input.Severity,
			EstimatedMinutes: input.EstimatedMinutes,
		})
	}
	return parts, nil
}

func validSeverity(color domain.SeverityColor) bool {
	switch color {
	case domain.SeverityGreen, domain.SeverityYellow, domain.SeverityRed:
		return true
	}
	return false
}
