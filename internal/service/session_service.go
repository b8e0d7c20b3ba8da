package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/erkinov-wtf/rmbot-sub002/internal/domain"
	"github.com/erkinov-wtf/rmbot-sub002/internal/repository"
	"github.com/erkinov-wtf/rmbot-sub002/pkg/ident"
	apperrors "github.com/erkinov-wtf/rmbot-sub002/pkg/util"
)

// sessionTransitions maps each timer action to the statuses it may leave
// and the status it lands on.
var sessionTransitions = map[domain.SessionAction]struct {
	from []domain.WorkSessionStatus
	to   domain.WorkSessionStatus
}{
	domain.SessionActionPause:  {from: []domain.WorkSessionStatus{domain.SessionStatusRunning}, to: domain.SessionStatusPaused},
	domain.SessionActionResume: {from: []domain.WorkSessionStatus{domain.SessionStatusPaused}, to: domain.SessionStatusRunning},
	domain.SessionActionStop:   {from: []domain.WorkSessionStatus{domain.SessionStatusRunning, domain.SessionStatusPaused}, to: domain.SessionStatusStopped},
}

func nextSessionStatus(action domain.SessionAction, current domain.WorkSessionStatus) (domain.WorkSessionStatus, error) {
	rule, ok := sessionTransitions[action]
	if !ok {
		return "", apperrors.NewValidationError("unknown session action", map[string]any{"action": string(action)})
	}
	for _, from := range rule.from {
		if from == current {
			return rule.to, nil
		}
	}
	return "", apperrors.NewInvalidTransition(string(action), string(current), string(rule.to))
}

// SessionService drives work session timers. Durations are never kept as
// running counters; every mutation replays the session's transition log, so
// a crash between steps can at worst lose the last transition, never corrupt
// accumulated time.
type SessionService struct {
	tx     repository.TxRunner
	repos  repository.RepoProvider
	rules  RulesSource
	logger *zap.Logger
	now    func() time.Time
}

// SessionDependencies bundles collaborators for the session service.
type SessionDependencies struct {
	Tx     repository.TxRunner
	Repos  repository.RepoProvider
	Rules  RulesSource
	Logger *zap.Logger
	Now    func() time.Time
}

// PauseBudget reports a technician's pause consumption for one business day.
type PauseBudget struct {
	TechnicianID     string
	DayStart         time.Time
	DayEnd           time.Time
	LimitSeconds     int64
	ConsumedSeconds  int64
	RemainingSeconds int64
}

// NewSessionService constructs the service.
func NewSessionService(deps SessionDependencies) *SessionService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &SessionService{
		tx:     deps.Tx,
		repos:  deps.Repos,
		rules:  deps.Rules,
		logger: deps.Logger,
		now:    now,
	}
}

// Start opens a fresh timer on an in-progress ticket. The first session is
// opened by the workflow start action; this entry point covers continued
// work after a stop.
func (s *SessionService) Start(ctx context.Context, ticketID, technicianID string) (*domain.WorkSession, error) {
	if technicianID == "" {
		return nil, apperrors.NewValidationError("technician_id is required", nil)
	}
	var session *domain.WorkSession
	err := s.tx.WithTx(ctx, func(repos repository.RepoProvider) error {
		ticket, err := lockTicket(ctx, repos, ticketID)
		if err != nil {
			return err
		}
		if ticket.Status != domain.TicketStatusInProgress {
			return apperrors.NewValidationError("ticket is not in progress", map[string]any{
				"ticket_id": ticket.ID,
				"status":    string(ticket.Status),
			})
		}
		if ticket.TechnicianID == nil || *ticket.TechnicianID != technicianID {
			return apperrors.NewValidationError("ticket is not assigned to technician", map[string]any{
				"ticket_id":     ticket.ID,
				"technician_id": technicianID,
			})
		}
		if _, err := repos.Sessions().GetOpenByTicket(ctx, ticket.ID); err == nil {
			return apperrors.NewConflict("ticket already has an open work session", map[string]any{"ticket_id": ticket.ID})
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		if _, err := repos.Sessions().GetOpenByTechnician(ctx, technicianID); err == nil {
			return apperrors.NewConflict("technician already has an open work session", map[string]any{"technician_id": technicianID})
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		session, err = openWorkSession(ctx, repos, ticket.ID, technicianID, s.now().UTC())
		return err
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return session, nil
}

// Pause suspends a running timer. The pause is charged against the
// technician's daily budget; an exhausted budget rejects the pause.
func (s *SessionService) Pause(ctx context.Context, sessionID string) (*domain.WorkSession, error) {
	var session *domain.WorkSession
	err := s.tx.WithTx(ctx, func(repos repository.RepoProvider) error {
		var err error
		session, err = lockSession(ctx, repos, sessionID)
		if err != nil {
			return err
		}
		next, err := nextSessionStatus(domain.SessionActionPause, session.Status)
		if err != nil {
			return err
		}
		snap := s.rules.Active()
		if snap == nil {
			return apperrors.NewInternalError(errors.New("no active rules snapshot"))
		}

		now := s.now().UTC()
		limit := int64(snap.Config.WorkSession.DailyPauseLimitMinutes) * 60
		dayStart, dayEnd := snap.Calendar.DayBounds(now)
		consumed, err := pausedSecondsBetween(ctx, repos, session.TechnicianID, dayStart, dayEnd, now)
		if err != nil {
			return err
		}
		if consumed >= limit {
			return apperrors.NewValidationError("daily pause budget exhausted", map[string]any{
				"technician_id":    session.TechnicianID,
				"consumed_seconds": consumed,
				"limit_seconds":    limit,
			})
		}
		return applySessionTransition(ctx, repos, session, next, domain.SessionActionPause, now)
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return session, nil
}

// Resume restarts a paused timer.
func (s *SessionService) Resume(ctx context.Context, sessionID string) (*domain.WorkSession, error) {
	var session *domain.WorkSession
	err := s.tx.WithTx(ctx, func(repos repository.RepoProvider) error {
		var err error
		session, err = lockSession(ctx, repos, sessionID)
		if err != nil {
			return err
		}
		next, err := nextSessionStatus(domain.SessionActionResume, session.Status)
		if err != nil {
			return err
		}
		return applySessionTransition(ctx, repos, session, next, domain.SessionActionResume, s.now().UTC())
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return session, nil
}

// Stop closes a timer for good. Further work on the ticket needs a new
// session.
func (s *SessionService) Stop(ctx context.Context, sessionID string) (*domain.WorkSession, error) {
	var session *domain.WorkSession
	err := s.tx.WithTx(ctx, func(repos repository.RepoProvider) error {
		var err error
		session, err = lockSession(ctx, repos, sessionID)
		if err != nil {
			return err
		}
		next, err := nextSessionStatus(domain.SessionActionStop, session.Status)
		if err != nil {
			return err
		}
		return applySessionTransition(ctx, repos, session, next, domain.SessionActionStop, s.now().UTC())
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return session, nil
}

// ActiveSeconds replays the session's transition log as of now. Replaying
// the same log twice yields the same value.
func (s *SessionService) ActiveSeconds(ctx context.Context, sessionID string) (int64, error) {
	if _, err := s.getSession(ctx, sessionID); err != nil {
		return 0, err
	}
	log, err := s.repos.SessionTransitions().ListBySession(ctx, sessionID)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	return domain.ReplayActiveSeconds(log, s.now().UTC()), nil
}

// Get returns a session with its transition log. For a session that is not
// stopped the stored active seconds lag behind the clock, so the value is
// replayed live.
func (s *SessionService) Get(ctx context.Context, sessionID string) (*domain.WorkSession, []domain.WorkSessionTransition, error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	log, err := s.repos.SessionTransitions().ListBySession(ctx, sessionID)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	if session.Status != domain.SessionStatusStopped {
		session.ActiveSeconds = domain.ReplayActiveSeconds(log, s.now().UTC())
	}
	return session, log, nil
}

// ListByTicket returns every session opened for a ticket, oldest first.
func (s *SessionService) ListByTicket(ctx context.Context, ticketID string) ([]domain.WorkSession, error) {
	sessions, err := s.repos.Sessions().ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return sessions, nil
}

// PauseBudgetStatus reports the technician's remaining pause budget for the
// current business day.
func (s *SessionService) PauseBudgetStatus(ctx context.Context, technicianID string) (*PauseBudget, error) {
	snap := s.rules.Active()
	if snap == nil {
		return nil, apperrors.NewInternalError(errors.New("no active rules snapshot"))
	}
	now := s.now().UTC()
	dayStart, dayEnd := snap.Calendar.DayBounds(now)
	consumed, err := pausedSecondsBetween(ctx, s.repos, technicianID, dayStart, dayEnd, now)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	limit := int64(snap.Config.WorkSession.DailyPauseLimitMinutes) * 60
	remaining := limit - consumed
	if remaining < 0 {
		remaining = 0
	}
	return &PauseBudget{
		TechnicianID:     technicianID,
		DayStart:         dayStart,
		DayEnd:           dayEnd,
		LimitSeconds:     limit,
		ConsumedSeconds:  consumed,
		RemainingSeconds: remaining,
	}, nil
}

// EnforcePauseBudgets resumes paused sessions whose technician has used up
// the daily budget. The worker calls this periodically so a session cannot
// idle in PAUSED forever.
func (s *SessionService) EnforcePauseBudgets(ctx context.Context) (int, error) {
	snap := s.rules.Active()
	if snap == nil {
		return 0, apperrors.NewInternalError(errors.New("no active rules snapshot"))
	}
	paused, err := s.repos.Sessions().ListPaused(ctx)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	limit := int64(snap.Config.WorkSession.DailyPauseLimitMinutes) * 60

	resumed := 0
	for _, candidate := range paused {
		didResume := false
		err := s.tx.WithTx(ctx, func(repos repository.RepoProvider) error {
			session, err := repos.Sessions().GetByIDForUpdate(ctx, candidate.ID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return nil
				}
				return err
			}
			if session.Status != domain.SessionStatusPaused {
				return nil
			}
			now := s.now().UTC()
			dayStart, dayEnd := snap.Calendar.DayBounds(now)
			consumed, err := pausedSecondsBetween(ctx, repos, session.TechnicianID, dayStart, dayEnd, now)
			if err != nil {
				return err
			}
			if consumed < limit {
				return nil
			}
			if err := applySessionTransition(ctx, repos, session, domain.SessionStatusRunning, domain.SessionActionResume, now); err != nil {
				return err
			}
			didResume = true
			s.logger.Info("pause budget exhausted, session resumed",
				zap.String("session_id", session.ID),
				zap.String("technician_id", session.TechnicianID),
				zap.Int64("consumed_seconds", consumed),
			)
			return nil
		})
		if err != nil {
			return resumed, apperrors.MapError(err)
		}
		if didResume {
			resumed++
		}
	}
	return resumed, nil
}

func (s *SessionService) getSession(ctx context.Context, sessionID string) (*domain.WorkSession, error) {
	session, err := s.repos.Sessions().GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("work session", map[string]any{"session_id": sessionID})
		}
		return nil, apperrors.MapError(err)
	}
	return session, nil
}

func lockSession(ctx context.Context, repos repository.RepoProvider, sessionID string) (*domain.WorkSession, error) {
	session, err := repos.Sessions().GetByIDForUpdate(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("work session", map[string]any{"session_id": sessionID})
		}
		return nil, err
	}
	return session, nil
}

// applySessionTransition appends the audit row, replays the full log to
// refresh active seconds and persists the session.
func applySessionTransition(ctx context.Context, repos repository.RepoProvider, session *domain.WorkSession, next domain.WorkSessionStatus, action domain.SessionAction, now time.Time) error {
	transition := &domain.WorkSessionTransition{
		ID:           ident.Next(),
		SessionID:    session.ID,
		TechnicianID: session.TechnicianID,
		FromStatus:   session.Status,
		ToStatus:     next,
		Action:       action,
	}
	if err := repos.SessionTransitions().Create(ctx, transition); err != nil {
		return err
	}
	log, err := repos.SessionTransitions().ListBySession(ctx, session.ID)
	if err != nil {
		return err
	}
	session.Status = next
	session.ActiveSeconds = domain.ReplayActiveSeconds(log, now)
	if next == domain.SessionStatusStopped {
		stoppedAt := now
		session.StoppedAt = &stoppedAt
	}
	return repos.Sessions().Update(ctx, session)
}

// pausedSecondsBetween sums the technician's pause consumption inside
// [dayStart, dayEnd) across every session whose lifetime touches that day.
func pausedSecondsBetween(ctx context.Context, repos repository.RepoProvider, technicianID string, dayStart, dayEnd, now time.Time) (int64, error) {
	sessions, err := repos.Sessions().ListByTechnicianOverlapping(ctx, technicianID, dayStart, dayEnd)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, session := range sessions {
		log, err := repos.SessionTransitions().ListBySession(ctx, session.ID)
		if err != nil {
			return 0, err
		}
		total += domain.ReplayPausedSeconds(log, dayStart, dayEnd, now)
	}
	return total, nil
}
