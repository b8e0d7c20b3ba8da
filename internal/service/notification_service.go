package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/erkinov-wtf/rmbot-sub002/internal/events"
	"github.com/erkinov-wtf/rmbot-sub002/internal/repository"
)

// TechnicianNotifier sends one direct message to a Telegram chat.
type TechnicianNotifier interface {
	Enabled() bool
	Send(ctx context.Context, chatID int64, text string) error
}

// NotificationService turns workflow events into technician-facing Telegram
// messages. Delivery is fire and forget; a failed send is logged and the
// workflow outcome stands.
type NotificationService struct {
	repos    repository.RepoProvider
	notifier TechnicianNotifier
	logger   *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(repos repository.RepoProvider, notifier TechnicianNotifier, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		repos:    repos,
		notifier: notifier,
		logger:   logger,
	}
}

// RegisterHandlers subscribes to the workflow events that carry a message
// for a technician.
func (n *NotificationService) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventTicketAssigned, n.handleAssigned)
	dispatcher.Subscribe(events.EventTicketStarted, n.handleStatusChanged)
	dispatcher.Subscribe(events.EventTicketWaiting, n.handleStatusChanged)
	dispatcher.Subscribe(events.EventTicketQCPassed, n.handleQCVerdict)
	dispatcher.Subscribe(events.EventTicketQCFailed, n.handleQCVerdict)
}

func (n *NotificationService) handleAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketAssignedPayload)
	if !ok {
		return nil
	}
	text := fmt.Sprintf("Ticket %s has been assigned to you.", event.TicketID)
	n.send(ctx, payload.TechnicianID, event, text)
	return nil
}

func (n *NotificationService) handleStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok {
		return nil
	}
	n.logger.Info("ticket status changed",
		zap.String("ticket_id", event.TicketID),
		zap.String("action", string(payload.Action)),
		zap.String("old_status", string(payload.OldStatus)),
		zap.String("new_status", string(payload.NewStatus)),
	)
	return nil
}

func (n *NotificationService) handleQCVerdict(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketQCPayload)
	if !ok || payload.TechnicianID == "" {
		return nil
	}

	var text string
	if event.Type == events.EventTicketQCPassed {
		text = fmt.Sprintf("Ticket %s passed QC.", event.TicketID)
		if payload.XPAwarded > 0 {
			text = fmt.Sprintf("Ticket %s passed QC. You earned %d XP.", event.TicketID, payload.XPAwarded)
		}
	} else {
		text = fmt.Sprintf("Ticket %s failed QC and is back in rework.", event.TicketID)
		if payload.Reason != "" {
			text = fmt.Sprintf("Ticket %s failed QC and is back in rework: %s", event.TicketID, payload.Reason)
		}
	}
	n.send(ctx, payload.TechnicianID, event, text)
	return nil
}

// send resolves the technician's chat and posts the message. Missing chat
// ids and transport failures only log.
func (n *NotificationService) send(ctx context.Context, technicianID string, event events.Event, text string) {
	if n.notifier == nil || !n.notifier.Enabled() {
		return
	}

	technician, err := n.repos.Technicians().GetByID(ctx, technicianID)
	if err != nil {
		n.logger.Warn("notification target lookup failed",
			zap.String("technician_id", technicianID),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err),
		)
		return
	}
	if technician.TelegramChatID == nil {
		return
	}

	if err := n.notifier.Send(ctx, *technician.TelegramChatID, text); err != nil {
		n.logger.Warn("notification send failed",
			zap.String("technician_id", technician.ID),
			zap.String("ticket_id", event.TicketID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err),
		)
		return
	}
	n.logger.Debug("notification sent",
		zap.String("technician_id", technician.ID),
		zap.String("event_type", string(event.Type)),
	)
}
