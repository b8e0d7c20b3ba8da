package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Outbox buffers events raised inside a database transaction so they reach
// subscribers only after the transaction commits. A rolled back operation
// simply drops its outbox, and no observer ever sees a state that was never
// persisted.
type Outbox struct {
	dispatcher Dispatcher
	logger     *zap.Logger
	pending    []Event
}

// NewOutbox creates an empty outbox. One outbox serves one operation; it is
// not safe for concurrent use.
func NewOutbox(dispatcher Dispatcher, logger *zap.Logger) *Outbox {
	return &Outbox{dispatcher: dispatcher, logger: logger}
}

// Add stages an event for publication, assigning its id and timestamp.
func (o *Outbox) Add(event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	o.pending = append(o.pending, event)
}

// Flush publishes every staged event. Publication failures are logged and
// swallowed: the state change already committed and must not be rolled back
// over a notification problem.
func (o *Outbox) Flush(ctx context.Context) {
	for _, event := range o.pending {
		if err := o.dispatcher.Publish(ctx, event); err != nil {
			o.logger.Warn("event publish failed",
				zap.String("event_type", string(event.Type)),
				zap.String("ticket_id", event.TicketID),
				zap.Error(err),
			)
		}
	}
	o.pending = nil
}

// Discard drops staged events without publishing.
func (o *Outbox) Discard() {
	o.pending = nil
}

// Len reports how many events are staged.
func (o *Outbox) Len() int {
	return len(o.pending)
}
