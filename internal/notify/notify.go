package notify

import (
	"context"

	"go.uber.org/zap"
)

type Event string

const (
	EventRequestCreated   Event = "exchange_request.created"
	EventRequestApproved  Event = "exchange_request.approved"
	EventRequestRejected  Event = "exchange_request.rejected"
	EventRequestCancelled Event = "exchange_request.cancelled"
)

type Payload struct {
	RequestID   string `json:"request_id"`
	FromEntryID uint   `json:"from_entry_id"`
	ToEntryID   uint   `json:"to_entry_id"`
	Message     string `json:"message,omitempty"`
}

// Gateway delivers exchange events to users. Delivery is best-effort:
// callers log failures and never let them affect the triggering operation.
type Gateway interface {
	Notify(ctx context.Context, event Event, recipient string, payload Payload) error
}

// LogGateway is the default delivery backend: it writes the event to the
// log. Real channels (mail, messengers) plug in behind the same interface.
type LogGateway struct {
	logger *zap.Logger
}

func NewLogGateway(logger *zap.Logger) *LogGateway {
	return &LogGateway{logger: logger}
}

func (g *LogGateway) Notify(_ context.Context, event Event, recipient string, payload Payload) error {
	g.logger.Info("notification",
		zap.String("event", string(event)),
		zap.String("recipient", recipient),
		zap.String("request_id", payload.RequestID),
		zap.Uint("from_entry_id", payload.FromEntryID),
		zap.Uint("to_entry_id", payload.ToEntryID),
	)
	return nil
}
