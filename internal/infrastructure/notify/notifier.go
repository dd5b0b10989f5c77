// Package notify holds the transports that hand rendered notifications to
// the outside world.
package notify

import (
	"context"

	"github.com/procurement/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Message is a rendered notification for one recipient
type Message struct {
	To       string            `json:"to"`
	Template string            `json:"template"`
	Subject  string            `json:"subject"`
	Body     string            `json:"text"`
	Context  map[string]string `json:"context,omitempty"`
}

// Notifier delivers a message. Failures are reported as *shared.DeliveryError.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// LogNotifier writes notifications to the log instead of sending them
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a new LogNotifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier
func (n *LogNotifier) Notify(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return &shared.DeliveryError{Address: msg.To, Template: msg.Template, Err: err}
	}
	n.logger.Info("Notification",
		zap.String("to", msg.To),
		zap.String("template", msg.Template),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body))
	return nil
}

var (
	_ Notifier = (*LogNotifier)(nil)
	_ Notifier = (*HTTPMailer)(nil)
)
