// Package notify hands outbound mail requests to whatever delivers them.
// Rendering and SMTP are the consumer's job.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/hongminglow/kinder-admin/internal/logger"
)

// ConfirmTemplate is the template name the mail consumer renders for
// account confirmation.
const ConfirmTemplate = "auth/email/confirm"

// Message asks for template to be rendered with Data and sent to To.
type Message struct {
	To       string            `json:"to"`
	Subject  string            `json:"subject"`
	Template string            `json:"template"`
	Data     map[string]string `json:"data"`
}

// Notifier delivers mail requests.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// LogNotifier writes requests to the log. Used when no broker is configured.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Send(_ context.Context, msg Message) error {
	n.log.Info("mail request",
		zap.String("to", logger.MaskEmail(msg.To)),
		zap.String("subject", msg.Subject),
		zap.String("template", msg.Template),
	)
	return nil
}
