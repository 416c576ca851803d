package mail

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier writes messages to the log instead of sending them. Used when
// no SMTP relay is configured.
type LogNotifier struct {
	logger *zap.SugaredLogger
}

func NewLogNotifier(logger *zap.SugaredLogger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(_ context.Context, msg Message) error {
	n.logger.Infow("mail not sent, smtp disabled", "to", msg.To, "subject", msg.Subject, "kind", msg.Kind)
	n.logger.Debugw("mail body", "to", msg.To, "body", msg.Body)
	return nil
}
