package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/vendorlane/api/internal/services"
)

// LogMessenger writes durable deliveries to the log instead of an external
// provider. It stands in for a mail gateway in local and test deployments.
type LogMessenger struct {
	logger *zap.Logger
}

// NewLogMessenger constructs a logging messenger.
func NewLogMessenger(logger *zap.Logger) *LogMessenger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMessenger{logger: logger}
}

// Send implements services.Messenger.
func (m *LogMessenger) Send(ctx context.Context, channel services.NotificationChannel, recipient string, payload map[string]any) error {
	if recipient == "" {
		return errors.New("log messenger: recipient is required")
	}
	m.logger.Info("notification delivered",
		zap.String("channel", string(channel)),
		zap.String("recipient", recipient),
		zap.Any("payload", payload),
	)
	return nil
}
