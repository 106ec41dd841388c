package localauth

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ResetNotifier delivers password reset tokens to the account owner.
type ResetNotifier interface {
	SendPasswordReset(ctx context.Context, email, token string, expiresAt time.Time) error
}

// LogNotifier writes reset tokens to the log. For development only.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier returns a LogNotifier writing to logger.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendPasswordReset(_ context.Context, email, token string, expiresAt time.Time) error {
	n.logger.Info("password reset requested",
		zap.String("email", email),
		zap.String("token", token),
		zap.Time("expires_at", expiresAt),
	)
	return nil
}
