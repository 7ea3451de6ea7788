package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/russiantech/score-app-server-sub000/internal/models"
)

// LogCodeSender writes verification codes to the application log. It stands
// in for a real email/SMS gateway in development environments.
type LogCodeSender struct {
	logger *zap.Logger
}

// NewLogCodeSender constructs a LogCodeSender.
func NewLogCodeSender(logger *zap.Logger) *LogCodeSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogCodeSender{logger: logger}
}

// Send logs the code instead of delivering it.
func (s *LogCodeSender) Send(_ context.Context, channel models.VerificationChannel, recipient, code string) error {
	s.logger.Info("verification code dispatched",
		zap.String("channel", string(channel)),
		zap.String("recipient", recipient),
		zap.String("code", code))
	return nil
}
