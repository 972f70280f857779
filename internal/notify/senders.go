package notify

import (
	"context"
	"log/slog"
	"math/rand"
)

// Default simulated delivery success rates.
const (
	DefaultEmailSuccessRate = 0.90
	DefaultSMSSuccessRate   = 0.85
)

// SimulatedEmailSender logs email deliveries and succeeds at a fixed rate.
type SimulatedEmailSender struct {
	successRate float64
	random      func() float64
	logger      *slog.Logger
}

// NewSimulatedEmailSender creates a log-only email sender.
func NewSimulatedEmailSender(successRate float64, logger *slog.Logger) *SimulatedEmailSender {
	return &SimulatedEmailSender{
		successRate: successRate,
		random:      rand.Float64,
		logger:      logger,
	}
}

// WithRand overrides the randomness source, used by tests for determinism.
func (s *SimulatedEmailSender) WithRand(random func() float64) *SimulatedEmailSender {
	s.random = random
	return s
}

func (s *SimulatedEmailSender) Send(ctx context.Context, recipient, message string) error {
	if s.random() >= s.successRate {
		s.logger.Warn("email delivery failed", "recipient", recipient)
		return ErrDeliveryFailed
	}
	s.logger.Info("email sent", "recipient", recipient, "preview", preview(message, 100))
	return nil
}

// SimulatedSMSSender logs SMS deliveries and succeeds at a fixed rate.
type SimulatedSMSSender struct {
	successRate float64
	random      func() float64
	logger      *slog.Logger
}

// NewSimulatedSMSSender creates a log-only SMS sender.
func NewSimulatedSMSSender(successRate float64, logger *slog.Logger) *SimulatedSMSSender {
	return &SimulatedSMSSender{
		successRate: successRate,
		random:      rand.Float64,
		logger:      logger,
	}
}

// WithRand overrides the randomness source, used by tests for determinism.
func (s *SimulatedSMSSender) WithRand(random func() float64) *SimulatedSMSSender {
	s.random = random
	return s
}

func (s *SimulatedSMSSender) Send(ctx context.Context, recipient, message string) error {
	if s.random() >= s.successRate {
		s.logger.Warn("sms delivery failed", "recipient", recipient)
		return ErrDeliveryFailed
	}
	s.logger.Info("sms sent", "recipient", recipient, "preview", preview(message, 50))
	return nil
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
