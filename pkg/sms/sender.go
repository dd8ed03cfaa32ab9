package sms

import (
	"context"

	"github.com/rs/zerolog"
)

// Sender delivers SMS messages. Implementations are best-effort; the
// caller never rolls back on delivery failure.
type Sender interface {
	Send(ctx context.Context, phone, message string) error
}

// ConsoleSender logs messages instead of sending them. Used in
// development and tests.
type ConsoleSender struct {
	logger zerolog.Logger
}

func NewConsoleSender(logger zerolog.Logger) *ConsoleSender {
	return &ConsoleSender{logger: logger}
}

func (s *ConsoleSender) Send(_ context.Context, phone, message string) error {
	s.logger.Info().
		Str("phone", phone).
		Str("message", message).
		Msg("sms delivered to console")
	return nil
}
