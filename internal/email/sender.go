// Package email delivers operator alerts.
package email

import (
	"context"
	"time"
)

// DeadLetterAlert describes a booking sync that will not be retried any more.
type DeadLetterAlert struct {
	TaskType  string
	TaskID    string
	BookingID string
	Queue     string
	Retried   int
	MaxRetry  int
	LastError string
	Payload   string
	FailedAt  time.Time
}

// Sender sends operator alerts.
type Sender interface {
	SendDeadLetterAlert(ctx context.Context, alert DeadLetterAlert) error
}

// NoopSender discards every alert. It is used when SMTP is not configured.
type NoopSender struct{}

func (NoopSender) SendDeadLetterAlert(context.Context, DeadLetterAlert) error {
	return nil
}
