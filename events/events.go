/*
Package events publishes leave decisions to downstream consumers
(notification mailers, payroll exports).

Publishing is fire-and-forget: it happens after the ledger commit and its
failures are logged, never returned to the approver.
*/
package events

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

const (
	TypeLeaveRequested = "leave.requested"
	TypeLeaveApproved  = "leave.approved"
	TypeLeaveRejected  = "leave.rejected"
	TypeLeaveAccrued   = "leave.accrued"
)

// Event is one domain notification. Key orders events of one employee.
type Event struct {
	Type       string         `json:"type"`
	Key        string         `json:"key"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Log writes events to a zap logger. Used in development and when no broker
// is configured.
type Log struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger.Named("events")}
}

func (l *Log) Publish(_ context.Context, e Event) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return err
	}
	l.logger.Info("event published",
		zap.String("type", e.Type),
		zap.String("key", e.Key),
		zap.Time("occurred_at", e.OccurredAt),
		zap.ByteString("payload", payload),
	)
	return nil
}

func (l *Log) Close() error { return nil }
