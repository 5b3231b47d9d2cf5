// Package events contains in-process implementations of the event
// publishing and locking ports, used when no Redis is configured.
package events

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/example/dispatch/internal/ports/secondary"
)

// LogPublisher writes every event to a logrus logger.
type LogPublisher struct {
	logger logrus.FieldLogger
}

// NewLogPublisher creates a publisher that logs events at Info level.
func NewLogPublisher(logger logrus.FieldLogger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs the event name with its payload.
func (p *LogPublisher) Publish(ctx context.Context, name string, payload any) error {
	p.logger.WithFields(logrus.Fields{
		"event":   name,
		"payload": payload,
	}).Info("event published")
	return nil
}

// NoopPublisher discards every event.
type NoopPublisher struct{}

// Publish does nothing.
func (NoopPublisher) Publish(context.Context, string, any) error { return nil }

var (
	_ secondary.EventPublisher = (*LogPublisher)(nil)
	_ secondary.EventPublisher = NoopPublisher{}
)
