package feed

import (
	"context"

	"github.com/eaugeas/keyset/logs"
)

// LogPublisher writes every event as a log entry
type LogPublisher struct {
	logger logs.Logger
}

// NewLogPublisher creates a publisher that logs events at info level
func NewLogPublisher(logger logs.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.ForClass("feed", "LogPublisher")}
}

// Log implementation of logs.Loggable
func (e Event) Log(fields logs.Fields) {
	fields.Add("set", e.Set)
	fields.Add("op", string(e.Op))
	switch e.Op {
	case OpInsert, OpDelete:
		fields.Add("key", e.Key)
	case OpCreate:
		fields.Add("kind", e.Kind)
	}
	fields.Add("applied", e.Applied)
}

func (p *LogPublisher) Publish(ctx context.Context, events ...Event) error {
	for _, event := range events {
		p.logger.Info(ctx, "set changed", event)
	}
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
