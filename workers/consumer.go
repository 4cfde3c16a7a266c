// Package workers runs the asynchronous boundary: a supervised consumer
// draining the ingress queue through the bus.
package workers

import (
	"context"
	"log/slog"

	"stockflow/bus"
	"stockflow/schema"
)

// Consumer drains the queue and dispatches every envelope. At this boundary
// there is nobody to answer, so the outcome mapping is log-only: malformed
// input is a logged drop, never a crash.
type Consumer struct {
	log   *slog.Logger
	bus   *bus.Bus
	queue *Queue
}

func NewConsumer(log *slog.Logger, b *bus.Bus, queue *Queue) Consumer {
	return Consumer{log: log, bus: b, queue: queue}
}

func (c Consumer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			c.log.Debug("Context done, stopping consumer")
			return nil
		case raw := <-c.queue.Messages():
			c.process(ctx, raw)
		}
	}
}

func (c Consumer) process(ctx context.Context, raw []byte) {
	env, err := schema.ParseEnvelope(raw)
	if err != nil {
		c.log.Error("Dropping message with invalid envelope", "error", err)
		return
	}

	out := c.bus.Dispatch(ctx, env.TypeName, env.Payload)
	logArgs := []any{"message_id", env.MessageID, "type", env.TypeName}

	switch out.Status {
	case bus.StatusDispatched:
		c.log.Debug("Message dispatched", logArgs...)
	case bus.StatusSkipped:
		c.log.Warn("Message skipped", append(logArgs, "reason", out.Reason)...)
	case bus.StatusRejected:
		c.log.Error("Dropping rejected message", append(logArgs, "field_errors", out.FieldErrors)...)
	case bus.StatusUnprocessable:
		c.log.Error("Message unprocessable", append(logArgs, "kind", out.Kind, "detail", out.Detail)...)
	default:
		c.log.Error("Dispatch failed", append(logArgs, "error", out.Err)...)
	}
}
