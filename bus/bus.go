// Package bus implements the tiered dispatch pipeline: handler resolution,
// syntax validation, preconditions inside a unit of work, handler execution,
// and outcome classification. No handler ever observes a malformed or
// duplicate message.
package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"stockflow/contract"
	"stockflow/domain"
	errs "stockflow/errors"
	"stockflow/schema"
)

// Bus is the dispatcher. It is reentrant and stateless aside from the frozen
// registries; concurrent callers need no external synchronization because
// every handler invocation opens its own unit of work.
type Bus struct {
	log      *slog.Logger
	schemas  *schema.Registry
	handlers *HandlerRegistry
	preconds *PreconditionEngine
	starter  contract.UnitOfWorkStarter
}

func New(log *slog.Logger, schemas *schema.Registry, handlers *HandlerRegistry,
	preconds *PreconditionEngine, starter contract.UnitOfWorkStarter) *Bus {
	return &Bus{log: log, schemas: schemas, handlers: handlers, preconds: preconds, starter: starter}
}

// Dispatch runs the full pipeline for one raw payload. The steps are strictly
// sequential: resolve the type, validate syntax, then deliver. A message that
// fails a stage never reaches the next one.
func (b *Bus) Dispatch(ctx context.Context, typeName string, payload []byte) Outcome {
	reg, ok := b.handlers.lookup(typeName)
	if !ok {
		return Failed(fmt.Errorf("%w: %s", errs.ErrUnknownMessageType, typeName))
	}

	msg, fieldErrs, err := b.schemas.Decode(typeName, payload)
	if err != nil {
		return Failed(err)
	}
	if len(fieldErrs) > 0 {
		return Rejected(fieldErrs)
	}

	return b.deliver(ctx, msg, reg)
}

// DispatchMessage routes an already-typed message, bypassing syntax
// validation. This is how follow-on events recorded by handlers travel; they
// never existed as raw payloads.
func (b *Bus) DispatchMessage(ctx context.Context, msg domain.Message) Outcome {
	reg, ok := b.handlers.lookup(msg.TypeName())
	if !ok {
		return Failed(fmt.Errorf("%w: %s", errs.ErrUnknownMessageType, msg.TypeName()))
	}
	return b.deliver(ctx, msg, reg)
}

func (b *Bus) deliver(ctx context.Context, msg domain.Message, reg registration) Outcome {
	switch reg.role {
	case RoleCommand:
		out, followups := b.invoke(ctx, msg, reg.handlers[0])
		if out.Status == StatusDispatched {
			b.drain(ctx, followups)
		}
		return out
	default:
		return b.fanout(ctx, msg, reg.handlers)
	}
}

// fanout invokes every event handler in registration order. Handlers are
// independent: a failure in one is recorded but does not prevent the rest
// from running, and never hides their completions.
func (b *Bus) fanout(ctx context.Context, msg domain.Message, handlers []contract.Handler) Outcome {
	var (
		results    []any
		failures   []error
		followups  []domain.Message
		skipReason string
		skipped    int
	)

	for _, h := range handlers {
		out, events := b.invoke(ctx, msg, h)
		switch out.Status {
		case StatusDispatched:
			results = append(results, out.Result)
			followups = append(followups, events...)
		case StatusSkipped:
			skipped++
			if skipReason == "" {
				skipReason = out.Reason
			}
		default:
			failures = append(failures, fmt.Errorf("event %s: %w", msg.TypeName(), out.Err))
			b.log.Error("Event handler failed, continuing fan-out",
				"type", msg.TypeName(), "error", out.Err)
		}
	}
	b.drain(ctx, followups)

	if len(failures) > 0 {
		out := Failed(errors.Join(failures...))
		out.Result = results
		return out
	}
	if len(handlers) > 0 && skipped == len(handlers) {
		return Skipped(skipReason)
	}
	return Dispatched(results)
}

// invoke runs the precondition chain and one handler inside a fresh unit of
// work. The unit of work is released on every exit path: commit on success,
// rollback on failure, skip, panic, or caller cancellation.
func (b *Bus) invoke(ctx context.Context, msg domain.Message, h contract.Handler) (out Outcome, followups []domain.Message) {
	uow, err := b.starter.Begin(ctx)
	if err != nil {
		return Failed(fmt.Errorf("begin unit of work: %w", err)), nil
	}
	defer uow.Rollback()
	defer func() {
		if r := recover(); r != nil {
			out = Failed(fmt.Errorf("%w: %v", errs.ErrHandlerPanic, r))
			followups = nil
		}
	}()

	if err := b.preconds.Run(ctx, msg, uow); err != nil {
		return classify(err), nil
	}

	result, err := h.Handle(ctx, msg, uow)
	if err != nil {
		return classify(err), nil
	}

	followups = uow.Events()
	if err := uow.Commit(); err != nil {
		return Failed(fmt.Errorf("commit: %w", err)), nil
	}
	return Dispatched(result), followups
}

// drain dispatches follow-on events depth first. Their outcomes are not
// returned to the original caller, only logged.
func (b *Bus) drain(ctx context.Context, followups []domain.Message) {
	for _, evt := range followups {
		out := b.DispatchMessage(ctx, evt)
		switch out.Status {
		case StatusDispatched:
			b.log.Debug("Follow-on event dispatched", "type", evt.TypeName())
		case StatusSkipped:
			b.log.Warn("Follow-on event skipped", "type", evt.TypeName(), "reason", out.Reason)
		default:
			b.log.Error("Follow-on event not processed",
				"type", evt.TypeName(), "status", out.Status.String(), "error", out.Err)
		}
	}
}
