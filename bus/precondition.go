package bus

import (
	"context"
	"fmt"

	"stockflow/contract"
	"stockflow/domain"
	errs "stockflow/errors"
)

// Precondition is a named, pure check run against current state before a
// handler executes. It reads through the same unit of work as the handler so
// check-then-act stays inside one transaction. It must not mutate state.
type Precondition struct {
	Name  string
	Check func(ctx context.Context, msg domain.Message, uow contract.UnitOfWork) error
}

// PreconditionEngine holds the ordered precondition chains per message type.
// Chains run fail-fast: later checks may assume earlier ones held.
type PreconditionEngine struct {
	checks map[string][]Precondition
	frozen bool
}

func NewPreconditionEngine() *PreconditionEngine {
	return &PreconditionEngine{checks: make(map[string][]Precondition)}
}

func (e *PreconditionEngine) Register(typeName string, ps ...Precondition) error {
	if e.frozen {
		return fmt.Errorf("%w: preconditions for %s", errs.ErrRegistryFrozen, typeName)
	}
	e.checks[typeName] = append(e.checks[typeName], ps...)
	return nil
}

func (e *PreconditionEngine) Freeze() {
	e.frozen = true
}

// Run executes the chain registered for the message type, in registration
// order, stopping at the first failure. The returned error is the failing
// check's signal, annotated with its name.
func (e *PreconditionEngine) Run(ctx context.Context, msg domain.Message, uow contract.UnitOfWork) error {
	for _, p := range e.checks[msg.TypeName()] {
		if err := p.Check(ctx, msg, uow); err != nil {
			return fmt.Errorf("precondition %q: %w", p.Name, err)
		}
	}
	return nil
}
