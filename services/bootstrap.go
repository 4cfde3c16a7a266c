package services

import (
	"fmt"
	"log/slog"

	"stockflow/bus"
	"stockflow/contract"
	"stockflow/domain"
	"stockflow/domain/event"
	"stockflow/schema"
)

// App bundles the assembled pipeline and the pieces boundaries need.
type App struct {
	Bus     *bus.Bus
	Counter *AllocationCounter
}

// Bootstrap builds and freezes the registries and wires the dispatcher. All
// registration happens here, before any dispatch call; afterwards the
// registries are read-only for the life of the process.
func Bootstrap(log *slog.Logger, starter contract.UnitOfWorkStarter) (*App, error) {
	schemas := schema.NewRegistry()
	handlers := bus.NewHandlerRegistry()
	preconds := bus.NewPreconditionEngine()
	counter := NewAllocationCounter(log)
	views := NewAllocationViewHandler(log)

	schemaEntries := map[string]schema.Schema{
		domain.TypeAllocate: {
			Fields: []schema.Field{
				{Name: "orderid", Kind: schema.String, Required: true},
				{Name: "sku", Kind: schema.String, Required: true},
				{Name: "qty", Kind: schema.Int, Required: true},
			},
			New: func() domain.Message { return &domain.AllocateCommand{} },
		},
		domain.TypeCreateBatch: {
			Fields: []schema.Field{
				{Name: "ref", Kind: schema.String, Required: true},
				{Name: "sku", Kind: schema.String, Required: true},
				{Name: "qty", Kind: schema.Int, Required: true},
				{Name: "eta", Kind: schema.Time, Required: false},
			},
			New: func() domain.Message { return &domain.CreateBatchCommand{} },
		},
		domain.TypeChangeBatchQuantity: {
			Fields: []schema.Field{
				{Name: "ref", Kind: schema.String, Required: true},
				{Name: "qty", Kind: schema.Int, Required: true},
			},
			New: func() domain.Message { return &domain.ChangeBatchQuantityCommand{} },
		},
	}
	for name, s := range schemaEntries {
		if err := schemas.Register(name, s); err != nil {
			return nil, fmt.Errorf("register schema: %w", err)
		}
	}

	commandHandlers := map[string]contract.Handler{
		domain.TypeAllocate:            NewAllocateHandler(log),
		domain.TypeCreateBatch:         NewCreateBatchHandler(log),
		domain.TypeChangeBatchQuantity: NewChangeBatchQuantityHandler(log),
	}
	for name, h := range commandHandlers {
		if err := handlers.RegisterCommand(name, h); err != nil {
			return nil, fmt.Errorf("register command: %w", err)
		}
	}

	// Ordering matters for Deallocated: drop the stale view entry before the
	// reallocation records a fresh Allocated event.
	if err := handlers.RegisterEvent(event.TypeAllocated, views, counter); err != nil {
		return nil, fmt.Errorf("register event: %w", err)
	}
	if err := handlers.RegisterEvent(event.TypeDeallocated, views, NewReallocateHandler(log), counter); err != nil {
		return nil, fmt.Errorf("register event: %w", err)
	}
	if err := handlers.RegisterEvent(event.TypeBatchCreated, counter); err != nil {
		return nil, fmt.Errorf("register event: %w", err)
	}

	// "sku exists" runs first: the later checks assume a known SKU.
	if err := preconds.Register(domain.TypeAllocate,
		SKUExists(), LineNotAllocated(), SufficientStock()); err != nil {
		return nil, fmt.Errorf("register preconditions: %w", err)
	}
	if err := preconds.Register(domain.TypeCreateBatch, BatchRefAvailable()); err != nil {
		return nil, fmt.Errorf("register preconditions: %w", err)
	}
	if err := preconds.Register(domain.TypeChangeBatchQuantity, BatchExists()); err != nil {
		return nil, fmt.Errorf("register preconditions: %w", err)
	}

	schemas.Freeze()
	handlers.Freeze()
	preconds.Freeze()

	return &App{
		Bus:     bus.New(log, schemas, handlers, preconds, starter),
		Counter: counter,
	}, nil
}
