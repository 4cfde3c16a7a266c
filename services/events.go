package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"stockflow/bus"
	"stockflow/contract"
	"stockflow/domain"
	"stockflow/domain/event"
)

// AllocationViewHandler keeps the allocation read model in sync with the
// Allocated and Deallocated events.
type AllocationViewHandler struct {
	log *slog.Logger
}

func NewAllocationViewHandler(log *slog.Logger) AllocationViewHandler {
	return AllocationViewHandler{log: log}
}

func (h AllocationViewHandler) Handle(ctx context.Context, msg domain.Message, uow contract.UnitOfWork) (any, error) {
	switch e := msg.(type) {
	case event.Allocated:
		return nil, uow.Views().Set(e.OrderID, e.SKU, e.BatchRef)
	case event.Deallocated:
		return nil, uow.Views().Delete(e.OrderID, e.SKU)
	default:
		return nil, fmt.Errorf("allocation view: unexpected message %T", msg)
	}
}

// ReallocateHandler finds a new home for a line deallocated by a shrinking
// batch. A successful reallocation records a fresh Allocated event, which in
// turn updates the read model.
type ReallocateHandler struct {
	log *slog.Logger
}

func NewReallocateHandler(log *slog.Logger) ReallocateHandler {
	return ReallocateHandler{log: log}
}

func (h ReallocateHandler) Handle(ctx context.Context, msg domain.Message, uow contract.UnitOfWork) (any, error) {
	e, ok := msg.(event.Deallocated)
	if !ok {
		return nil, fmt.Errorf("reallocate: unexpected message %T", msg)
	}

	batches, err := uow.Batches().ListBySKU(e.SKU)
	if err != nil {
		return nil, err
	}

	line := domain.OrderLine{OrderID: e.OrderID, SKU: e.SKU, Qty: e.Qty}
	batch, err := domain.Allocate(line, batches)
	if errors.Is(err, domain.ErrOutOfStock) {
		return nil, bus.Unprocessablef(bus.KindOutOfStock,
			"cannot reallocate %d of %s for order %s", e.Qty, e.SKU, e.OrderID)
	}
	if err != nil {
		return nil, err
	}

	if err := uow.Batches().Put(*batch); err != nil {
		return nil, err
	}
	uow.RecordEvent(event.Allocated{
		OrderID:  line.OrderID,
		SKU:      line.SKU,
		Qty:      line.Qty,
		BatchRef: batch.Ref,
		At:       time.Now().UTC(),
	})
	h.log.Info("Line reallocated", "orderid", line.OrderID, "sku", line.SKU, "batchref", batch.Ref)
	return AllocationResult{BatchRef: batch.Ref}, nil
}

// AllocationCounter counts processed events per type. Purely in-process
// telemetry for logs and the stats endpoint.
type AllocationCounter struct {
	mu       sync.Mutex
	log      *slog.Logger
	counters map[string]uint64
}

func NewAllocationCounter(log *slog.Logger) *AllocationCounter {
	return &AllocationCounter{log: log, counters: make(map[string]uint64)}
}

func (c *AllocationCounter) Handle(ctx context.Context, msg domain.Message, uow contract.UnitOfWork) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[msg.TypeName()]++
	return nil, nil
}

func (c *AllocationCounter) Snapshot() map[string]uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]uint64, len(c.counters))
	for k, v := range c.counters {
		out[k] = v
	}
	return out
}
