// Package services contains the business-logic handlers behind the bus, the
// preconditions guarding them, and the wiring that assembles the pipeline.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"stockflow/bus"
	"stockflow/contract"
	"stockflow/domain"
	"stockflow/domain/event"
)

type AllocationResult struct {
	BatchRef string `json:"batchref"`
}

type CreateBatchResult struct {
	Ref string `json:"ref"`
}

type ChangeQuantityResult struct {
	Ref       string `json:"ref"`
	Available int    `json:"available"`
}

// AllocateHandler allocates an order line against the preferred batch.
// Preconditions have already established that the SKU exists, the line is not
// yet allocated, and stock suffices; the out-of-stock mapping here only
// covers the race-free domain-level check.
type AllocateHandler struct {
	log *slog.Logger
}

func NewAllocateHandler(log *slog.Logger) AllocateHandler {
	return AllocateHandler{log: log}
}

func (h AllocateHandler) Handle(ctx context.Context, msg domain.Message, uow contract.UnitOfWork) (any, error) {
	cmd, ok := msg.(*domain.AllocateCommand)
	if !ok {
		return nil, fmt.Errorf("allocate: unexpected message %T", msg)
	}

	batches, err := uow.Batches().ListBySKU(cmd.SKU)
	if err != nil {
		return nil, err
	}

	line := cmd.Line()
	batch, err := domain.Allocate(line, batches)
	if errors.Is(err, domain.ErrOutOfStock) {
		return nil, bus.Unprocessablef(bus.KindOutOfStock, "cannot allocate %d of %s", cmd.Qty, cmd.SKU)
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
	h.log.Debug("Line allocated", "orderid", line.OrderID, "sku", line.SKU, "batchref", batch.Ref)
	return AllocationResult{BatchRef: batch.Ref}, nil
}

// CreateBatchHandler registers a new batch of stock.
type CreateBatchHandler struct {
	log *slog.Logger
}

func NewCreateBatchHandler(log *slog.Logger) CreateBatchHandler {
	return CreateBatchHandler{log: log}
}

func (h CreateBatchHandler) Handle(ctx context.Context, msg domain.Message, uow contract.UnitOfWork) (any, error) {
	cmd, ok := msg.(*domain.CreateBatchCommand)
	if !ok {
		return nil, fmt.Errorf("create batch: unexpected message %T", msg)
	}

	if err := uow.Batches().Put(domain.NewBatch(cmd.Ref, cmd.SKU, cmd.Qty, cmd.ETA)); err != nil {
		return nil, err
	}
	uow.RecordEvent(event.BatchCreated{Ref: cmd.Ref, SKU: cmd.SKU, Qty: cmd.Qty})
	h.log.Debug("Batch created", "ref", cmd.Ref, "sku", cmd.SKU, "qty", cmd.Qty)
	return CreateBatchResult{Ref: cmd.Ref}, nil
}

// ChangeBatchQuantityHandler shrinks or grows a batch. Lines that no longer
// fit are deallocated, newest first, and reallocated elsewhere through the
// Deallocated follow-on event.
type ChangeBatchQuantityHandler struct {
	log *slog.Logger
}

func NewChangeBatchQuantityHandler(log *slog.Logger) ChangeBatchQuantityHandler {
	return ChangeBatchQuantityHandler{log: log}
}

func (h ChangeBatchQuantityHandler) Handle(ctx context.Context, msg domain.Message, uow contract.UnitOfWork) (any, error) {
	cmd, ok := msg.(*domain.ChangeBatchQuantityCommand)
	if !ok {
		return nil, fmt.Errorf("change batch quantity: unexpected message %T", msg)
	}

	batch, err := uow.Batches().Get(cmd.Ref)
	if err != nil {
		return nil, err
	}

	batch.Purchased = cmd.Qty
	for batch.Available() < 0 {
		line, ok := batch.DeallocateOne()
		if !ok {
			break
		}
		uow.RecordEvent(event.Deallocated{
			OrderID:  line.OrderID,
			SKU:      line.SKU,
			Qty:      line.Qty,
			BatchRef: batch.Ref,
		})
		h.log.Debug("Line deallocated by quantity change",
			"orderid", line.OrderID, "sku", line.SKU, "batchref", batch.Ref)
	}

	if err := uow.Batches().Put(*batch); err != nil {
		return nil, err
	}
	return ChangeQuantityResult{Ref: batch.Ref, Available: batch.Available()}, nil
}
