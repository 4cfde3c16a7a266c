package services

import (
	"context"
	"errors"
	"fmt"

	"stockflow/bus"
	"stockflow/contract"
	"stockflow/domain"
	errs "stockflow/errors"
)

// SKUExists rejects allocations for SKUs no batch has ever been created for.
func SKUExists() bus.Precondition {
	return bus.Precondition{
		Name: "sku exists",
		Check: func(ctx context.Context, msg domain.Message, uow contract.UnitOfWork) error {
			cmd, ok := msg.(*domain.AllocateCommand)
			if !ok {
				return fmt.Errorf("sku exists: unexpected message %T", msg)
			}
			batches, err := uow.Batches().ListBySKU(cmd.SKU)
			if err != nil {
				return err
			}
			if len(batches) == 0 {
				return bus.Unprocessablef(bus.KindNotFound, "unknown sku %s", cmd.SKU)
			}
			return nil
		},
	}
}

// LineNotAllocated turns duplicate allocation requests into a skip. The check
// scans the batches inside the same unit of work as the handler, so the
// check-then-act pair cannot race.
func LineNotAllocated() bus.Precondition {
	return bus.Precondition{
		Name: "line not already allocated",
		Check: func(ctx context.Context, msg domain.Message, uow contract.UnitOfWork) error {
			cmd, ok := msg.(*domain.AllocateCommand)
			if !ok {
				return fmt.Errorf("line not already allocated: unexpected message %T", msg)
			}
			batches, err := uow.Batches().ListBySKU(cmd.SKU)
			if err != nil {
				return err
			}
			line := cmd.Line()
			for _, b := range batches {
				if b.Contains(line) {
					return bus.Skipf("line %s/%s already allocated to batch %s",
						line.OrderID, line.SKU, b.Ref)
				}
			}
			return nil
		},
	}
}

// SufficientStock runs after SKUExists and assumes the SKU is known.
func SufficientStock() bus.Precondition {
	return bus.Precondition{
		Name: "sufficient stock",
		Check: func(ctx context.Context, msg domain.Message, uow contract.UnitOfWork) error {
			cmd, ok := msg.(*domain.AllocateCommand)
			if !ok {
				return fmt.Errorf("sufficient stock: unexpected message %T", msg)
			}
			batches, err := uow.Batches().ListBySKU(cmd.SKU)
			if err != nil {
				return err
			}
			for _, b := range batches {
				if b.Available() >= cmd.Qty {
					return nil
				}
			}
			return bus.Unprocessablef(bus.KindOutOfStock, "cannot allocate %d of %s", cmd.Qty, cmd.SKU)
		},
	}
}

// BatchRefAvailable makes CreateBatch idempotent: recreating an existing
// batch is a recognized no-op, not an error.
func BatchRefAvailable() bus.Precondition {
	return bus.Precondition{
		Name: "batch ref not already created",
		Check: func(ctx context.Context, msg domain.Message, uow contract.UnitOfWork) error {
			cmd, ok := msg.(*domain.CreateBatchCommand)
			if !ok {
				return fmt.Errorf("batch ref not already created: unexpected message %T", msg)
			}
			_, err := uow.Batches().Get(cmd.Ref)
			if errors.Is(err, errs.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			return bus.Skipf("batch %s already created", cmd.Ref)
		},
	}
}

// BatchExists guards quantity changes against unknown batch references.
func BatchExists() bus.Precondition {
	return bus.Precondition{
		Name: "batch exists",
		Check: func(ctx context.Context, msg domain.Message, uow contract.UnitOfWork) error {
			cmd, ok := msg.(*domain.ChangeBatchQuantityCommand)
			if !ok {
				return fmt.Errorf("batch exists: unexpected message %T", msg)
			}
			_, err := uow.Batches().Get(cmd.Ref)
			if errors.Is(err, errs.ErrNotFound) {
				return bus.Unprocessablef(bus.KindNotFound, "unknown batch %s", cmd.Ref)
			}
			return err
		},
	}
}
