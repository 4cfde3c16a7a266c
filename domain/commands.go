package domain

import "time"

// Type names for the commands accepted from the outside world.
const (
	TypeAllocate            = "Allocate"
	TypeCreateBatch         = "CreateBatch"
	TypeChangeBatchQuantity = "ChangeBatchQuantity"
)

// AllocateCommand asks for an order line to be allocated against a batch.
type AllocateCommand struct {
	OrderID string `json:"orderid" validate:"required,max=64"`
	SKU     string `json:"sku" validate:"required,max=64"`
	Qty     int    `json:"qty" validate:"gt=0"`
}

func (AllocateCommand) TypeName() string { return TypeAllocate }

func (c AllocateCommand) Line() OrderLine {
	return OrderLine{OrderID: c.OrderID, SKU: c.SKU, Qty: c.Qty}
}

// CreateBatchCommand registers a new batch of purchasable stock.
type CreateBatchCommand struct {
	Ref string     `json:"ref" validate:"required,max=64"`
	SKU string     `json:"sku" validate:"required,max=64"`
	Qty int        `json:"qty" validate:"gt=0"`
	ETA *time.Time `json:"eta,omitempty"`
}

func (CreateBatchCommand) TypeName() string { return TypeCreateBatch }

// ChangeBatchQuantityCommand adjusts the purchased quantity of a batch,
// deallocating lines that no longer fit.
type ChangeBatchQuantityCommand struct {
	Ref string `json:"ref" validate:"required,max=64"`
	Qty int    `json:"qty" validate:"gt=0"`
}

func (ChangeBatchQuantityCommand) TypeName() string { return TypeChangeBatchQuantity }
