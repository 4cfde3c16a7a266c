// Package event holds the domain events recorded by command handlers and
// fanned out to their subscribers after commit.
package event

import "time"

const (
	TypeAllocated    = "Allocated"
	TypeDeallocated  = "Deallocated"
	TypeBatchCreated = "BatchCreated"
)

type Allocated struct {
	OrderID  string    `json:"orderid"`
	SKU      string    `json:"sku"`
	Qty      int       `json:"qty"`
	BatchRef string    `json:"batchref"`
	At       time.Time `json:"at"`
}

func (Allocated) TypeName() string { return TypeAllocated }

type Deallocated struct {
	OrderID  string `json:"orderid"`
	SKU      string `json:"sku"`
	Qty      int    `json:"qty"`
	BatchRef string `json:"batchref"`
}

func (Deallocated) TypeName() string { return TypeDeallocated }

type BatchCreated struct {
	Ref string `json:"ref"`
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
}

func (BatchCreated) TypeName() string { return TypeBatchCreated }
