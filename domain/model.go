package domain

import (
	"fmt"
	"sort"
	"time"
)

var ErrOutOfStock = fmt.Errorf("out of stock")

// OrderLine is a single line of a customer order. Two lines are the same
// allocation if order id, sku and quantity all match.
type OrderLine struct {
	OrderID string `json:"orderid"`
	SKU     string `json:"sku"`
	Qty     int    `json:"qty"`
}

// Batch is a purchased batch of stock for one SKU. A nil ETA means the batch
// is already in stock; otherwise it is on its way.
type Batch struct {
	Ref         string      `json:"ref"`
	SKU         string      `json:"sku"`
	Purchased   int         `json:"purchased"`
	ETA         *time.Time  `json:"eta,omitempty"`
	Allocations []OrderLine `json:"allocations,omitempty"`
}

func NewBatch(ref, sku string, qty int, eta *time.Time) Batch {
	return Batch{Ref: ref, SKU: sku, Purchased: qty, ETA: eta}
}

func (b *Batch) AllocatedQty() int {
	total := 0
	for _, line := range b.Allocations {
		total += line.Qty
	}
	return total
}

func (b *Batch) Available() int {
	return b.Purchased - b.AllocatedQty()
}

func (b *Batch) CanAllocate(line OrderLine) bool {
	return b.SKU == line.SKU && b.Available() >= line.Qty
}

func (b *Batch) Contains(line OrderLine) bool {
	for _, l := range b.Allocations {
		if l == line {
			return true
		}
	}
	return false
}

// Allocate reserves the line against the batch. Allocating the same line
// twice is a no-op, which keeps the operation idempotent at the model level.
func (b *Batch) Allocate(line OrderLine) {
	if !b.CanAllocate(line) || b.Contains(line) {
		return
	}
	b.Allocations = append(b.Allocations, line)
}

func (b *Batch) Deallocate(line OrderLine) {
	for i, l := range b.Allocations {
		if l == line {
			b.Allocations = append(b.Allocations[:i], b.Allocations[i+1:]...)
			return
		}
	}
}

// DeallocateOne removes and returns the most recently allocated line.
// Used when a batch shrinks below its allocated quantity.
func (b *Batch) DeallocateOne() (OrderLine, bool) {
	if len(b.Allocations) == 0 {
		return OrderLine{}, false
	}
	line := b.Allocations[len(b.Allocations)-1]
	b.Allocations = b.Allocations[:len(b.Allocations)-1]
	return line, true
}

// earlier orders batches by preference: in-stock batches first, then by ETA.
func earlier(a, b *Batch) bool {
	switch {
	case a.ETA == nil:
		return true
	case b.ETA == nil:
		return false
	default:
		return a.ETA.Before(*b.ETA)
	}
}

// Allocate picks the preferred batch for the line (in stock first, then
// earliest ETA) and reserves the quantity. Returns ErrOutOfStock when no
// batch can hold the line.
func Allocate(line OrderLine, batches []*Batch) (*Batch, error) {
	sorted := make([]*Batch, len(batches))
	copy(sorted, batches)
	sort.SliceStable(sorted, func(i, j int) bool { return earlier(sorted[i], sorted[j]) })

	for _, b := range sorted {
		if b.CanAllocate(line) {
			b.Allocate(line)
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w for sku %s", ErrOutOfStock, line.SKU)
}
