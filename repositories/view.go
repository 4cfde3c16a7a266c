package repositories

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	errs "stockflow/errors"
)

// ViewRepository maintains the allocation read model: which batch an order
// line ended up in. Keys are "view:allocation:{orderid}:{sku}", values the
// bare batch ref.
type ViewRepository struct {
	txn *badger.Txn
}

func NewViewRepository(txn *badger.Txn) ViewRepository {
	return ViewRepository{txn: txn}
}

func viewKey(orderID, sku string) []byte {
	return []byte(fmt.Sprintf("view:allocation:%s:%s", orderID, sku))
}

func (r ViewRepository) Set(orderID, sku, batchRef string) error {
	return r.txn.Set(viewKey(orderID, sku), []byte(batchRef))
}

func (r ViewRepository) Get(orderID, sku string) (string, error) {
	item, err := r.txn.Get(viewKey(orderID, sku))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", fmt.Errorf("allocation %s/%s: %w", orderID, sku, errs.ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	var ref string
	err = item.Value(func(v []byte) error {
		ref = string(v)
		return nil
	})
	return ref, err
}

func (r ViewRepository) Delete(orderID, sku string) error {
	return r.txn.Delete(viewKey(orderID, sku))
}
