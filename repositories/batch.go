package repositories

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"stockflow/domain"
	errs "stockflow/errors"
)

// BatchRepository persists batches inside one Badger transaction.
//
// The primary key is "batch:{sku}:{eta_padded}:{ref}": the 19-digit
// zero-padded ETA nanoseconds make a prefix scan over a SKU yield batches in
// allocation-preference order (in-stock batches carry ETA 0 and sort first).
// A secondary key "batchref:{ref}" points at the primary key for direct
// lookups by reference.
type BatchRepository struct {
	txn *badger.Txn
}

func NewBatchRepository(txn *badger.Txn) BatchRepository {
	return BatchRepository{txn: txn}
}

func batchKey(b domain.Batch) []byte {
	var eta int64
	if b.ETA != nil {
		eta = b.ETA.UnixNano()
	}
	return []byte(fmt.Sprintf("batch:%s:%019d:%s", b.SKU, eta, b.Ref))
}

func refKey(ref string) []byte {
	return []byte("batchref:" + ref)
}

func skuPrefix(sku string) []byte {
	return []byte(fmt.Sprintf("batch:%s:", sku))
}

// Put inserts or overwrites a batch. ETA, SKU and ref never change for a
// given batch, so the keys are stable across updates.
func (r BatchRepository) Put(b domain.Batch) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal batch %s: %w", b.Ref, err)
	}
	key := batchKey(b)
	if err := r.txn.Set(key, data); err != nil {
		return err
	}
	return r.txn.Set(refKey(b.Ref), key)
}

func (r BatchRepository) Get(ref string) (*domain.Batch, error) {
	item, err := r.txn.Get(refKey(ref))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("batch %s: %w", ref, errs.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	var primary []byte
	if err := item.Value(func(v []byte) error {
		primary = append([]byte(nil), v...)
		return nil
	}); err != nil {
		return nil, err
	}

	item, err = r.txn.Get(primary)
	if err != nil {
		return nil, err
	}
	return unmarshalBatch(item)
}

// ListBySKU returns every batch of the SKU in key order, which is the
// allocation-preference order.
func (r BatchRepository) ListBySKU(sku string) ([]*domain.Batch, error) {
	var batches []*domain.Batch
	prefix := skuPrefix(sku)

	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = true
	it := r.txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		b, err := unmarshalBatch(it.Item())
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, nil
}

func unmarshalBatch(item *badger.Item) (*domain.Batch, error) {
	var b domain.Batch
	if err := item.Value(func(v []byte) error {
		return json.Unmarshal(v, &b)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal batch at %s: %w", item.Key(), err)
	}
	return &b, nil
}
