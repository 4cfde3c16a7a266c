package repositories

import (
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"stockflow/domain"
	errs "stockflow/errors"
)

func setupDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func eta(t *testing.T, value string) *time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return &ts
}

func TestBatchRepository_Put_And_Get(t *testing.T) {
	req := require.New(t)
	db := setupDB(t)

	batch := domain.NewBatch("batch-001", "RED-CHAIR", 20, eta(t, "2026-09-04T00:00:00Z"))
	batch.Allocate(domain.OrderLine{OrderID: "order-1", SKU: "RED-CHAIR", Qty: 2})

	txn := db.NewTransaction(true)
	repo := NewBatchRepository(txn)
	req.NoError(repo.Put(batch))
	req.NoError(txn.Commit())

	txn = db.NewTransaction(false)
	defer txn.Discard()
	got, err := NewBatchRepository(txn).Get("batch-001")
	req.NoError(err)
	req.Equal("RED-CHAIR", got.SKU)
	req.Equal(18, got.Available())
	req.True(got.Contains(domain.OrderLine{OrderID: "order-1", SKU: "RED-CHAIR", Qty: 2}))
}

func TestBatchRepository_Get_Unknown_Ref(t *testing.T) {
	req := require.New(t)
	db := setupDB(t)

	txn := db.NewTransaction(false)
	defer txn.Discard()
	_, err := NewBatchRepository(txn).Get("no-such-batch")
	req.ErrorIs(err, errs.ErrNotFound)
}

func TestBatchRepository_ListBySKU_In_Preference_Order(t *testing.T) {
	req := require.New(t)
	db := setupDB(t)

	txn := db.NewTransaction(true)
	repo := NewBatchRepository(txn)
	req.NoError(repo.Put(domain.NewBatch("shipment-late", "LAMP", 10, eta(t, "2026-09-10T00:00:00Z"))))
	req.NoError(repo.Put(domain.NewBatch("shipment-early", "LAMP", 10, eta(t, "2026-09-02T00:00:00Z"))))
	req.NoError(repo.Put(domain.NewBatch("warehouse", "LAMP", 10, nil)))
	req.NoError(repo.Put(domain.NewBatch("other-sku", "SOFA", 10, nil)))
	req.NoError(txn.Commit())

	txn = db.NewTransaction(false)
	defer txn.Discard()
	batches, err := NewBatchRepository(txn).ListBySKU("LAMP")
	req.NoError(err)
	req.Len(batches, 3)
	req.Equal("warehouse", batches[0].Ref)
	req.Equal("shipment-early", batches[1].Ref)
	req.Equal("shipment-late", batches[2].Ref)
}

func TestBatchRepository_Put_Overwrites_Same_Ref(t *testing.T) {
	req := require.New(t)
	db := setupDB(t)

	batch := domain.NewBatch("batch-001", "LAMP", 10, nil)
	txn := db.NewTransaction(true)
	repo := NewBatchRepository(txn)
	req.NoError(repo.Put(batch))

	batch.Allocate(domain.OrderLine{OrderID: "order-1", SKU: "LAMP", Qty: 4})
	req.NoError(repo.Put(batch))
	req.NoError(txn.Commit())

	txn = db.NewTransaction(false)
	defer txn.Discard()
	batches, err := NewBatchRepository(txn).ListBySKU("LAMP")
	req.NoError(err)
	req.Len(batches, 1)
	req.Equal(6, batches[0].Available())
}

func TestViewRepository_Set_Get_Delete(t *testing.T) {
	req := require.New(t)
	db := setupDB(t)

	txn := db.NewTransaction(true)
	views := NewViewRepository(txn)
	req.NoError(views.Set("order-1", "LAMP", "batch-001"))
	req.NoError(txn.Commit())

	txn = db.NewTransaction(true)
	views = NewViewRepository(txn)
	ref, err := views.Get("order-1", "LAMP")
	req.NoError(err)
	req.Equal("batch-001", ref)

	req.NoError(views.Delete("order-1", "LAMP"))
	req.NoError(txn.Commit())

	txn = db.NewTransaction(false)
	defer txn.Discard()
	_, err = NewViewRepository(txn).Get("order-1", "LAMP")
	req.ErrorIs(err, errs.ErrNotFound)
}
