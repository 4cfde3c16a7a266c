package services

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"stockflow/bus"
	"stockflow/domain/event"
	errs "stockflow/errors"
	"stockflow/repositories"
	"stockflow/schema"
)

func newTestApp(t *testing.T) (*App, *repositories.Starter) {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	starter := repositories.NewStarter(db, log)
	app, err := Bootstrap(log, starter)
	require.NoError(t, err)
	return app, starter
}

func viewRef(t *testing.T, starter *repositories.Starter, orderID, sku string) (string, error) {
	t.Helper()
	uow, err := starter.Begin(context.Background())
	require.NoError(t, err)
	defer uow.Rollback()
	return uow.Views().Get(orderID, sku)
}

func batchAvailable(t *testing.T, starter *repositories.Starter, ref string) int {
	t.Helper()
	uow, err := starter.Begin(context.Background())
	require.NoError(t, err)
	defer uow.Rollback()
	b, err := uow.Batches().Get(ref)
	require.NoError(t, err)
	return b.Available()
}

func Test_CreateBatch_Then_Allocate(t *testing.T) {
	req := require.New(t)
	app, starter := newTestApp(t)
	ctx := context.Background()

	out := app.Bus.Dispatch(ctx, "CreateBatch",
		[]byte(`{"ref":"batch-001","sku":"RED-CHAIR","qty":100}`))
	req.Equal(bus.StatusDispatched, out.Status)
	req.Equal(CreateBatchResult{Ref: "batch-001"}, out.Result)

	out = app.Bus.Dispatch(ctx, "Allocate",
		[]byte(`{"orderid":"order-1","sku":"RED-CHAIR","qty":10}`))
	req.Equal(bus.StatusDispatched, out.Status)
	req.Equal(AllocationResult{BatchRef: "batch-001"}, out.Result)

	// Follow-on Allocated event updated the read model in its own unit of work.
	ref, err := viewRef(t, starter, "order-1", "RED-CHAIR")
	req.NoError(err)
	req.Equal("batch-001", ref)
	req.Equal(90, batchAvailable(t, starter, "batch-001"))

	counts := app.Counter.Snapshot()
	req.Equal(uint64(1), counts[event.TypeBatchCreated])
	req.Equal(uint64(1), counts[event.TypeAllocated])
}

func Test_Allocate_Prefers_Warehouse_Stock(t *testing.T) {
	req := require.New(t)
	app, _ := newTestApp(t)
	ctx := context.Background()

	out := app.Bus.Dispatch(ctx, "CreateBatch",
		[]byte(`{"ref":"shipment","sku":"LAMP","qty":50,"eta":"2026-09-10T00:00:00Z"}`))
	req.Equal(bus.StatusDispatched, out.Status)
	out = app.Bus.Dispatch(ctx, "CreateBatch",
		[]byte(`{"ref":"warehouse","sku":"LAMP","qty":50}`))
	req.Equal(bus.StatusDispatched, out.Status)

	out = app.Bus.Dispatch(ctx, "Allocate",
		[]byte(`{"orderid":"order-1","sku":"LAMP","qty":5}`))
	req.Equal(bus.StatusDispatched, out.Status)
	req.Equal(AllocationResult{BatchRef: "warehouse"}, out.Result)
}

func Test_Allocate_Invalid_Payload_Is_Rejected(t *testing.T) {
	req := require.New(t)
	app, _ := newTestApp(t)

	out := app.Bus.Dispatch(context.Background(), "Allocate",
		[]byte(`{"orderid":"order-1","sku":"LAMP","qty":-1}`))
	req.Equal(bus.StatusRejected, out.Status)
	req.Equal([]schema.FieldError{{Field: "qty", Reason: "must be > 0"}}, out.FieldErrors)
}

func Test_Allocate_Unknown_SKU(t *testing.T) {
	req := require.New(t)
	app, _ := newTestApp(t)

	out := app.Bus.Dispatch(context.Background(), "Allocate",
		[]byte(`{"orderid":"order-1","sku":"NO-SUCH-SKU","qty":1}`))
	req.Equal(bus.StatusUnprocessable, out.Status)
	req.Equal(bus.KindNotFound, out.Kind)
}

func Test_Allocate_Out_Of_Stock_Leaves_State_Untouched(t *testing.T) {
	req := require.New(t)
	app, starter := newTestApp(t)
	ctx := context.Background()

	out := app.Bus.Dispatch(ctx, "CreateBatch",
		[]byte(`{"ref":"batch-001","sku":"LAMP","qty":10}`))
	req.Equal(bus.StatusDispatched, out.Status)

	out = app.Bus.Dispatch(ctx, "Allocate",
		[]byte(`{"orderid":"order-1","sku":"LAMP","qty":100}`))
	req.Equal(bus.StatusUnprocessable, out.Status)
	req.Equal(bus.KindOutOfStock, out.Kind)

	req.Equal(10, batchAvailable(t, starter, "batch-001"))
	_, err := viewRef(t, starter, "order-1", "LAMP")
	req.ErrorIs(err, errs.ErrNotFound)
}

func Test_CreateBatch_Twice_Is_Skipped(t *testing.T) {
	req := require.New(t)
	app, starter := newTestApp(t)
	ctx := context.Background()

	payload := []byte(`{"ref":"batch-001","sku":"LAMP","qty":10}`)
	out := app.Bus.Dispatch(ctx, "CreateBatch", payload)
	req.Equal(bus.StatusDispatched, out.Status)

	out = app.Bus.Dispatch(ctx, "CreateBatch", payload)
	req.Equal(bus.StatusSkipped, out.Status)
	req.Contains(out.Reason, "already created")

	uow, err := starter.Begin(ctx)
	req.NoError(err)
	defer uow.Rollback()
	batches, err := uow.Batches().ListBySKU("LAMP")
	req.NoError(err)
	req.Len(batches, 1)

	req.Equal(uint64(1), app.Counter.Snapshot()[event.TypeBatchCreated])
}

func Test_Allocate_Twice_Is_Skipped(t *testing.T) {
	req := require.New(t)
	app, starter := newTestApp(t)
	ctx := context.Background()

	out := app.Bus.Dispatch(ctx, "CreateBatch",
		[]byte(`{"ref":"batch-001","sku":"LAMP","qty":10}`))
	req.Equal(bus.StatusDispatched, out.Status)

	payload := []byte(`{"orderid":"order-1","sku":"LAMP","qty":3}`)
	out = app.Bus.Dispatch(ctx, "Allocate", payload)
	req.Equal(bus.StatusDispatched, out.Status)

	out = app.Bus.Dispatch(ctx, "Allocate", payload)
	req.Equal(bus.StatusSkipped, out.Status)
	req.Contains(out.Reason, "already allocated")

	// The first allocation still stands, untouched by the duplicate.
	req.Equal(7, batchAvailable(t, starter, "batch-001"))
	ref, err := viewRef(t, starter, "order-1", "LAMP")
	req.NoError(err)
	req.Equal("batch-001", ref)
}

func Test_ChangeBatchQuantity_Reallocates_Displaced_Lines(t *testing.T) {
	req := require.New(t)
	app, starter := newTestApp(t)
	ctx := context.Background()

	out := app.Bus.Dispatch(ctx, "CreateBatch",
		[]byte(`{"ref":"warehouse","sku":"LAMP","qty":10}`))
	req.Equal(bus.StatusDispatched, out.Status)
	out = app.Bus.Dispatch(ctx, "CreateBatch",
		[]byte(`{"ref":"shipment","sku":"LAMP","qty":10,"eta":"2026-09-10T00:00:00Z"}`))
	req.Equal(bus.StatusDispatched, out.Status)

	out = app.Bus.Dispatch(ctx, "Allocate",
		[]byte(`{"orderid":"order-1","sku":"LAMP","qty":8}`))
	req.Equal(bus.StatusDispatched, out.Status)
	req.Equal(AllocationResult{BatchRef: "warehouse"}, out.Result)

	// Shrinking the warehouse batch displaces the line; the Deallocated
	// follow-on reallocates it into the shipment batch.
	out = app.Bus.Dispatch(ctx, "ChangeBatchQuantity",
		[]byte(`{"ref":"warehouse","qty":5}`))
	req.Equal(bus.StatusDispatched, out.Status)
	req.Equal(ChangeQuantityResult{Ref: "warehouse", Available: 5}, out.Result)

	ref, err := viewRef(t, starter, "order-1", "LAMP")
	req.NoError(err)
	req.Equal("shipment", ref)
	req.Equal(5, batchAvailable(t, starter, "warehouse"))
	req.Equal(2, batchAvailable(t, starter, "shipment"))

	counts := app.Counter.Snapshot()
	req.Equal(uint64(1), counts[event.TypeDeallocated])
	req.Equal(uint64(2), counts[event.TypeAllocated])
}

func Test_ChangeBatchQuantity_Unknown_Ref(t *testing.T) {
	req := require.New(t)
	app, _ := newTestApp(t)

	out := app.Bus.Dispatch(context.Background(), "ChangeBatchQuantity",
		[]byte(`{"ref":"no-such-batch","qty":5}`))
	req.Equal(bus.StatusUnprocessable, out.Status)
	req.Equal(bus.KindNotFound, out.Kind)
}
