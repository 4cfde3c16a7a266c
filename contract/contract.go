//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"stockflow/domain"
)

// Handler processes one validated message inside the unit of work opened for
// that invocation. The returned result is surfaced to synchronous callers.
type Handler interface {
	Handle(ctx context.Context, msg domain.Message, uow UnitOfWork) (any, error)
}

// BatchStore reads and writes stock batches through one unit of work.
type BatchStore interface {
	Put(b domain.Batch) error
	Get(ref string) (*domain.Batch, error)
	ListBySKU(sku string) ([]*domain.Batch, error)
}

// ViewStore maintains the allocation read model (order id + sku -> batch ref).
type ViewStore interface {
	Set(orderID, sku, batchRef string) error
	Get(orderID, sku string) (string, error)
	Delete(orderID, sku string) error
}

// UnitOfWork is the transactional boundary for a single handler invocation.
// Rollback must always be safe to call, including after Commit, so callers
// can defer it unconditionally.
type UnitOfWork interface {
	Batches() BatchStore
	Views() ViewStore
	RecordEvent(e domain.Message)
	Events() []domain.Message
	Commit() error
	Rollback()
}

// UnitOfWorkStarter opens a fresh unit of work per invocation.
type UnitOfWorkStarter interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
