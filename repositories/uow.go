package repositories

import (
	"context"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"stockflow/contract"
	"stockflow/domain"
)

// Starter opens one Badger transaction per unit of work. It is safe for
// concurrent use; Badger's own concurrency control governs conflicts between
// units of work.
type Starter struct {
	db  *badger.DB
	log *slog.Logger
}

func NewStarter(db *badger.DB, log *slog.Logger) *Starter {
	return &Starter{db: db, log: log}
}

func (s *Starter) Begin(ctx context.Context) (contract.UnitOfWork, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	txn := s.db.NewTransaction(true)
	return &unitOfWork{
		txn:     txn,
		batches: NewBatchRepository(txn),
		views:   NewViewRepository(txn),
		log:     s.log,
	}, nil
}

type unitOfWork struct {
	txn     *badger.Txn
	batches BatchRepository
	views   ViewRepository
	events  []domain.Message
	log     *slog.Logger
	done    bool
}

func (u *unitOfWork) Batches() contract.BatchStore { return u.batches }

func (u *unitOfWork) Views() contract.ViewStore { return u.views }

func (u *unitOfWork) RecordEvent(e domain.Message) {
	u.events = append(u.events, e)
}

func (u *unitOfWork) Events() []domain.Message {
	return u.events
}

func (u *unitOfWork) Commit() error {
	u.done = true
	return u.txn.Commit()
}

// Rollback discards the transaction. It is a no-op after Commit, so callers
// can defer it on every path.
func (u *unitOfWork) Rollback() {
	if !u.done {
		u.log.Debug("Rolling back unit of work")
	}
	u.done = true
	u.txn.Discard()
}
