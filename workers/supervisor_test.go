package workers

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type flakyWorker struct {
	runs atomic.Int32
}

// Run panics on the first two attempts, then finishes cleanly.
func (w *flakyWorker) Run(ctx context.Context) error {
	if w.runs.Add(1) <= 2 {
		panic("worker crash")
	}
	return nil
}

type blockingWorker struct{}

func (blockingWorker) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func TestSupervisor_Restarts_Crashed_Worker(t *testing.T) {
	req := require.New(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	worker := &flakyWorker{}
	sup := NewSupervisor(log, time.Millisecond).Add(worker)

	done := make(chan struct{})
	go func() {
		defer close(done)
		sup.Run(context.Background())
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not finish after worker recovered")
	}
	req.Equal(int32(3), worker.runs.Load())
}

func TestSupervisor_Stop_Cancels_Workers(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sup := NewSupervisor(log, time.Millisecond).Add(blockingWorker{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		sup.Run(context.Background())
	}()

	require.Eventually(t, func() bool { return sup.Cancel != nil }, time.Second, 5*time.Millisecond)
	sup.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not stop its workers")
	}
}
