package workers

import (
	"context"
	"fmt"
)

// Queue is the in-process asynchronous ingress: raw envelopes published here
// are consumed by a Consumer under supervision.
type Queue struct {
	ch chan []byte
}

func NewQueue(size int) *Queue {
	return &Queue{ch: make(chan []byte, size)}
}

// Publish enqueues a raw envelope, blocking while the buffer is full.
func (q *Queue) Publish(ctx context.Context, raw []byte) error {
	select {
	case q.ch <- raw:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publish: %w", ctx.Err())
	}
}

func (q *Queue) Messages() <-chan []byte {
	return q.ch
}
