package cache

import (
	"context"
	"sync"

	"github.com/tutoapp/practicecache/internal/storage"
)

type writeOp int

const (
	opPut writeOp = iota
	opClear
	opBarrier
)

// writeRequest is one pending operation for the persistent tier.
type writeRequest struct {
	op     writeOp
	record storage.Record
	done   chan struct{}
}

// writeBack drains persistent writes on a single worker so they apply in
// enqueue order. Enqueueing never blocks: a full queue drops the write.
type writeBack struct {
	store     Store
	partition string
	queue     chan writeRequest

	// skip reports whether writes should be discarded, e.g. in fallback mode.
	skip    func() bool
	onError func(operation string, err error)

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func newWriteBack(store Store, partition string, size int, skip func() bool, onError func(string, error)) *writeBack {
	w := &writeBack{
		store:     store,
		partition: partition,
		queue:     make(chan writeRequest, size),
		skip:      skip,
		onError:   onError,
	}

	w.wg.Add(1)
	go w.worker()

	return w
}

// enqueue reports false when the queue is full or closed.
func (w *writeBack) enqueue(req writeRequest) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		return false
	}
	select {
	case w.queue <- req:
		return true
	default:
		return false
	}
}

// barrier waits until every request enqueued before it has been applied.
func (w *writeBack) barrier(ctx context.Context) error {
	done := make(chan struct{})

	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return nil
	}
	select {
	case w.queue <- writeRequest{op: opBarrier, done: done}:
	case <-ctx.Done():
		w.mu.RUnlock()
		return ctx.Err()
	}
	w.mu.RUnlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close stops accepting requests and waits for queued ones to drain.
func (w *writeBack) close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()

	w.wg.Wait()
}

// worker applies writes on its own context: the request that queued a write
// may be gone long before the write runs.
func (w *writeBack) worker() {
	defer w.wg.Done()

	ctx := context.Background()
	for req := range w.queue {
		if req.op == opBarrier {
			close(req.done)
			continue
		}
		if w.skip() {
			continue
		}

		switch req.op {
		case opPut:
			if err := w.store.Put(ctx, w.partition, req.record); err != nil {
				w.onError("put", err)
			}
		case opClear:
			if err := w.store.Clear(ctx, w.partition); err != nil {
				w.onError("clear", err)
			}
		}
	}
}
