package logging

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap/zapcore"
)

// record is one queued write, or a flush barrier when ack is set.
type record struct {
	data []byte
	ack  chan struct{}
}

// asyncWriter decouples zap cores from a slow destination. Writes are copied
// into a bounded queue that a single goroutine drains, so callers only block
// when the queue is full.
type asyncWriter struct {
	dest  zapcore.WriteSyncer
	queue chan record
	done  chan struct{}

	mu     sync.RWMutex
	closed bool

	dropped  atomic.Uint64
	errMu    sync.Mutex
	writeErr error
}

func newAsyncWriter(dest zapcore.WriteSyncer, size int) *asyncWriter {
	w := &asyncWriter{
		dest:  dest,
		queue: make(chan record, size),
		done:  make(chan struct{}),
	}
	go w.drain()
	return w
}

// Write queues a copy of p. zap reuses its buffers after Write returns.
func (w *asyncWriter) Write(p []byte) (int, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		w.dropped.Add(1)
		return len(p), nil
	}

	data := make([]byte, len(p))
	copy(data, p)
	w.queue <- record{data: data}
	return len(p), nil
}

// Sync blocks until every record queued before the call has been written.
func (w *asyncWriter) Sync() error {
	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return nil
	}
	ack := make(chan struct{})
	w.queue <- record{ack: ack}
	w.mu.RUnlock()

	<-ack
	return nil
}

// close stops accepting records and waits for the queue to drain.
func (w *asyncWriter) close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	<-w.done
	return w.err()
}

func (w *asyncWriter) drain() {
	defer close(w.done)

	for rec := range w.queue {
		if rec.ack != nil {
			// stdout and pipes reject fsync; the barrier only orders writes.
			_ = w.dest.Sync()
			close(rec.ack)
			continue
		}
		if _, err := w.dest.Write(rec.data); err != nil {
			w.recordErr(err)
		}
	}
}

func (w *asyncWriter) recordErr(err error) {
	w.errMu.Lock()
	if w.writeErr == nil {
		w.writeErr = err
	}
	w.errMu.Unlock()
}

func (w *asyncWriter) err() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.writeErr
}
