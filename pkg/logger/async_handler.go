package logger

import (
	"context"
	"log/slog"
	"sync"
)

type asyncRecord struct {
	next slog.Handler
	rec  slog.Record
}

// asyncCore is the shared background dispatcher. All AsyncHandler values
// produced from the same NewAsyncHandler call (directly or via WithAttrs /
// WithGroup) share one core, so With-derived child handlers still deliver
// through the same goroutine and buffer rather than spawning their own.
type asyncCore struct {
	ch         chan asyncRecord
	dropOnFull bool
	closeOnce  sync.Once
	done       chan struct{}
}

func newAsyncCore(bufferSize int, dropOnFull bool) *asyncCore {
	c := &asyncCore{
		ch:         make(chan asyncRecord, bufferSize),
		dropOnFull: dropOnFull,
		done:       make(chan struct{}),
	}
	go c.run()
	return c
}

func (c *asyncCore) run() {
	defer close(c.done)
	for item := range c.ch {
		// Background delivery: errors from next have nowhere to surface.
		_ = item.next.Handle(context.Background(), item.rec)
	}
}

func (c *asyncCore) enqueue(next slog.Handler, r slog.Record) {
	item := asyncRecord{next: next, rec: r}
	if c.dropOnFull {
		select {
		case c.ch <- item:
		default:
			// Buffer full: drop rather than block the caller.
		}
		return
	}
	c.ch <- item
}

func (c *asyncCore) close() {
	c.closeOnce.Do(func() {
		close(c.ch)
	})
	<-c.done
}

// AsyncHandler buffers records and hands them to next from a background
// goroutine, so callers do not wait on the underlying writer. When the
// buffer is full, a record is dropped if dropOnFull is set; otherwise the
// caller blocks until there is room.
type AsyncHandler struct {
	next *slog.Handler
	core *asyncCore
}

func NewAsyncHandler(next slog.Handler, bufferSize int, dropOnFull bool) *AsyncHandler {
	return &AsyncHandler{next: &next, core: newAsyncCore(bufferSize, dropOnFull)}
}

func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return (*h.next).Enabled(ctx, level)
}

func (h *AsyncHandler) Handle(_ context.Context, r slog.Record) error {
	h.core.enqueue(*h.next, r.Clone())
	return nil
}

func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	wrapped := (*h.next).WithAttrs(attrs)
	return &AsyncHandler{next: &wrapped, core: h.core}
}

func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	wrapped := (*h.next).WithGroup(name)
	return &AsyncHandler{next: &wrapped, core: h.core}
}

// Close stops accepting new records and blocks until the buffer drains.
// Safe to call from any handler derived from the same original call to
// NewAsyncHandler.
func (h *AsyncHandler) Close() {
	h.core.close()
}
