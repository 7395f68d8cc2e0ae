package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBufferSize is the AsyncSink record buffer capacity.
const DefaultBufferSize = 256

// writeTimeout bounds a single delegate write so a stalled sink cannot
// wedge the worker.
const writeTimeout = 5 * time.Second

// record is the internal union of the two record kinds.
type record struct {
	decision *Decision
	event    *SecurityEvent
}

// AsyncSink decouples the request path from the actual audit write. Records
// are placed on a bounded buffer and written to the wrapped [Sink] by a
// single background worker. When the buffer is full the record is dropped
// and counted; enqueueing never blocks.
//
// WriteDecision and WriteEvent always return nil: on the request path an
// audit failure is not an error the caller may act on.
type AsyncSink struct {
	delegate Sink
	logger   *slog.Logger
	records  chan record
	dropped  atomic.Uint64

	closeOnce sync.Once
	done      chan struct{}
}

var _ Sink = (*AsyncSink)(nil)

// NewAsyncSink wraps delegate with a buffered background writer. A
// bufferSize of 0 or less uses [DefaultBufferSize]. Call [AsyncSink.Close]
// at shutdown to drain the buffer.
func NewAsyncSink(delegate Sink, bufferSize int, logger *slog.Logger) *AsyncSink {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &AsyncSink{
		delegate: delegate,
		logger:   logger,
		records:  make(chan record, bufferSize),
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

// WriteDecision enqueues the decision for background writing. Never blocks
// and never returns an error; a full buffer drops the record.
func (s *AsyncSink) WriteDecision(_ context.Context, d Decision) error {
	s.enqueue(record{decision: &d})
	return nil
}

// WriteEvent enqueues the event for background writing. Never blocks and
// never returns an error; a full buffer drops the record.
func (s *AsyncSink) WriteEvent(_ context.Context, e SecurityEvent) error {
	s.enqueue(record{event: &e})
	return nil
}

// Dropped returns the number of records discarded because the buffer was
// full.
func (s *AsyncSink) Dropped() uint64 {
	return s.dropped.Load()
}

// Close stops accepting new records, drains the buffer to the delegate and
// waits for the worker to finish. Safe to call more than once.
func (s *AsyncSink) Close() {
	s.closeOnce.Do(func() {
		close(s.records)
		<-s.done
	})
}

func (s *AsyncSink) enqueue(r record) {
	defer func() {
		// Enqueue after Close is a lifecycle bug in the caller; swallow
		// the send-on-closed panic rather than take down the request.
		if recover() != nil {
			s.dropped.Add(1)
		}
	}()

	select {
	case s.records <- r:
	default:
		n := s.dropped.Add(1)
		s.logger.Warn("dropping audit record, buffer full",
			"dropped_total", n,
		)
	}
}

// run is the background worker. It exits when the record channel is closed
// and drained.
func (s *AsyncSink) run() {
	defer close(s.done)

	for r := range s.records {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)

		var err error
		switch {
		case r.decision != nil:
			err = s.delegate.WriteDecision(ctx, *r.decision)
		case r.event != nil:
			err = s.delegate.WriteEvent(ctx, *r.event)
		}
		cancel()

		if err != nil {
			s.logger.Error("audit write failed", "error", err)
		}
	}
}
