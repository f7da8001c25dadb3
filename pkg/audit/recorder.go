package audit

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Sink receives serialized records. Write is called from the recorder's
// worker goroutine only.
type Sink interface {
	Write(record []byte) error
}

// WriterSink adapts an io.Writer into a Sink, emitting one record per
// line.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink wraps w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Write appends record and a newline to the underlying writer.
func (s *WriterSink) Write(record []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(record); err != nil {
		return err
	}
	_, err := s.w.Write([]byte{'\n'})
	return err
}

// Recorder ships audit records to a sink asynchronously. Record never
// blocks the evaluation path: a full queue drops the new record and
// counts the drop instead.
type Recorder struct {
	sink    Sink
	logger  *slog.Logger
	records chan *Record
	wg      sync.WaitGroup
	dropped atomic.Uint64

	// mu orders Record against Close so the queue is never written
	// after it is closed.
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// RecorderOption adjusts a Recorder.
type RecorderOption func(*recorderSettings)

type recorderSettings struct {
	bufferSize int
	logger     *slog.Logger
}

// WithBufferSize sets the queue depth. The default is 1024.
func WithBufferSize(n int) RecorderOption {
	return func(s *recorderSettings) { s.bufferSize = n }
}

// WithRecorderLogger sets the logger. The default is slog.Default.
func WithRecorderLogger(logger *slog.Logger) RecorderOption {
	return func(s *recorderSettings) { s.logger = logger }
}

// NewRecorder starts a recorder delivering to sink.
func NewRecorder(sink Sink, opts ...RecorderOption) *Recorder {
	settings := &recorderSettings{
		bufferSize: 1024,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(settings)
	}
	if settings.bufferSize <= 0 {
		settings.bufferSize = 1
	}

	r := &Recorder{
		sink:    sink,
		logger:  settings.logger.With("component", "audit.recorder"),
		records: make(chan *Record, settings.bufferSize),
	}
	r.wg.Add(1)
	go r.worker()
	return r
}

// Record enqueues rec for delivery. Returns false when the record was
// dropped because the queue is full or the recorder is closed.
func (r *Recorder) Record(rec *Record) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.dropped.Add(1)
		return false
	}
	select {
	case r.records <- rec:
		return true
	default:
		r.dropped.Add(1)
		return false
	}
}

// Dropped returns how many records were dropped.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Close drains the queue and stops the worker. Records offered after
// Close are dropped.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.records)
		r.mu.Unlock()
	})
	r.wg.Wait()
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()
	for rec := range r.records {
		if err := r.sink.Write(Serialize(rec)); err != nil {
			r.logger.Error("audit record delivery failed",
				"request_id", rec.RequestID,
				"error", err,
			)
		}
	}
	if n := r.dropped.Load(); n > 0 {
		r.logger.Warn(fmt.Sprintf("dropped %d audit records", n))
	}
}
