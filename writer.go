// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package pacer

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/pion/logging"
	"golang.org/x/time/rate"
)

var errWriterClosed = errors.New("paced writer closed")

// WriterOption is a configuration option for a Writer.
type WriterOption func(*Writer) error

// WithWriterLoggerFactory sets a logger factory for the writer.
func WithWriterLoggerFactory(loggerFactory logging.LoggerFactory) WriterOption {
	return func(w *Writer) error {
		w.log = loggerFactory.NewLogger("pacer_writer")

		return nil
	}
}

// WithRateLimit adds a hard cap on top of pacing: a write may be delayed
// further until a token bucket with the given limit and burst admits its
// bytes. Useful to bound the sender independently of the pacing rate
// supplied by the congestion controller.
func WithRateLimit(limit rate.Limit, burst int) WriterOption {
	return func(w *Writer) error {
		w.limit = rate.NewLimiter(limit, burst)

		return nil
	}
}

func writerTimeFactory(f func() time.Time) WriterOption {
	return func(w *Writer) error {
		w.now = f

		return nil
	}
}

func writerSleepFactory(f func(time.Duration)) WriterOption {
	return func(w *Writer) error {
		w.sleep = f

		return nil
	}
}

// Writer gates writes on a Pacer so that bytes written to the underlying
// writer are smoothed to the pacer's configured rate. Each Write blocks
// until the pacer permits sending, then writes and reports the written
// bytes back to the pacer.
//
// Writer serializes access to the pacer, so a Writer may be shared between
// goroutines where a bare Pacer may not.
type Writer struct {
	mu     sync.Mutex
	dst    io.Writer
	pacer  *Pacer
	limit  *rate.Limiter
	closed bool

	log   logging.LeveledLogger
	now   func() time.Time
	sleep func(time.Duration)
}

// NewWriter creates a Writer that paces writes to dst using p. The Writer
// takes ownership of the pacer; callers must not use p directly afterwards.
func NewWriter(dst io.Writer, p *Pacer, opts ...WriterOption) (*Writer, error) {
	w := &Writer{
		dst:   dst,
		pacer: p,
		log:   logging.NewDefaultLoggerFactory().NewLogger("pacer_writer"),
		now:   time.Now,
		sleep: time.Sleep,
	}
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}

	return w, nil
}

// Write blocks until the pacer permits sending, writes b to the underlying
// writer and reports the written bytes back to the pacer.
func (w *Writer) Write(b []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, errWriterClosed
	}

	now := w.now()
	if wait := w.pacer.NextTime().Sub(now); wait > 0 {
		w.log.Tracef("pacing write of %d bytes, waiting %v", len(b), wait)
		w.sleep(wait)
		now = w.now()
	}

	if w.limit != nil {
		if r := w.limit.ReserveN(now, len(b)); r.OK() {
			if delay := r.DelayFrom(now); delay > 0 {
				w.log.Tracef("rate limit reached, waiting %v", delay)
				w.sleep(delay)
				now = w.now()
			}
		} else {
			w.log.Warnf("write of %d bytes exceeds the rate limiter burst, not limiting", len(b))
		}
	}

	n, err := w.dst.Write(b)
	w.pacer.Send(n, now)

	return n, err
}

// SetRate reconfigures the underlying pacer with a new burst capacity in
// bytes and pacing rate in bytes per second.
func (w *Writer) SetRate(capacity int, pacingRate uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pacer.Update(capacity, pacingRate)
}

// Close marks the writer as closed. Subsequent writes fail. Close does not
// close the underlying writer.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closed = true

	return nil
}
