// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package pacer provides the timestamp for the next packet to be sent based
// on a burst capacity, a pacing rate and the last send time (RFC 9002
// Section 7.7). Congestion control decides how many bytes may be in flight;
// the pacer decides when bytes already permitted may actually leave the
// host, so that a group of packets within one burst shares a send time
// (e.g. when sent with multiple sendmsg calls, sendmmsg, or GSO without
// waiting for a new I/O event) and the following burst is delayed according
// to the current pacing rate.
package pacer

import (
	"time"

	"github.com/pion/logging"
)

// Option is a configuration option for a Pacer.
type Option func(*Pacer)

// WithLoggerFactory sets a logger factory for the pacer.
func WithLoggerFactory(loggerFactory logging.LoggerFactory) Option {
	return func(p *Pacer) {
		p.log = loggerFactory.NewLogger("pacer")
	}
}

func timeFactory(f func() time.Time) Option {
	return func(p *Pacer) {
		p.now = f
	}
}

// Pacer tracks a burst bucket of capacity bytes that conceptually refills
// at rate bytes per second, and computes the earliest time at which the
// next packet may be sent. Sends within one bucket are permitted
// immediately; once the bucket is exhausted, the next send is gated one
// full bucket interval after the last update.
//
// A Pacer is not safe for concurrent use. It is meant to be exclusively
// owned by the control loop that also owns congestion control and the send
// path of a single connection. Use Writer to share a pacer between
// goroutines.
type Pacer struct {
	log logging.LeveledLogger
	now func() time.Time

	// Bucket capacity (bytes).
	capacity int

	// Bucket used (bytes).
	used int

	// Sending pacing rate (bytes/sec). Zero disables pacing.
	rate uint64

	// Timestamp of last packet sent time update.
	lastUpdate time.Time

	// Timestamp of next packet to be sent.
	nextTime time.Time
}

// New creates a Pacer with the given burst capacity in bytes and pacing
// rate in bytes per second. Capacity is typically a multiple of the
// maximum datagram size, e.g. the congestion controller's send quantum. A
// rate or capacity of zero disables pacing: sends are always permitted
// immediately.
func New(capacity int, rate uint64, opts ...Option) *Pacer {
	p := &Pacer{
		log:      logging.NewDefaultLoggerFactory().NewLogger("pacer"),
		now:      time.Now,
		capacity: capacity,
		rate:     rate,
	}
	for _, opt := range opts {
		opt(p)
	}

	now := p.now()
	p.lastUpdate = now
	p.nextTime = now

	return p
}

// Update replaces the bucket capacity and pacing rate and resets the
// pacer. Accounting done under the old rate is discarded; the next Send
// starts a fresh burst window.
func (p *Pacer) Update(capacity int, rate uint64) {
	p.capacity = capacity
	p.rate = rate

	p.Reset()
}

// Reset starts a fresh burst window. The next permitted send time never
// moves earlier than the current clock reading, but a send time already
// promised in the future is kept.
func (p *Pacer) Reset() {
	p.used = 0

	now := p.now()
	p.lastUpdate = now
	if p.nextTime.Before(now) {
		p.nextTime = now
	}
}

// Send records that sentBytes were written to the network at now and
// updates the timestamp at which the next send is permitted. Degenerate
// inputs (zero rate, zero bytes, now before the last update) never
// withhold permission.
func (p *Pacer) Send(sentBytes int, now time.Time) {
	if p.rate == 0 || sentBytes == 0 {
		p.nextTime = maxTime(p.lastUpdate, now)
		p.lastUpdate = p.nextTime

		return
	}

	// Time to drain one full bucket at the current rate.
	interval := time.Duration(float64(p.capacity) / float64(p.rate) * float64(time.Second))

	elapsed := now.Sub(p.lastUpdate)
	if elapsed < 0 {
		elapsed = 0
	}

	// Idle for longer than one bucket interval: start over rather than
	// banking the unused capacity into an oversized burst.
	if elapsed > interval {
		p.log.Tracef("idle for %v (interval %v), resetting", elapsed, interval)
		p.Reset()
	}

	p.used += sentBytes

	var next time.Duration
	if p.used >= p.capacity {
		// Bucket exhausted. Carry the overshoot into the new window so
		// the long-run rate stays unbiased.
		p.used -= p.capacity
		p.lastUpdate = now

		next = interval
	}

	p.nextTime = maxTime(p.lastUpdate.Add(next), now)
}

// NextTime returns the earliest timestamp at which the next packet may be
// sent, as computed by the most recent New, Update, Reset or Send call.
func (p *Pacer) NextTime() time.Time {
	return p.nextTime
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}

	return b
}
