// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package pacer

import (
	"bytes"
	"testing"
	"time"

	"github.com/pion/transport/v3/test"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func newTestWriter(t *testing.T, dst *bytes.Buffer, pacer *Pacer, clock *fakeClock, opts ...WriterOption) (*Writer, *[]time.Duration) {
	t.Helper()

	slept := &[]time.Duration{}
	opts = append(opts,
		writerTimeFactory(clock.Now),
		writerSleepFactory(func(d time.Duration) {
			*slept = append(*slept, d)
			clock.Advance(d)
		}),
	)
	writer, err := NewWriter(dst, pacer, opts...)
	assert.NoError(t, err)

	return writer, slept
}

func TestWriterPacesWrites(t *testing.T) {
	lim := test.TimeOut(5 * time.Second)
	defer lim.Stop()

	report := test.CheckRoutines(t)
	defer report()

	clock := &fakeClock{now: time.Now()}
	pacer := New(maxBurst, pacingRate, timeFactory(clock.Now))

	var buf bytes.Buffer
	writer, slept := newTestWriter(t, &buf, pacer, clock)

	// The first burst goes out back to back.
	n, err := writer.Write(make([]byte, 6000))
	assert.NoError(t, err)
	assert.Equal(t, 6000, n)

	_, err = writer.Write(make([]byte, 6000))
	assert.NoError(t, err)
	assert.Empty(t, *slept)

	// The burst is exhausted now, so the next write waits one interval.
	_, err = writer.Write(make([]byte, 1000))
	assert.NoError(t, err)
	assert.Equal(t, []time.Duration{burstInterval}, *slept)

	assert.Equal(t, 13000, buf.Len())
}

func TestWriterRateLimit(t *testing.T) {
	report := test.CheckRoutines(t)
	defer report()

	clock := &fakeClock{now: time.Now()}

	t.Run("delays_when_over_limit", func(t *testing.T) {
		// Pacing disabled; only the hard cap gates writes.
		pacer := New(maxBurst, 0, timeFactory(clock.Now))

		var buf bytes.Buffer
		writer, slept := newTestWriter(t, &buf, pacer, clock,
			WithRateLimit(rate.Limit(pacingRate), maxBurst))

		_, err := writer.Write(make([]byte, 12000))
		assert.NoError(t, err)
		assert.Empty(t, *slept)

		_, err = writer.Write(make([]byte, 6000))
		assert.NoError(t, err)
		assert.Equal(t, []time.Duration{60 * time.Millisecond}, *slept)
	})

	t.Run("passes_through_oversized_writes", func(t *testing.T) {
		pacer := New(maxBurst, 0, timeFactory(clock.Now))

		var buf bytes.Buffer
		writer, slept := newTestWriter(t, &buf, pacer, clock,
			WithRateLimit(rate.Limit(pacingRate), 1000))

		// Larger than the limiter burst: logged and written unlimited
		// rather than blocking forever.
		_, err := writer.Write(make([]byte, 2000))
		assert.NoError(t, err)
		assert.Empty(t, *slept)
		assert.Equal(t, 2000, buf.Len())
	})
}

func TestWriterSetRate(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	pacer := New(maxBurst, pacingRate, timeFactory(clock.Now))

	var buf bytes.Buffer
	writer, slept := newTestWriter(t, &buf, pacer, clock)

	_, err := writer.Write(make([]byte, 12000))
	assert.NoError(t, err)

	// Reconfiguring discards the exhausted burst accounting but keeps the
	// already promised send time, so the following write still waits.
	writer.SetRate(24000, 200_000)

	_, err = writer.Write(make([]byte, 1000))
	assert.NoError(t, err)
	assert.Equal(t, []time.Duration{burstInterval}, *slept)
}

func TestWriterClose(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	pacer := New(maxBurst, pacingRate, timeFactory(clock.Now))

	var buf bytes.Buffer
	writer, _ := newTestWriter(t, &buf, pacer, clock)

	_, err := writer.Write(make([]byte, 1000))
	assert.NoError(t, err)

	assert.NoError(t, writer.Close())

	_, err = writer.Write(make([]byte, 1000))
	assert.ErrorIs(t, err, errWriterClosed)
	assert.Equal(t, 1000, buf.Len())
}
