// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package pacer

import (
	"time"

	"golang.org/x/time/rate"
)

// TokenBucket is an admission style limiter for senders that gate
// transmissions by allow/deny instead of by timestamp. It wraps a token
// bucket filter with the same bytes-per-second vocabulary as Pacer.
type TokenBucket struct {
	limiter *rate.Limiter
}

// NewTokenBucket creates a TokenBucket that admits initialRate bytes per
// second with bursts of at most burst bytes.
func NewTokenBucket(initialRate, burst int) *TokenBucket {
	return &TokenBucket{
		limiter: rate.NewLimiter(rate.Limit(initialRate), burst),
	}
}

// SetRate updates the admitted rate and burst size.
func (b *TokenBucket) SetRate(r, burst int) {
	b.limiter.SetLimit(rate.Limit(r))
	b.limiter.SetBurst(burst)
}

// Budget returns the number of bytes that may be sent at time t without
// being delayed.
func (b *TokenBucket) Budget(t time.Time) float64 {
	return b.limiter.TokensAt(t)
}

// AllowN reports whether n bytes may be sent at time t, consuming them
// from the budget if so.
func (b *TokenBucket) AllowN(t time.Time, n int) bool {
	return b.limiter.AllowN(t, n)
}
