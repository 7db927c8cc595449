package relay

import (
	"time"
)

// Backoff computes exponentially growing reconnect delays, capped: base,
// base*factor, base*factor^2, ... up to Cap.
type Backoff struct {
	Base   time.Duration
	Factor float64
	Cap    time.Duration

	attempt int
}

// DefaultBackoff matches this module's documented defaults: 1s base,
// doubling, capped at 300s.
func DefaultBackoff() Backoff {
	return Backoff{Base: time.Second, Factor: 2, Cap: 300 * time.Second}
}

// Next returns the delay for the current attempt and advances the counter.
func (b *Backoff) Next() time.Duration {
	d := float64(b.Base)
	for i := 0; i < b.attempt; i++ {
		d *= b.Factor
	}
	b.attempt++
	cap_ := float64(b.Cap)
	if d > cap_ {
		d = cap_
	}
	return time.Duration(d)
}

// Reset zeroes the attempt counter, called on a successful connection.
func (b *Backoff) Reset() { b.attempt = 0 }

// Attempt returns the number of Next() calls since the last Reset.
func (b *Backoff) Attempt() int { return b.attempt }
