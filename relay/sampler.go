package relay

import "time"

// SamplerConfig tunes the adaptive signature-verification sampling rate.
type SamplerConfig struct {
	FloorRate       float64       // minimum sampling rate, default 1/16
	Cooldown        time.Duration // full-verification window after an invalid sig, default 5m
	ConsecutiveHalf int           // consecutive clean verifications before halving rate, default 50
	UntrustedAfter  int           // consecutive invalid sigs before marking untrusted, default 3
}

// DefaultSamplerConfig matches this module's documented defaults.
func DefaultSamplerConfig() SamplerConfig {
	return SamplerConfig{
		FloorRate:       1.0 / 16,
		Cooldown:        5 * time.Minute,
		ConsecutiveHalf: 50,
		UntrustedAfter:  3,
	}
}

// Sampler decides, per relay, whether an incoming event's signature should
// be verified, and tracks the consequences of verification outcomes.
type Sampler struct {
	cfg SamplerConfig

	rate          float64
	cleanStreak   int
	invalidStreak int
	cooldownUntil time.Time
	untrusted     bool

	next func() float64
}

// NewSampler starts at full verification, as required for a newly seen
// relay.
func NewSampler(cfg SamplerConfig) *Sampler {
	return &Sampler{cfg: cfg, rate: 1.0, next: pseudoRandFloat}
}

// Untrusted reports whether repeated invalid signatures have disabled this
// relay's events entirely.
func (s *Sampler) Untrusted() bool { return s.untrusted }

// Rate returns the current sampling probability.
func (s *Sampler) Rate() float64 { return s.rate }

// ShouldVerify reports whether the next event's signature should be
// verified, consulting the cooldown window and current rate.
func (s *Sampler) ShouldVerify(now time.Time) bool {
	if s.untrusted {
		return false
	}
	if now.Before(s.cooldownUntil) {
		return true
	}
	if s.rate >= 1.0 {
		return true
	}
	return s.next() < s.rate
}

// RecordVerified updates the sampler after a signature was checked and
// found valid: it accumulates a clean streak, halving the rate (down to the
// floor) every ConsecutiveHalf verifications.
func (s *Sampler) RecordVerified() {
	s.invalidStreak = 0
	s.cleanStreak++
	if s.cleanStreak >= s.cfg.ConsecutiveHalf {
		s.cleanStreak = 0
		s.rate /= 2
		if s.rate < s.cfg.FloorRate {
			s.rate = s.cfg.FloorRate
		}
	}
}

// RecordInvalid resets the rate to full verification, opens the cooldown
// window, and marks the relay untrusted after repeated failures.
func (s *Sampler) RecordInvalid(now time.Time) {
	s.cleanStreak = 0
	s.rate = 1.0
	s.cooldownUntil = now.Add(s.cfg.Cooldown)
	s.invalidStreak++
	if s.invalidStreak >= s.cfg.UntrustedAfter {
		s.untrusted = true
	}
}

// pseudoRandFloat is the draw source NewSampler installs: a value in [0, 1)
// taken from the wall clock's nanoseconds.
var pseudoRandFloat = func() float64 {
	return float64(time.Now().UnixNano()%997) / 997
}
