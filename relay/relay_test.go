package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	cases := map[string]string{
		"wss://Relay.Example.COM":        "wss://relay.example.com/",
		"wss://www.relay.example.com":    "wss://relay.example.com/",
		"wss://relay.example.com:443":    "wss://relay.example.com/",
		"ws://relay.example.com:80/":     "ws://relay.example.com/",
		"relay.example.com":              "wss://relay.example.com/",
		"wss://relay.example.com/path//": "wss://relay.example.com/path/",
	}
	for in, want := range cases {
		require.Equal(t, want, Normalize(in), "input %q", in)
	}
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	b := Backoff{Base: time.Second, Factor: 2, Cap: 10 * time.Second}
	var last time.Duration
	for i := 0; i < 10; i++ {
		d := b.Next()
		require.LessOrEqual(t, d, 10*time.Second)
		last = d
	}
	require.LessOrEqual(t, last, 10*time.Second)
}

// TestBackoffSequenceMatchesSpecExactly is spec.md §8 Scenario F: with
// base=1s, factor=2, three consecutive failures schedule exactly 1s, 2s,
// 4s - no jitter.
func TestBackoffSequenceMatchesSpecExactly(t *testing.T) {
	b := DefaultBackoff()
	require.Equal(t, time.Second, b.Next())
	require.Equal(t, 2*time.Second, b.Next())
	require.Equal(t, 4*time.Second, b.Next())

	b.Reset()
	require.Equal(t, time.Second, b.Next())
}

func TestBackoffResetsAttempt(t *testing.T) {
	b := DefaultBackoff()
	b.Next()
	b.Next()
	require.Equal(t, 2, b.Attempt())
	b.Reset()
	require.Equal(t, 0, b.Attempt())
}

func TestSamplerStartsAtFullVerification(t *testing.T) {
	s := NewSampler(DefaultSamplerConfig())
	require.Equal(t, 1.0, s.Rate())
	require.True(t, s.ShouldVerify(time.Now()))
}

func TestSamplerHalvesAfterConsecutiveClean(t *testing.T) {
	cfg := DefaultSamplerConfig()
	cfg.ConsecutiveHalf = 2
	s := NewSampler(cfg)
	s.RecordVerified()
	s.RecordVerified()
	require.Equal(t, 0.5, s.Rate())
}

func TestSamplerRateNeverBelowFloor(t *testing.T) {
	cfg := DefaultSamplerConfig()
	cfg.ConsecutiveHalf = 1
	cfg.FloorRate = 0.25
	s := NewSampler(cfg)
	for i := 0; i < 10; i++ {
		s.RecordVerified()
	}
	require.Equal(t, 0.25, s.Rate())
}

func TestSamplerInvalidResetsRateAndOpensCooldown(t *testing.T) {
	cfg := DefaultSamplerConfig()
	cfg.ConsecutiveHalf = 1
	s := NewSampler(cfg)
	s.RecordVerified()
	require.Less(t, s.Rate(), 1.0)

	now := time.Now()
	s.RecordInvalid(now)
	require.Equal(t, 1.0, s.Rate())
	require.True(t, s.ShouldVerify(now.Add(time.Second)))
}

func TestSamplerMarksUntrustedAfterRepeatedInvalid(t *testing.T) {
	cfg := DefaultSamplerConfig()
	cfg.UntrustedAfter = 2
	s := NewSampler(cfg)
	now := time.Now()
	s.RecordInvalid(now)
	require.False(t, s.Untrusted())
	s.RecordInvalid(now)
	require.True(t, s.Untrusted())
	require.False(t, s.ShouldVerify(now))
}

func TestStateString(t *testing.T) {
	require.Equal(t, "connected", Connected.String())
	require.Equal(t, "failed", Failed.String())
}
