package relay

import (
	"sync"
	"time"
)

// Stats tracks per-relay health signals consulted by the outbox ranker.
type Stats struct {
	mu sync.Mutex

	EventsReceived  int64
	EventsPublished int64
	OkAccepted      int64
	OkRejected      int64
	Errors          int64
	LastConnectedAt time.Time
	LastError       error

	sampled  int64
	verified int64
	invalid  int64
}

func (s *Stats) recordConnected() {
	s.mu.Lock()
	s.LastConnectedAt = time.Now()
	s.mu.Unlock()
}

func (s *Stats) recordError(err error) {
	s.mu.Lock()
	s.Errors++
	s.LastError = err
	s.mu.Unlock()
}

func (s *Stats) recordReceived() {
	s.mu.Lock()
	s.EventsReceived++
	s.mu.Unlock()
}

func (s *Stats) recordOk(accepted bool) {
	s.mu.Lock()
	if accepted {
		s.OkAccepted++
	} else {
		s.OkRejected++
	}
	s.mu.Unlock()
}

// Snapshot returns a copy safe for concurrent reading.
func (s *Stats) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		EventsReceived:  s.EventsReceived,
		EventsPublished: s.EventsPublished,
		OkAccepted:      s.OkAccepted,
		OkRejected:      s.OkRejected,
		Errors:          s.Errors,
		LastConnectedAt: s.LastConnectedAt,
		LastError:       s.LastError,
		sampled:         s.sampled,
		verified:        s.verified,
		invalid:         s.invalid,
	}
}

// InvalidRate returns the fraction of sampled signatures that failed
// verification, or 0 if nothing has been sampled yet.
func (s *Stats) InvalidRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sampled == 0 {
		return 0
	}
	return float64(s.invalid) / float64(s.sampled)
}
