package outbox

import (
	"sort"
	"sync"
	"time"

	"nostrkit.dev/relay"
)

// RankerConfig tunes NDKRelayRanker's scoring weights and the default
// fan-out caps consulted by RelaySelector.
type RankerConfig struct {
	WeightSuccessRate float64
	WeightLatency     float64
	WeightCoverage    float64
	WriteCap          int
	ReadCap           int
}

// DefaultRankerConfig matches this module's documented defaults: cap at 5
// relays per author for write, 3 for read.
func DefaultRankerConfig() RankerConfig {
	return RankerConfig{
		WeightSuccessRate: 1.0,
		WeightLatency:     0.5,
		WeightCoverage:    0.25,
		WriteCap:          5,
		ReadCap:           3,
	}
}

// StatsSource gives the ranker read access to a relay's health stats
// without depending on a concrete *relay.Pool (so it can be unit-tested
// with fakes).
type StatsSource interface {
	Stats(url string) (relay.Stats, bool)
}

// NDKRelayRanker scores candidate relays by OK success rate, how recently
// the relay last connected, a coverage count (see Observe), and blacklist
// membership. No round-trip latency is measured.
type NDKRelayRanker struct {
	cfg     RankerConfig
	stats   StatsSource
	tracker *Tracker

	mu       sync.Mutex
	coverage map[string]int // relay -> number of distinct pubkeys it serves
}

// NewRanker builds a ranker over stats (may be nil to skip success-rate and
// latency scoring) and tracker (for blacklist checks).
func NewRanker(cfg RankerConfig, stats StatsSource, tracker *Tracker) *NDKRelayRanker {
	return &NDKRelayRanker{cfg: cfg, stats: stats, tracker: tracker, coverage: make(map[string]int)}
}

// Observe records that relayURL is one of the relays serving pubkey, for
// coverage scoring. Call once per (relay, pubkey) pair discovered.
func (r *NDKRelayRanker) Observe(relayURL string) {
	r.mu.Lock()
	r.coverage[relayURL]++
	r.mu.Unlock()
}

// Score computes a relay's ranking weight; higher is better. Blacklisted
// relays always score -1 so they sort last and can be filtered out.
func (r *NDKRelayRanker) Score(relayURL string) float64 {
	if r.tracker != nil && r.tracker.IsBlacklisted(relayURL) {
		return -1
	}
	score := 0.0
	if r.stats != nil {
		if st, ok := r.stats.Stats(relayURL); ok {
			total := st.OkAccepted + st.OkRejected
			if total > 0 {
				rate := float64(st.OkAccepted) / float64(total)
				score += r.cfg.WeightSuccessRate * rate
			}
			if !st.LastConnectedAt.IsZero() {
				age := time.Since(st.LastConnectedAt)
				score += r.cfg.WeightLatency / (1 + age.Seconds()/60)
			}
		}
	}
	r.mu.Lock()
	cov := r.coverage[relayURL]
	r.mu.Unlock()
	score += r.cfg.WeightCoverage * float64(cov)
	return score
}

// TopK ranks candidates best-first and returns at most k, dropping any
// blacklisted entries. Ties are broken by the original (discovery) order
// to keep the result deterministic.
func (r *NDKRelayRanker) TopK(candidates []string, k int) []string {
	type scored struct {
		url   string
		score float64
		idx   int
	}
	ranked := make([]scored, 0, len(candidates))
	for i, c := range candidates {
		s := r.Score(c)
		if s < 0 {
			continue
		}
		ranked = append(ranked, scored{c, s, i})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].idx < ranked[j].idx
	})
	if k <= 0 || k > len(ranked) {
		k = len(ranked)
	}
	out := make([]string, 0, k)
	for i := 0; i < k; i++ {
		out = append(out, ranked[i].url)
	}
	return out
}
