// Package outbox implements the outbox model (spec.md §4.10): per-user
// relay discovery from NIP-65 relay lists, health/coverage-weighted
// ranking, and final relay-set selection for reads and writes. The
// teacher (a single relay) never needs any of this - it is built fresh in
// the teacher's small-interface-composition idiom (interfaces/relay.I,
// interfaces/store.I), with the tracker's entries held in an xsync
// concurrent map.
package outbox

import (
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"nostrkit.dev/event"
	"nostrkit.dev/xctx"
)

// Source records where a Tracker entry's relay lists came from.
type Source int

const (
	SourceNip65 Source = iota
	SourceNip05Hint
	SourceManual
	SourceBlacklist
)

// Entry is a tracked user's relay-list snapshot.
type Entry struct {
	Pubkey      string
	ReadRelays  []string
	WriteRelays []string
	Source      Source
	LastRefresh time.Time
}

func (e *Entry) fresh(ttl time.Duration) bool {
	return e != nil && time.Since(e.LastRefresh) < ttl
}

// FreshnessTTL is how long a cached relay-list entry is trusted before
// GetRelaysFor re-fetches kind 10002.
const FreshnessTTL = 6 * time.Hour

// Fetcher resolves a pubkey's latest kind-10002 (relay list metadata)
// event, typically backed by a cache-first subscription against the
// manager/pool. Returning ok=false means "no relay list known".
type Fetcher interface {
	FetchRelayList(ctx xctx.T, pubkey string) (ev *event.E, ok bool)
}

// Tracker maintains the pubkey -> (read_relays, write_relays, source,
// last_refresh) map of spec.md §3's "Outbox tracker entry".
type Tracker struct {
	fetcher Fetcher
	ttl     time.Duration
	entries *xsync.MapOf[string, *Entry]

	blMu      sync.RWMutex
	blacklist map[string]bool
}

// NewTracker builds a Tracker. fetcher may be nil, in which case
// GetRelaysFor only ever returns manually-seeded or already-cached entries.
func NewTracker(fetcher Fetcher) *Tracker {
	return &Tracker{
		fetcher:   fetcher,
		ttl:       FreshnessTTL,
		entries:   xsync.NewMapOf[string, *Entry](),
		blacklist: make(map[string]bool),
	}
}

// GetRelaysFor returns pubkey's read/write relays, using the cached entry
// if it is still fresh, otherwise fetching and parsing the user's latest
// kind-10002 event.
func (t *Tracker) GetRelaysFor(ctx xctx.T, pubkey string) (read, write []string) {
	if e, ok := t.entries.Load(pubkey); ok && e.fresh(t.ttl) {
		return e.ReadRelays, e.WriteRelays
	}
	if t.fetcher == nil {
		if e, ok := t.entries.Load(pubkey); ok {
			return e.ReadRelays, e.WriteRelays
		}
		return nil, nil
	}
	ev, ok := t.fetcher.FetchRelayList(ctx, pubkey)
	if !ok {
		if e, ok := t.entries.Load(pubkey); ok {
			return e.ReadRelays, e.WriteRelays
		}
		return nil, nil
	}
	read, write = ParseRelayList(ev)
	t.entries.Store(pubkey, &Entry{
		Pubkey: pubkey, ReadRelays: read, WriteRelays: write,
		Source: SourceNip65, LastRefresh: time.Now(),
	})
	return read, write
}

// SetManual seeds (or overrides) pubkey's relay lists outside of NIP-65
// discovery, e.g. from a NIP-05 relay hint or application configuration.
func (t *Tracker) SetManual(pubkey string, read, write []string, source Source) {
	t.entries.Store(pubkey, &Entry{
		Pubkey: pubkey, ReadRelays: read, WriteRelays: write,
		Source: source, LastRefresh: time.Now(),
	})
}

// Blacklist marks a relay URL as never to be selected, regardless of what
// any tracked entry says.
func (t *Tracker) Blacklist(relayURL string) {
	t.blMu.Lock()
	t.blacklist[relayURL] = true
	t.blMu.Unlock()
}

// IsBlacklisted reports whether relayURL has been blacklisted.
func (t *Tracker) IsBlacklisted(relayURL string) bool {
	t.blMu.RLock()
	defer t.blMu.RUnlock()
	return t.blacklist[relayURL]
}

// Entry returns the cached entry for pubkey, if any, mainly for tests and
// diagnostics.
func (t *Tracker) Entry(pubkey string) (*Entry, bool) {
	return t.entries.Load(pubkey)
}

// ParseRelayList parses a kind-10002 event's `r` tags into read/write
// relay sets per NIP-65: an unmarked tag counts as both read and write.
func ParseRelayList(ev *event.E) (read, write []string) {
	if ev == nil {
		return nil, nil
	}
	for _, t := range ev.Tags.GetAll("r") {
		if t.Len() < 2 {
			continue
		}
		url := t.Value()
		marker := ""
		if t.Len() >= 3 {
			marker = string(t.Field[2])
		}
		switch marker {
		case "read":
			read = append(read, url)
		case "write":
			write = append(write, url)
		default:
			read = append(read, url)
			write = append(write, url)
		}
	}
	return read, write
}
