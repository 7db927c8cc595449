// Package submgr is the subscription manager: it turns application-level
// logical subscriptions into coalesced, per-relay REQs, resolves them
// against a cache first, fans incoming events out to every matching
// logical subscription, and aggregates EOSE.
package submgr

import (
	"sync"

	"nostrkit.dev/encoders/filters"
	"nostrkit.dev/event"
)

// SubState is a logical subscription's lifecycle state.
type SubState int

const (
	Pending SubState = iota
	Active
	Eosed
	Closed
)

// CacheUsage controls whether/how the cache is consulted before the network.
type CacheUsage int

const (
	CacheFirst CacheUsage = iota
	CacheOnly
	CacheParallel
	CacheSkip
)

// Options configures a logical subscription.
type Options struct {
	CloseOnEOSE    bool
	RelaySet       []string
	CacheUsage     CacheUsage
	GroupWithPeers bool
	// EventCap is the soft backpressure limit; 0 means the default (10000).
	EventCap int

	OnEvent func(*event.E)
	OnEOSE  func()
	OnError func(error)
}

// DefaultEventCap is the soft per-subscription event backlog cap of the
// backpressure policy.
const DefaultEventCap = 10000

// Logical is an application-level subscription: one or more filters with a
// single event/EOSE callback pair, coalesced by the manager into one or
// more relay-level groups.
type Logical struct {
	ID      string
	Filters *filters.S
	Opts    Options

	OnEvent func(*event.E)
	OnEOSE  func()
	OnError func(error)

	mu       sync.Mutex
	state    SubState
	seen     map[string]bool
	events   []*event.E
	eosedBy  map[string]bool
	targets  []string
	buffered []*event.E
	paused   bool
}

func newLogical(id string, f *filters.S, opts Options) *Logical {
	if opts.EventCap == 0 {
		opts.EventCap = DefaultEventCap
	}
	return &Logical{
		ID:      id,
		Filters: f,
		Opts:    opts,
		OnEvent: opts.OnEvent,
		OnEOSE:  opts.OnEOSE,
		OnError: opts.OnError,
		state:   Pending,
		seen:    make(map[string]bool),
		eosedBy: make(map[string]bool),
	}
}

// State returns the current lifecycle state.
func (l *Logical) State() SubState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Events returns the ordered, deduplicated events accumulated so far.
func (l *Logical) Events() []*event.E {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*event.E, len(l.events))
	copy(out, l.events)
	return out
}

// deliver appends a newly matched event (already deduplicated by the
// caller). Once the backlog reaches EventCap, delivery pauses: further
// events still accumulate in events but their callbacks are held in
// buffered until Drain releases them.
func (l *Logical) deliver(ev *event.E) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	if l.paused {
		l.buffered = append(l.buffered, ev)
		l.mu.Unlock()
		return
	}
	if len(l.events) >= l.Opts.EventCap {
		l.paused = true
	}
	cb := l.OnEvent
	l.mu.Unlock()
	if cb != nil {
		cb(ev)
	}
}

// Drain releases buffered events once the application has consumed the
// backlog, lifting backpressure.
func (l *Logical) Drain() {
	l.mu.Lock()
	l.paused = false
	cb := l.OnEvent
	pending := l.buffered
	l.buffered = nil
	l.mu.Unlock()
	if cb == nil {
		return
	}
	for _, ev := range pending {
		cb(ev)
	}
}

func (l *Logical) alreadySeen(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.seen[id] {
		return true
	}
	l.seen[id] = true
	return false
}

func (l *Logical) markEosed(relay string, total int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.eosedBy[relay] = true
	if l.state == Pending {
		l.state = Active
	}
	if len(l.eosedBy) >= total && l.state != Closed {
		l.state = Eosed
		return true
	}
	return false
}

func (l *Logical) close() {
	l.mu.Lock()
	l.state = Closed
	l.mu.Unlock()
}
