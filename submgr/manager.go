package submgr

import (
	"sync"
	"time"

	"nostrkit.dev/encoders/envelopes"
	"nostrkit.dev/encoders/filter"
	"nostrkit.dev/encoders/filters"
	"nostrkit.dev/event"
	"nostrkit.dev/internal/log"
	"nostrkit.dev/relay"
	"nostrkit.dev/xctx"
)

// Cache is the subset of the cache contract the subscription manager
// depends on, kept as a local small interface so this package doesn't
// require a concrete cache implementation to compile or test against.
type Cache interface {
	Query(f *filters.S) []*event.E
	Store(ev *event.E, f *filters.S)
}

// OutboxSelector picks target relays for a filter set absent an explicit
// relay_set, per the outbox model. outbox.NDKRelaySelector targets author
// write-relays for author-scoped filters and returns no relays otherwise, in
// which case the subscription is sent to no relay.
type OutboxSelector interface {
	RelaysFor(f *filters.S) []string
}

// Sender is the subset of relay.Pool the manager needs, kept as an
// interface for testability without a live websocket.
type Sender interface {
	Ensure(ctx xctx.T, url string) *relay.Connection
	SendReq(ctx xctx.T, urls []string, m *envelopes.ReqMsg) []string
	SendClose(ctx xctx.T, urls []string, subID string) []string
}

// Config tunes the manager's coalescing behavior.
type Config struct {
	CommitTick    time.Duration
	MaxFilters    int
	MaxSubIDLen   int
}

// DefaultConfig matches this module's documented defaults.
func DefaultConfig() Config {
	return Config{CommitTick: 100 * time.Millisecond, MaxFilters: 10, MaxSubIDLen: 64}
}

// Manager is the subscription manager: it owns the logical-subscription
// registry and the per-relay groups they're coalesced into.
type Manager struct {
	cfg    Config
	pool   Sender
	cache  Cache
	outbox OutboxSelector

	mu      sync.Mutex
	subs    map[string]*Logical
	groups  map[string]map[string]*group // relay -> groupID -> group
	pending map[string]bool              // relay -> commit scheduled
	seqNum  int

	replMu sync.Mutex
	latest map[string]*event.E // tag_address -> newest event seen, for shadowing
}

// NewManager builds a Manager. cache and outbox may be nil (cache-skip and
// explicit-relay-set-only behavior respectively).
func NewManager(pool Sender, cache Cache, outbox OutboxSelector, cfg Config) *Manager {
	return &Manager{
		cfg:     cfg,
		pool:    pool,
		cache:   cache,
		outbox:  outbox,
		subs:    make(map[string]*Logical),
		groups:  make(map[string]map[string]*group),
		pending: make(map[string]bool),
		latest:  make(map[string]*event.E),
	}
}

func (m *Manager) nextSubID() string {
	m.mu.Lock()
	id := m.nextSubIDLocked()
	m.mu.Unlock()
	return id
}

// nextSubIDLocked requires m.mu to already be held by the caller.
func (m *Manager) nextSubIDLocked() string {
	m.seqNum++
	return "sub" + itoaSub(m.seqNum)
}

func itoaSub(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// Subscribe registers a logical subscription, resolves it against the
// cache per its CacheUsage, and (unless CacheOnly) schedules relay fan-out.
func (m *Manager) Subscribe(ctx xctx.T, id string, f *filters.S, opts Options) *Logical {
	if id == "" {
		id = m.nextSubID()
	}
	l := newLogical(id, f, opts)

	m.mu.Lock()
	m.subs[id] = l
	m.mu.Unlock()

	if opts.CacheUsage != CacheSkip && m.cache != nil {
		for _, ev := range m.cache.Query(f) {
			m.routeToLogical(l, ev)
		}
	}
	if opts.CacheUsage == CacheOnly {
		l.close()
		if l.OnEOSE != nil {
			l.OnEOSE()
		}
		return l
	}

	rawTargets := opts.RelaySet
	if len(rawTargets) == 0 && m.outbox != nil {
		rawTargets = m.outbox.RelaysFor(f)
	}
	targets := make([]string, len(rawTargets))
	for i, r := range rawTargets {
		targets[i] = relay.Normalize(r)
	}
	l.mu.Lock()
	l.targets = targets
	l.mu.Unlock()

	for _, r := range targets {
		m.pool.Ensure(ctx, r)
		m.enqueueJoin(r, l)
	}
	for _, r := range targets {
		m.scheduleCommit(ctx, r)
	}
	return l
}

func (m *Manager) enqueueJoin(r string, l *Logical) {
	m.mu.Lock()
	if m.groups[r] == nil {
		m.groups[r] = make(map[string]*group)
	}
	var joined *group
	for _, g := range m.groups[r] {
		if merged, ok := g.tryJoin(l.Filters, m.cfg.MaxFilters); ok {
			g.commit(merged, l)
			joined = g
			break
		}
	}
	if joined == nil {
		g := &group{id: m.nextSubIDLocked(), relay: r, filters: append([]*filter.F{}, l.Filters.F...)}
		g.members = append(g.members, l)
		m.groups[r][g.id] = g
	}
	m.mu.Unlock()
}

func (m *Manager) scheduleCommit(ctx xctx.T, r string) {
	m.mu.Lock()
	if m.pending[r] {
		m.mu.Unlock()
		return
	}
	m.pending[r] = true
	m.mu.Unlock()
	time.AfterFunc(m.cfg.CommitTick, func() {
		m.mu.Lock()
		m.pending[r] = false
		groupsCopy := make([]*group, 0, len(m.groups[r]))
		for _, g := range m.groups[r] {
			groupsCopy = append(groupsCopy, g)
		}
		m.mu.Unlock()
		for _, g := range groupsCopy {
			m.pool.SendReq(ctx, []string{r}, &envelopes.ReqMsg{SubID: g.id, Filters: g.filterSet()})
		}
	})
}

// ProcessEvent handles an EVENT delivered by relayURL under wire sub-id
// subID: it looks up the owning group, checks the event against every
// member's filters, delivers to first-time matches, applies replaceable
// shadowing, and stores it in the cache.
func (m *Manager) ProcessEvent(relayURL, subID string, ev *event.E) {
	g := m.findGroup(relayURL, subID)
	if g == nil {
		return
	}
	if m.shadowedByNewer(ev) {
		return
	}
	for _, l := range g.memberList() {
		if !l.Filters.Matches(ev) {
			continue
		}
		if l.alreadySeen(ev.IdString()) {
			continue
		}
		l.deliver(ev)
	}
	if m.cache != nil {
		m.cache.Store(ev, g.filterSet())
	}
}

// shadowedByNewer applies replaceable/parameterized-replaceable semantics:
// an older event for the same tag_address is dropped in favor of one
// already seen.
func (m *Manager) shadowedByNewer(ev *event.E) bool {
	if !ev.IsReplaceable() && !ev.IsParameterizedReplaceable() {
		return false
	}
	addr := ev.TagAddress()
	m.replMu.Lock()
	defer m.replMu.Unlock()
	prev, ok := m.latest[addr]
	if ok && prev.CreatedAt.I64() > ev.CreatedAt.I64() {
		return true
	}
	m.latest[addr] = ev
	return false
}

func (m *Manager) findGroup(relayURL, subID string) *group {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.groups[relayURL][subID]
}

// ProcessEOSE marks relayURL as EOSE'd for the relay-level subscription
// subID, propagating to every member logical subscription and firing each
// one's EOSE callback once every one of its target relays has reported.
func (m *Manager) ProcessEOSE(relayURL, subID string) {
	g := m.findGroup(relayURL, subID)
	if g == nil {
		return
	}
	g.markEosed()
	for _, l := range g.memberList() {
		l.mu.Lock()
		total := len(l.targets)
		l.mu.Unlock()
		if total == 0 {
			total = 1
		}
		if l.markEosed(relayURL, total) {
			if l.OnEOSE != nil {
				l.OnEOSE()
			}
			if l.Opts.CloseOnEOSE {
				m.Close(l.ID)
			}
		}
	}
}

// Close removes the logical subscription from every group that contained
// it, sending CLOSE to a relay whenever that leaves its group empty.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	l, ok := m.subs[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.subs, id)
	m.mu.Unlock()
	if l.State() == Closed {
		return
	}
	l.close()

	for relayURL, groupsForRelay := range m.snapshotGroups() {
		for gid, g := range groupsForRelay {
			remaining := g.removeMember(l)
			if remaining == 0 {
				m.pool.SendClose(xctx.Bg(), []string{relayURL}, gid)
				m.mu.Lock()
				delete(m.groups[relayURL], gid)
				m.mu.Unlock()
			}
		}
	}
}

func (m *Manager) snapshotGroups() map[string]map[string]*group {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]map[string]*group, len(m.groups))
	for r, gs := range m.groups {
		cp := make(map[string]*group, len(gs))
		for id, g := range gs {
			cp[id] = g
		}
		out[r] = cp
	}
	return out
}

func (m *Manager) routeToLogical(l *Logical, ev *event.E) {
	if !l.Filters.Matches(ev) {
		return
	}
	if l.alreadySeen(ev.IdString()) {
		return
	}
	l.deliver(ev)
}

// OnAuthRequired logs that relayURL refused subID with an "auth-required:"
// reason. It only logs: it neither authenticates nor re-sends the REQ.
// Nothing in this module calls it, since the relay layer does not parse
// CLOSED messages.
func (m *Manager) OnAuthRequired(relayURL, subID string) {
	log.D.F("submgr: relay %s requires auth for subscription %s", relayURL, subID)
}
