// Package client is the orchestrator (spec.md's term): the top-level
// Client composes a relay pool, a cache, a signer, a subscription manager
// and an outbox tracker/ranker/selector behind the subscribe/publish entry
// points of spec.md §2, in the style of the teacher's app/relay.Server - a
// single struct wiring the relay's subsystems together once at startup and
// passed by reference, never reached for through a global.
package client

import (
	"nostrkit.dev/cache"
	"nostrkit.dev/encoders/filter"
	"nostrkit.dev/encoders/filters"
	"nostrkit.dev/event"
	"nostrkit.dev/internal/log"
	"nostrkit.dev/outbox"
	"nostrkit.dev/publish"
	"nostrkit.dev/relay"
	"nostrkit.dev/signer"
	"nostrkit.dev/submgr"
	"nostrkit.dev/xctx"
)

// Config tunes the orchestrator's constituent subsystems.
type Config struct {
	Submgr  submgr.Config
	Ranker  outbox.RankerConfig
	Publish publish.Config
}

// DefaultConfig matches this module's documented defaults throughout.
func DefaultConfig() Config {
	return Config{
		Submgr:  submgr.DefaultConfig(),
		Ranker:  outbox.DefaultRankerConfig(),
		Publish: publish.DefaultConfig(),
	}
}

// Client is the orchestrator: the single entry point an application holds.
// It owns the relay pool, the subscription manager, the publish pipeline,
// and the outbox tracker/ranker/selector; Cache and Signer are supplied by
// the caller (any cache.I backend, any signer.I variant) rather than
// constructed here, so the orchestrator never assumes a concrete
// implementation of either.
type Client struct {
	Pool    *relay.Pool
	Cache   cache.I
	Signer  signer.I
	Subs    *submgr.Manager
	Publish *publish.Pipeline
	Outbox  *outbox.Tracker
	Ranker  *outbox.NDKRelayRanker
	Selector *outbox.NDKRelaySelector

	cfg Config
}

// relayListFetcher adapts a *Client to outbox.Fetcher: it first queries the
// client's cache directly for the user's latest kind-10002 event and, on a
// miss, runs a CacheSkip logical subscription for it through the
// subscription manager the client already owns.
type relayListFetcher struct{ c *Client }

func (f relayListFetcher) FetchRelayList(ctx xctx.T, pubkey string) (*event.E, bool) {
	if f.c.Cache != nil {
		if evs := f.c.Cache.Query(filters.New(&filter.F{Authors: []string{pubkey}, Kinds: []uint16{10002}})); len(evs) > 0 {
			return evs[0], true
		}
	}
	var found *event.E
	done := make(chan struct{})
	sub := f.c.Subs.Subscribe(ctx, "", filters.New(&filter.F{Authors: []string{pubkey}, Kinds: []uint16{10002}}), submgr.Options{
		CacheUsage: submgr.CacheSkip,
		OnEvent:    func(ev *event.E) { found = ev },
		OnEOSE:     func() { close(done) },
	})
	select {
	case <-done:
	case <-ctx.Done():
	}
	f.c.Subs.Close(sub.ID)
	return found, found != nil
}

// New wires a Client around an already-connected-or-not relay pool, a
// cache backend, and a signer. The outbox tracker/ranker/selector are
// constructed fresh; pass nil for cache/signer to operate without one
// (cache-skip subscriptions, publish-only-presigned-events respectively).
func New(c cache.I, sign signer.I, cfg Config) *Client {
	cl := &Client{Cache: c, Signer: sign, cfg: cfg}

	cl.Pool = relay.NewPool(relay.Handlers{
		OnEvent: func(relayURL, subID string, ev *event.E) { cl.Subs.ProcessEvent(relayURL, subID, ev) },
		OnEose:  func(relayURL, subID string) { cl.Subs.ProcessEOSE(relayURL, subID) },
		OnOk:    func(relayURL, eventID string, accepted bool, message string) { cl.Publish.HandleOk(relayURL, eventID, accepted, message) },
		OnNotice: func(relayURL, message string) { log.I.F("relay %s NOTICE: %s", relayURL, message) },
		OnAuth:   func(relayURL, challenge string) { log.D.F("relay %s AUTH challenge: %s", relayURL, challenge) },
	})

	cl.Outbox = outbox.NewTracker(relayListFetcher{c: cl})
	cl.Ranker = outbox.NewRanker(cfg.Ranker, cl.Pool, cl.Outbox)
	cl.Selector = outbox.NewSelector(cl.Outbox, cl.Ranker)

	cl.Subs = submgr.NewManager(cl.Pool, cacheAdapter{c}, cl.Selector, cfg.Submgr)
	cl.Publish = publish.New(cl.Pool, c, sign, cl.Selector, nil, nil, cfg.Publish)

	return cl
}

// cacheAdapter narrows cache.I to submgr.Cache so a nil cache.I still
// satisfies the manager's "cache may be nil" contract without a type
// assertion at every call site.
type cacheAdapter struct{ c cache.I }

func (a cacheAdapter) Query(f *filters.S) []*event.E {
	if a.c == nil {
		return nil
	}
	return a.c.Query(f)
}

func (a cacheAdapter) Store(ev *event.E, f *filters.S) {
	if a.c == nil {
		return
	}
	a.c.Store(ev, f)
}

// Connect dials every seed relay url, starting its reconnect-with-backoff
// loop in the background.
func (c *Client) Connect(ctx xctx.T, urls ...string) {
	for _, u := range urls {
		c.Pool.Ensure(ctx, u)
	}
}

// Subscribe issues a logical subscription for filters f across the pool,
// per spec.md §4.5: cache-first resolution, outbox-driven relay selection
// (unless opts.RelaySet is given), coalescing, and EOSE aggregation.
func (c *Client) Subscribe(ctx xctx.T, f *filters.S, opts submgr.Options) *submgr.Logical {
	return c.Subs.Subscribe(ctx, "", f, opts)
}

// Unsubscribe closes a logical subscription previously returned by
// Subscribe.
func (c *Client) Unsubscribe(id string) { c.Subs.Close(id) }

// PublishEvent signs (if needed), validates, and fans ev out to its target
// relays, returning the aggregated per-relay result.
func (c *Client) PublishEvent(ctx xctx.T, ev *event.E, recipients []string) (*publish.Result, error) {
	return c.Publish.Publish(ctx, ev, recipients)
}
