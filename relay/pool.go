package relay

import (
	"sync"

	"nostrkit.dev/encoders/envelopes"
	"nostrkit.dev/xctx"
)

// Pool owns a set of Connections keyed by normalized URL, started lazily
// and kept alive by each Connection's own Run loop.
type Pool struct {
	handlers Handlers

	mu    sync.RWMutex
	conns map[string]*Connection
	stop  map[string]xctx.Cancel
}

// NewPool builds an empty pool; h is installed on every Connection it
// creates, so a single dispatch point serves the whole pool.
func NewPool(h Handlers) *Pool {
	return &Pool{handlers: h, conns: map[string]*Connection{}, stop: map[string]xctx.Cancel{}}
}

// Ensure returns the Connection for url, creating and starting it (via
// Connection.Run in a background goroutine) if it doesn't exist yet.
func (p *Pool) Ensure(ctx xctx.T, url string) *Connection {
	n := Normalize(url)
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.conns[n]; ok {
		return c
	}
	c := NewConnection(n, p.handlers)
	p.conns[n] = c
	runCtx, cancel := xctx.WithCancel(ctx)
	p.stop[n] = cancel
	go c.Run(runCtx)
	return c
}

// Get returns the Connection for url if it exists.
func (p *Pool) Get(url string) (*Connection, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.conns[Normalize(url)]
	return c, ok
}

// Stats returns a snapshot of the named relay's health statistics, for the
// outbox ranker; ok is false when the relay has never been Ensure'd.
func (p *Pool) Stats(url string) (Stats, bool) {
	c, ok := p.Get(url)
	if !ok {
		return Stats{}, false
	}
	return c.Stats.Snapshot(), true
}

// All returns every relay URL currently tracked by the pool.
func (p *Pool) All() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.conns))
	for u := range p.conns {
		out = append(out, u)
	}
	return out
}

// Remove stops and forgets the connection for url.
func (p *Pool) Remove(url string) {
	n := Normalize(url)
	p.mu.Lock()
	defer p.mu.Unlock()
	if cancel, ok := p.stop[n]; ok {
		cancel()
		delete(p.stop, n)
	}
	if c, ok := p.conns[n]; ok {
		c.Disconnect()
		delete(p.conns, n)
	}
}

// Broadcast sends data to every connected relay in urls, skipping any that
// are not currently connected. Returns the subset it actually sent to.
func (p *Pool) Broadcast(ctx xctx.T, urls []string, data []byte) []string {
	var sent []string
	for _, u := range urls {
		c, ok := p.Get(u)
		if !ok || c.State() != Connected {
			continue
		}
		if err := c.Send(ctx, data); err == nil {
			sent = append(sent, u)
		}
	}
	return sent
}

// SendReq marshals and sends a REQ envelope to every relay in urls.
func (p *Pool) SendReq(ctx xctx.T, urls []string, m *envelopes.ReqMsg) []string {
	return p.Broadcast(ctx, urls, m.Marshal(nil))
}

// SendClose marshals and sends a CLOSE envelope to every relay in urls.
func (p *Pool) SendClose(ctx xctx.T, urls []string, subID string) []string {
	return p.Broadcast(ctx, urls, (&envelopes.CloseMsg{SubID: subID}).Marshal(nil))
}
