package relay

import (
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/atomic"

	"nostrkit.dev/encoders/envelopes"
	"nostrkit.dev/event"
	"nostrkit.dev/internal/chk"
	"nostrkit.dev/internal/log"
	"nostrkit.dev/nosterr"
	"nostrkit.dev/xctx"
)

// Handlers are the callbacks a Connection's read loop invokes for each
// message type. Every callback receives the relay URL first, since one
// Handlers value is shared across every Connection in a Pool. Any field
// left nil is simply not invoked.
type Handlers struct {
	OnEvent  func(relayURL, subID string, ev *event.E)
	OnEose   func(relayURL, subID string)
	OnOk     func(relayURL, eventID string, accepted bool, message string)
	OnNotice func(relayURL, message string)
	OnAuth   func(relayURL, challenge string)
	OnCount  func(relayURL, subID string, count int)
}

// Connection owns a single relay's websocket session and reconnect state
// machine: Connecting -> Connected -> Disconnecting/Failed, with
// exponential backoff between attempts.
type Connection struct {
	URL     string
	Stats   Stats
	Sampler *Sampler
	Info    *Info

	handlers Handlers
	backoff  Backoff

	state  atomic.Int32
	mu     sync.Mutex
	conn   *websocket.Conn
	reason error
}

// NewConnection builds a Connection for relayURL, not yet dialed.
func NewConnection(relayURL string, h Handlers) *Connection {
	c := &Connection{
		URL:     Normalize(relayURL),
		handlers: h,
		backoff: DefaultBackoff(),
		Sampler: NewSampler(DefaultSamplerConfig()),
	}
	c.state.Store(int32(Disconnected))
	return c
}

// State returns the current lifecycle state, without taking c.mu: every
// caller that needs state consistent with conn/reason still goes through
// the mutex (Send, readLoop), this is for the frequent lock-free checks
// (Connect's fast path, waitUntilDropped's poll loop).
func (c *Connection) State() State { return State(c.state.Load()) }

func (c *Connection) setState(s State) { c.state.Store(int32(s)) }

// Connect dials the relay once. On success it starts the read loop in a new
// goroutine and returns immediately; the read loop runs until the
// connection drops or ctx is cancelled. Connecting to an already-connected
// relay is a no-op.
func (c *Connection) Connect(ctx xctx.T) error {
	if c.State() == Connected {
		return nil
	}
	c.setState(Connecting)
	conn, _, err := websocket.Dial(ctx, c.URL, nil)
	if err != nil {
		c.setState(Failed)
		c.Stats.recordError(err)
		return nosterr.Wrap(nosterr.ConnectFailed, "dial "+c.URL, err)
	}
	conn.SetReadLimit(32 << 20)

	c.mu.Lock()
	c.conn = conn
	c.reason = nil
	c.mu.Unlock()
	c.setState(Connected)

	c.backoff.Reset()
	c.Stats.recordConnected()

	go func() {
		if info, ierr := FetchInfo(&http.Client{Timeout: 10 * time.Second}, c.URL); ierr == nil {
			c.mu.Lock()
			c.Info = info
			c.mu.Unlock()
		}
	}()

	go c.readLoop(ctx)
	return nil
}

// Disconnect closes the underlying websocket with a normal-closure status.
// Disconnecting an already-disconnected relay is a no-op.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if s := c.State(); s == Disconnected || s == Disconnecting {
		return
	}
	c.setState(Disconnecting)
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "closing")
	}
	c.setState(Disconnected)
}

// Send writes a raw wire message (a full JSON array, e.g. from
// envelopes.ReqMsg.Marshal) to the relay.
func (c *Connection) Send(ctx xctx.T, data []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if c.State() != Connected || conn == nil {
		return nosterr.New(nosterr.RelayNotConnected, c.URL)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); chk.E(err) {
		return nosterr.Wrap(nosterr.SendFailed, c.URL, err)
	}
	return nil
}

func (c *Connection) readLoop(ctx xctx.T) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			c.mu.Lock()
			c.reason = err
			c.mu.Unlock()
			c.setState(Failed)
			c.Stats.recordError(err)
			log.D.F("relay %s read error: %v", c.URL, err)
			return
		}
		c.dispatch(data)
	}
}

func (c *Connection) dispatch(data []byte) {
	label, msg, err := envelopes.Parse(data)
	if chk.D(err) {
		return
	}
	switch label {
	case envelopes.LEvent:
		em := msg.(*envelopes.EventMsg)
		c.Stats.recordReceived()
		if c.handlers.OnEvent != nil {
			c.handlers.OnEvent(c.URL, em.SubID, em.Event)
		}
	case envelopes.LEose:
		eo := msg.(*envelopes.EoseMsg)
		if c.handlers.OnEose != nil {
			c.handlers.OnEose(c.URL, eo.SubID)
		}
	case envelopes.LOk:
		ok := msg.(*envelopes.OkMsg)
		c.Stats.recordOk(ok.Accepted)
		if c.handlers.OnOk != nil {
			c.handlers.OnOk(c.URL, ok.EventID, ok.Accepted, ok.Message)
		}
	case envelopes.LNotice:
		n := msg.(*envelopes.NoticeMsg)
		if c.handlers.OnNotice != nil {
			c.handlers.OnNotice(c.URL, n.Message)
		}
	case envelopes.LAuth:
		a := msg.(*envelopes.AuthMsg)
		if a.Challenge != "" && c.handlers.OnAuth != nil {
			c.handlers.OnAuth(c.URL, a.Challenge)
		}
	case envelopes.LCount:
		cm := msg.(*envelopes.CountMsg)
		if c.handlers.OnCount != nil {
			c.handlers.OnCount(c.URL, cm.SubID, cm.Count)
		}
	default:
		log.T.F("relay %s: unhandled envelope %q", c.URL, label)
	}
}

// Run keeps the connection alive, reconnecting with exponential backoff
// whenever the read loop exits, until ctx is cancelled.
func (c *Connection) Run(ctx xctx.T) {
	for {
		select {
		case <-ctx.Done():
			c.Disconnect()
			return
		default:
		}
		if err := c.Connect(ctx); err != nil {
			d := c.backoff.Next()
			log.D.F("relay %s connect failed (%v), retrying in %s", c.URL, err, d)
			select {
			case <-ctx.Done():
				return
			case <-time.After(d):
			}
			continue
		}
		c.waitUntilDropped(ctx)
		if ctx.Err() != nil {
			return
		}
		d := c.backoff.Next()
		log.D.F("relay %s disconnected, reconnecting in %s", c.URL, d)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d):
		}
	}
}

func (c *Connection) waitUntilDropped(ctx xctx.T) {
	t := time.NewTicker(50 * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if c.State() != Connected {
				return
			}
		}
	}
}
