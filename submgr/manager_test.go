package submgr

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nostrkit.dev/encoders/envelopes"
	"nostrkit.dev/encoders/filter"
	"nostrkit.dev/encoders/filters"
	"nostrkit.dev/encoders/kind"
	"nostrkit.dev/encoders/timestamp"
	"nostrkit.dev/event"
	"nostrkit.dev/relay"
	"nostrkit.dev/xctx"
)

type fakeSender struct {
	mu   sync.Mutex
	reqs []*envelopes.ReqMsg
}

func (f *fakeSender) Ensure(ctx xctx.T, url string) *relay.Connection { return nil }

func (f *fakeSender) SendReq(ctx xctx.T, urls []string, m *envelopes.ReqMsg) []string {
	f.mu.Lock()
	f.reqs = append(f.reqs, m)
	f.mu.Unlock()
	return urls
}

func (f *fakeSender) SendClose(ctx xctx.T, urls []string, subID string) []string { return urls }

func newTestEvent(k uint16, pub string, content string) *event.E {
	ev := event.New()
	ev.Kind = kind.New(k)
	ev.Pubkey = []byte(pub)
	ev.Content = []byte(content)
	ev.CreatedAt = timestamp.Now()
	ev.Id = []byte(pub + content)
	return ev
}

func TestSubscribeCacheOnlyFiresEOSEImmediately(t *testing.T) {
	sender := &fakeSender{}
	m := NewManager(sender, nil, nil, DefaultConfig())
	eosed := false
	f := filters.New(filter.New())
	l := m.Subscribe(xctx.Bg(), "", f, Options{CacheUsage: CacheOnly, OnEOSE: func() { eosed = true }})
	require.Equal(t, Closed, l.State())
	require.True(t, eosed)
}

func TestSubscribeSendsReqAfterCommitTick(t *testing.T) {
	sender := &fakeSender{}
	cfg := DefaultConfig()
	cfg.CommitTick = 5 * time.Millisecond
	m := NewManager(sender, nil, nil, cfg)
	f := filters.New(filter.New())
	m.Subscribe(xctx.Bg(), "", f, Options{RelaySet: []string{"wss://relay.example.com"}})

	require.Eventually(t, func() bool {
		sender.mu.Lock()
		defer sender.mu.Unlock()
		return len(sender.reqs) == 1
	}, 200*time.Millisecond, 5*time.Millisecond)
}

func TestProcessEventDeduplicatesByID(t *testing.T) {
	sender := &fakeSender{}
	m := NewManager(sender, nil, nil, DefaultConfig())
	f := filters.New(filter.New())
	l := m.Subscribe(xctx.Bg(), "", f, Options{RelaySet: []string{"wss://relay.example.com"}})

	var groupID string
	m.mu.Lock()
	for id := range m.groups["wss://relay.example.com/"] {
		groupID = id
	}
	m.mu.Unlock()
	require.NotEmpty(t, groupID)

	ev := newTestEvent(1, "pub1", "hello")
	m.ProcessEvent("wss://relay.example.com/", groupID, ev)
	m.ProcessEvent("wss://relay.example.com/", groupID, ev)

	require.Len(t, l.Events(), 1)
}

func TestProcessEOSEFiresAfterAllTargets(t *testing.T) {
	sender := &fakeSender{}
	m := NewManager(sender, nil, nil, DefaultConfig())
	f := filters.New(filter.New())
	eosed := 0
	l := m.Subscribe(xctx.Bg(), "", f, Options{
		RelaySet: []string{"wss://r1.example.com", "wss://r2.example.com"},
		OnEOSE:   func() { eosed++ },
	})

	var g1, g2 string
	m.mu.Lock()
	for id := range m.groups["wss://r1.example.com/"] {
		g1 = id
	}
	for id := range m.groups["wss://r2.example.com/"] {
		g2 = id
	}
	m.mu.Unlock()

	m.ProcessEOSE("wss://r1.example.com/", g1)
	require.Equal(t, 0, eosed)
	m.ProcessEOSE("wss://r2.example.com/", g2)
	require.Equal(t, 1, eosed)
	require.Equal(t, Eosed, l.State())
}

func TestCloseSendsCloseWhenGroupEmpty(t *testing.T) {
	sender := &fakeSender{}
	m := NewManager(sender, nil, nil, DefaultConfig())
	f := filters.New(filter.New())
	l := m.Subscribe(xctx.Bg(), "mysub", f, Options{RelaySet: []string{"wss://relay.example.com"}})

	m.Close(l.ID)
	require.Equal(t, Closed, l.State())

	m.mu.Lock()
	remaining := len(m.groups["wss://relay.example.com/"])
	m.mu.Unlock()
	require.Equal(t, 0, remaining)
}
