package publish

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nostrkit.dev/encoders/envelopes"
	"nostrkit.dev/encoders/kind"
	"nostrkit.dev/encoders/tags"
	"nostrkit.dev/encoders/timestamp"
	"nostrkit.dev/event"
	"nostrkit.dev/nosterr"
	"nostrkit.dev/signer"
	"nostrkit.dev/xctx"
)

// fakeSender records every Broadcast call and lets the test script
// per-relay responses by calling respond after Broadcast observes the
// send, simulating the relay pool's async OK delivery.
type fakeSender struct {
	mu    sync.Mutex
	sent  map[string][][]byte
	relay []string
	onSend func(relayURL string, msg []byte)
}

func newFakeSender(relays ...string) *fakeSender {
	return &fakeSender{sent: make(map[string][][]byte), relay: relays}
}

func (f *fakeSender) All() []string { return append([]string{}, f.relay...) }

func (f *fakeSender) Broadcast(ctx xctx.T, urls []string, data []byte) []string {
	var sent []string
	for _, u := range urls {
		ok := false
		for _, r := range f.relay {
			if r == u {
				ok = true
				break
			}
		}
		if !ok {
			continue
		}
		f.mu.Lock()
		f.sent[u] = append(f.sent[u], data)
		f.mu.Unlock()
		if f.onSend != nil {
			f.onSend(u, data)
		}
		sent = append(sent, u)
	}
	return sent
}

func signedEvent(t *testing.T, sign signer.I, content string) *event.E {
	ev := event.New()
	ev.Kind = kind.New(1)
	ev.CreatedAt = timestamp.Now()
	ev.Tags = tags.New()
	ev.Content = []byte(content)
	require.NoError(t, ev.Sign(xctx.Bg(), sign))
	return ev
}

func newTestSigner(t *testing.T) signer.I {
	sec := make([]byte, 32)
	sec[31] = 1
	s, err := signer.NewLocal(sec)
	require.NoError(t, err)
	return s
}

func TestPublishAggregatesSucceededFailedTimedOut(t *testing.T) {
	sender := newFakeSender("wss://r1.example/", "wss://r2.example/", "wss://r3.example/")
	sign := newTestSigner(t)
	p := New(sender, nil, sign, nil, nil, nil, Config{Deadline: 200 * time.Millisecond})

	sender.onSend = func(relayURL string, msg []byte) {
		label, m, err := envelopes.Parse(msg)
		require.NoError(t, err)
		require.Equal(t, envelopes.LEvent, label)
		em := m.(*envelopes.EventMsg)
		switch relayURL {
		case "wss://r1.example/":
			go p.HandleOk(relayURL, em.Event.IdString(), true, "")
		case "wss://r2.example/":
			go p.HandleOk(relayURL, em.Event.IdString(), false, "rate-limited: try later")
		case "wss://r3.example/":
			// never responds -> times out
		}
	}

	ev := signedEvent(t, sign, "hello")
	result, err := p.Publish(xctx.Bg(), ev, nil)
	require.NoError(t, err)
	require.True(t, result.AnySucceeded())
	require.Len(t, result.Succeeded(), 1)
	require.Equal(t, "wss://r1.example/", result.Succeeded()[0].Relay)
	require.Len(t, result.Failed(), 1)
	require.Equal(t, "wss://r2.example/", result.Failed()[0].Relay)
	require.Equal(t, "rate-limited: try later", result.Failed()[0].Reason)
	require.Len(t, result.TimedOut(), 1)
	require.Equal(t, "wss://r3.example/", result.TimedOut()[0].Relay)
}

func TestPublishDuplicateCountsAsSuccess(t *testing.T) {
	sender := newFakeSender("wss://r1.example/")
	sign := newTestSigner(t)
	p := New(sender, nil, sign, nil, nil, nil, DefaultConfig())
	sender.onSend = func(relayURL string, msg []byte) {
		label, m, err := envelopes.Parse(msg)
		require.NoError(t, err)
		require.Equal(t, envelopes.LEvent, label)
		em := m.(*envelopes.EventMsg)
		go p.HandleOk(relayURL, em.Event.IdString(), false, "duplicate: already have this event")
	}
	ev := signedEvent(t, sign, "dup")
	result, err := p.Publish(xctx.Bg(), ev, nil)
	require.NoError(t, err)
	require.True(t, result.AnySucceeded())
}

func TestPublishNoSignerFailsUnsignedEvent(t *testing.T) {
	sender := newFakeSender("wss://r1.example/")
	p := New(sender, nil, nil, nil, nil, nil, DefaultConfig())
	ev := event.New()
	ev.Kind = kind.New(1)
	ev.CreatedAt = timestamp.Now()
	ev.Tags = tags.New()
	_, err := p.Publish(xctx.Bg(), ev, nil)
	require.Error(t, err)
	require.True(t, nosterr.Is(err, nosterr.NoSigner))
}

func TestPublishNoRelaysReturnsEmptyResult(t *testing.T) {
	sender := newFakeSender()
	sign := newTestSigner(t)
	p := New(sender, nil, sign, nil, nil, nil, DefaultConfig())
	ev := signedEvent(t, sign, "nowhere")
	result, err := p.Publish(xctx.Bg(), ev, nil)
	require.NoError(t, err)
	require.Empty(t, result.Outcomes)
}
