package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nostrkit.dev/encoders/filter"
	"nostrkit.dev/encoders/filters"
	"nostrkit.dev/encoders/kind"
	"nostrkit.dev/encoders/tag"
	"nostrkit.dev/encoders/tags"
	"nostrkit.dev/encoders/timestamp"
	"nostrkit.dev/event"
	"nostrkit.dev/hex"
	"nostrkit.dev/signer"
	"nostrkit.dev/xctx"
)

func newSigner(t *testing.T, b byte) signer.I {
	sec := make([]byte, 32)
	sec[31] = b
	s, err := signer.NewLocal(sec)
	require.NoError(t, err)
	return s
}

func pubHex(s signer.I) string { return hex.Enc(s.Pub()) }

func mkEvent(t *testing.T, sign signer.I, k uint16, createdAt int64, content string, tgs ...*tag.T) *event.E {
	ev := event.New()
	ev.Kind = kind.New(k)
	ev.CreatedAt = timestamp.New(createdAt)
	ev.Tags = tags.New(tgs...)
	ev.Content = []byte(content)
	require.NoError(t, ev.Sign(xctx.Bg(), sign))
	return ev
}

func TestStoreAndQueryByKind(t *testing.T) {
	s := New()
	sign := newSigner(t, 1)
	ev1 := mkEvent(t, sign, 1, 100, "a")
	ev2 := mkEvent(t, sign, 1, 200, "b")
	s.Store(ev1, nil)
	s.Store(ev2, nil)

	got := s.Query(filters.New(&filter.F{Kinds: []uint16{1}}))
	require.Len(t, got, 2)
	require.Equal(t, ev2.IdString(), got[0].IdString(), "newest first")
}

func TestReplaceableShadowsOlder(t *testing.T) {
	s := New()
	sign := newSigner(t, 2)
	older := mkEvent(t, sign, 0, 100, `{"name":"old"}`)
	newer := mkEvent(t, sign, 0, 200, `{"name":"new"}`)

	s.Store(older, nil)
	s.Store(newer, nil)

	got := s.Query(filters.New(&filter.F{Authors: []string{pubHex(sign)}, Kinds: []uint16{0}}))
	require.Len(t, got, 1, "only the newer replaceable event should remain")
	require.Equal(t, newer.IdString(), got[0].IdString())

	// Storing an older event again after a newer one is a no-op.
	s.Store(older, nil)
	got = s.Query(filters.New(&filter.F{Authors: []string{pubHex(sign)}, Kinds: []uint16{0}}))
	require.Len(t, got, 1)
	require.Equal(t, newer.IdString(), got[0].IdString())
}

func TestParameterizedReplaceableByDTag(t *testing.T) {
	s := New()
	sign := newSigner(t, 3)
	a1 := mkEvent(t, sign, 30000, 100, "v1", tag.New("d", "list-a"))
	a2 := mkEvent(t, sign, 30000, 200, "v2", tag.New("d", "list-a"))
	b1 := mkEvent(t, sign, 30000, 150, "other-list", tag.New("d", "list-b"))

	s.Store(a1, nil)
	s.Store(a2, nil)
	s.Store(b1, nil)

	got := s.Query(filters.New(&filter.F{Authors: []string{pubHex(sign)}, Kinds: []uint16{30000}}))
	require.Len(t, got, 2, "one winner per d-tag address")
}

func TestEphemeralNeverStored(t *testing.T) {
	s := New()
	sign := newSigner(t, 4)
	ev := mkEvent(t, sign, 20000, 100, "ping")
	s.Store(ev, nil)
	got := s.Query(filters.New(&filter.F{Kinds: []uint16{20000}}))
	require.Empty(t, got)
}

func TestProfileFreshness(t *testing.T) {
	s := NewWithCapacity(10*time.Millisecond, 10)
	sign := newSigner(t, 5)
	ev := mkEvent(t, sign, 0, 100, `{"name":"fresh"}`)
	s.Store(ev, nil)

	got, fresh := s.Profile(pubHex(sign))
	require.NotNil(t, got)
	require.True(t, fresh)

	time.Sleep(20 * time.Millisecond)
	got, fresh = s.Profile(pubHex(sign))
	require.NotNil(t, got)
	require.False(t, fresh, "entry should be stale past TTL")
}

func TestProfileLRUEviction(t *testing.T) {
	s := NewWithCapacity(time.Hour, 2)
	for i := byte(1); i <= 3; i++ {
		sign := newSigner(t, i)
		ev := mkEvent(t, sign, 0, int64(i), "x")
		s.Store(ev, nil)
	}
	// The capacity is 2; the first signer's profile should have been evicted.
	first := newSigner(t, 1)
	_, ok := s.profiles.get(pubHex(first))
	require.False(t, ok)
}

func TestUnpublishedQueue(t *testing.T) {
	s := New()
	sign := newSigner(t, 6)
	ev := mkEvent(t, sign, 1, 100, "queued")
	require.NoError(t, s.AddUnpublished(ev))

	pending, err := s.GetUnpublished()
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, s.MarkPublished(ev.IdString()))
	pending, err = s.GetUnpublished()
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestQueryRespectsSmallestLimit(t *testing.T) {
	s := New()
	sign := newSigner(t, 7)
	for i := int64(1); i <= 5; i++ {
		s.Store(mkEvent(t, sign, 1, i, "x"), nil)
	}
	two := 2
	got := s.Query(filters.New(&filter.F{Kinds: []uint16{1}, Limit: &two}))
	require.Len(t, got, 2)
}
