package badgerstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nostrkit.dev/encoders/filter"
	"nostrkit.dev/encoders/filters"
	"nostrkit.dev/encoders/kind"
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

func mkEvent(t *testing.T, sign signer.I, k uint16, createdAt int64, content string) *event.E {
	ev := event.New()
	ev.Kind = kind.New(k)
	ev.CreatedAt = timestamp.New(createdAt)
	ev.Tags = tags.New()
	ev.Content = []byte(content)
	require.NoError(t, ev.Sign(xctx.Bg(), sign))
	return ev
}

func openTestStore(t *testing.T) *Store {
	s, err := Open(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreAndQuery(t *testing.T) {
	s := openTestStore(t)
	sign := newSigner(t, 1)
	ev1 := mkEvent(t, sign, 1, 100, "a")
	ev2 := mkEvent(t, sign, 1, 200, "b")
	s.Store(ev1, nil)
	s.Store(ev2, nil)

	got := s.Query(filters.New(&filter.F{Kinds: []uint16{1}}))
	require.Len(t, got, 2)
	require.Equal(t, ev2.IdString(), got[0].IdString())
}

func TestReplaceableShadowing(t *testing.T) {
	s := openTestStore(t)
	sign := newSigner(t, 2)
	older := mkEvent(t, sign, 0, 100, `{"name":"old"}`)
	newer := mkEvent(t, sign, 0, 200, `{"name":"new"}`)

	s.Store(older, nil)
	s.Store(newer, nil)

	got := s.Query(filters.New(&filter.F{Authors: []string{pubHex(sign)}, Kinds: []uint16{0}}))
	require.Len(t, got, 1)
	require.Equal(t, newer.IdString(), got[0].IdString())

	s.Store(older, nil)
	got = s.Query(filters.New(&filter.F{Authors: []string{pubHex(sign)}, Kinds: []uint16{0}}))
	require.Len(t, got, 1)
	require.Equal(t, newer.IdString(), got[0].IdString())
}

func TestEphemeralNotStored(t *testing.T) {
	s := openTestStore(t)
	sign := newSigner(t, 3)
	ev := mkEvent(t, sign, 20000, 100, "ping")
	s.Store(ev, nil)
	got := s.Query(filters.New(&filter.F{Kinds: []uint16{20000}}))
	require.Empty(t, got)
}

func TestProfileFreshness(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	s, err := OpenWithTTL(dir, 10*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	sign := newSigner(t, 4)
	ev := mkEvent(t, sign, 0, 100, `{"name":"fresh"}`)
	s.Store(ev, nil)

	got, fresh := s.Profile(pubHex(sign))
	require.NotNil(t, got)
	require.True(t, fresh)

	time.Sleep(20 * time.Millisecond)
	got, fresh = s.Profile(pubHex(sign))
	require.NotNil(t, got)
	require.False(t, fresh)
}

func TestUnpublishedQueue(t *testing.T) {
	s := openTestStore(t)
	sign := newSigner(t, 5)
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
