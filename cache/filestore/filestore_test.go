package filestore

import (
	"os"
	"path/filepath"
	"testing"

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

func TestStorePersistsEventFile(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	sign := newSigner(t, 1)
	ev := mkEvent(t, sign, 1, 100, "hello")
	s.Store(ev, nil)

	path := filepath.Join(dir, "events", ev.IdString()[:2], ev.IdString()+".json")
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(b), "hello")

	got := s.Query(filters.New(&filter.F{Kinds: []uint16{1}}))
	require.Len(t, got, 1)
}

func TestReopenRebuildsFromManifest(t *testing.T) {
	dir := t.TempDir()
	sign := newSigner(t, 2)

	s, err := Open(dir)
	require.NoError(t, err)
	ev := mkEvent(t, sign, 1, 100, "persisted")
	s.Store(ev, nil)
	require.NoError(t, s.Close())

	_, err = os.Stat(filepath.Join(dir, "index.msgpack"))
	require.NoError(t, err, "manifest should have been written")

	reopened, err := Open(dir)
	require.NoError(t, err)
	got := reopened.Query(filters.New(&filter.F{Kinds: []uint16{1}}))
	require.Len(t, got, 1)
	require.Equal(t, ev.IdString(), got[0].IdString())
}

func TestReopenWithoutManifestRebuildsFromDirectory(t *testing.T) {
	dir := t.TempDir()
	sign := newSigner(t, 3)

	s, err := Open(dir)
	require.NoError(t, err)
	ev := mkEvent(t, sign, 1, 100, "no-manifest")
	s.Store(ev, nil)
	require.NoError(t, os.Remove(filepath.Join(dir, "index.msgpack")))

	reopened, err := Open(dir)
	require.NoError(t, err)
	got := reopened.Query(filters.New(&filter.F{Kinds: []uint16{1}}))
	require.Len(t, got, 1)
}

func TestUnpublishedQueuePersists(t *testing.T) {
	dir := t.TempDir()
	sign := newSigner(t, 4)
	ev := mkEvent(t, sign, 1, 100, "queued")

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.AddUnpublished(ev))

	reopened, err := Open(dir)
	require.NoError(t, err)
	pending, err := reopened.GetUnpublished()
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, reopened.MarkPublished(ev.IdString()))
	pending, err = reopened.GetUnpublished()
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestNip05RoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	require.NoError(t, s.StoreNip05("bob@example.com", "abc123", []string{"wss://relay.example/"}))
	pk, relays, ok := s.LookupNip05("bob@example.com")
	require.True(t, ok)
	require.Equal(t, "abc123", pk)
	require.Equal(t, []string{"wss://relay.example/"}, relays)

	reopened, err := Open(dir)
	require.NoError(t, err)
	pk, _, ok = reopened.LookupNip05("bob@example.com")
	require.True(t, ok)
	require.Equal(t, "abc123", pk)
}

func TestEphemeralNotPersisted(t *testing.T) {
	dir := t.TempDir()
	sign := newSigner(t, 5)
	ev := mkEvent(t, sign, 20000, 100, "ping")

	s, err := Open(dir)
	require.NoError(t, err)
	s.Store(ev, nil)

	path := filepath.Join(dir, "events", ev.IdString()[:2], ev.IdString()+".json")
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}
