// Package filestore is the file-backed reference cache.I implementation
// (spec.md §6 persisted state layout): one JSON file per event under
// events/<first-two-hex>/<id>.json, one per profile under
// profiles/<first-two-hex>/<pubkey>.json, plus nip05.json, unpublished.json
// and meta.json. A cache/memory.Store mirrors the directory in RAM for
// Query/Profile, kept warm either by replaying an index.msgpack manifest
// (via vmihailenco/msgpack/v5, the teacher's own dependency for its
// subscriptions store, database/subscriptions.go) or, failing that, by
// a full directory walk.
package filestore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"nostrkit.dev/cache"
	"nostrkit.dev/cache/memory"
	"nostrkit.dev/encoders/filters"
	"nostrkit.dev/event"
	"nostrkit.dev/internal/log"
	"nostrkit.dev/utils/apputil"
)

var _ cache.I = (*Store)(nil)

// formatVersion is bumped whenever the on-disk layout changes incompatibly;
// an index.msgpack written by an older version is ignored, not trusted.
const formatVersion = 1

type metaFile struct {
	Version        int   `json:"version"`
	CompactedAtSec int64 `json:"compacted_at"`
}

type nip05Entry struct {
	Pubkey string   `json:"pubkey"`
	Relays []string `json:"relays"`
}

// manifest is the index.msgpack payload: enough to reopen every known event
// and profile file directly, skipping a recursive directory walk.
type manifest struct {
	Version  int      `msgpack:"version"`
	EventIDs []string `msgpack:"event_ids"`
}

// Store is the file-backed cache.I implementation.
type Store struct {
	mu  sync.Mutex
	dir string
	mem *memory.Store

	nip05       map[string]nip05Entry
	unpublished map[string]*event.E
}

// Open opens (creating if absent) a filestore rooted at dir, warming its
// in-memory mirror from index.msgpack when present and current, falling
// back to a full directory rebuild otherwise.
func Open(dir string) (*Store, error) {
	for _, sub := range []string{"events", "profiles"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, err
		}
	}
	s := &Store{
		dir:         dir,
		mem:         memory.New(),
		nip05:       make(map[string]nip05Entry),
		unpublished: make(map[string]*event.E),
	}
	if err := s.ensureMeta(); err != nil {
		return nil, err
	}
	s.loadNip05()
	s.loadUnpublished()
	if err := s.loadFromManifest(); err != nil {
		log.D.F("filestore: index.msgpack unusable (%v), rebuilding from directory", err)
		if err := s.rebuildFromDirectory(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) ensureMeta() error {
	p := filepath.Join(s.dir, "meta.json")
	if apputil.FileExists(p) {
		return nil
	}
	b, err := json.Marshal(metaFile{Version: formatVersion})
	if err != nil {
		return err
	}
	if err := apputil.EnsureDir(p); err != nil {
		return err
	}
	return os.WriteFile(p, b, 0o644)
}

func shard(idOrPubkeyHex string) string {
	if len(idOrPubkeyHex) < 2 {
		return "00"
	}
	return idOrPubkeyHex[:2]
}

func (s *Store) eventPath(idHex string) string {
	return filepath.Join(s.dir, "events", shard(idHex), idHex+".json")
}

func (s *Store) profilePath(pubkeyHex string) string {
	return filepath.Join(s.dir, "profiles", shard(pubkeyHex), pubkeyHex+".json")
}

func (s *Store) manifestPath() string { return filepath.Join(s.dir, "index.msgpack") }
func (s *Store) nip05Path() string    { return filepath.Join(s.dir, "nip05.json") }
func (s *Store) unpublishedPath() string { return filepath.Join(s.dir, "unpublished.json") }

func (s *Store) loadFromManifest() error {
	b, err := os.ReadFile(s.manifestPath())
	if err != nil {
		return err
	}
	var m manifest
	if err := msgpack.Unmarshal(b, &m); err != nil {
		return err
	}
	if m.Version != formatVersion {
		return &wrongVersionErr{got: m.Version}
	}
	for _, id := range m.EventIDs {
		ev, err := s.readEvent(id)
		if err != nil {
			log.D.F("filestore: dropping unreadable manifest entry %s: %v", id, err)
			continue
		}
		s.mem.Store(ev, nil)
	}
	return nil
}

type wrongVersionErr struct{ got int }

func (e *wrongVersionErr) Error() string { return "filestore: manifest format version mismatch" }

func (s *Store) rebuildFromDirectory() error {
	root := filepath.Join(s.dir, "events")
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if filepath.Ext(path) != ".json" {
			return nil
		}
		b, err := os.ReadFile(path)
		if err != nil {
			log.D.F("filestore: skipping unreadable %s: %v", path, err)
			return nil
		}
		ev := event.New()
		if _, err := ev.Unmarshal(b); err != nil {
			log.D.F("filestore: skipping corrupt %s: %v", path, err)
			return nil
		}
		s.mem.Store(ev, nil)
		return nil
	})
}

func (s *Store) readEvent(idHex string) (*event.E, error) {
	b, err := os.ReadFile(s.eventPath(idHex))
	if err != nil {
		return nil, err
	}
	ev := event.New()
	if _, err := ev.Unmarshal(b); err != nil {
		return nil, err
	}
	return ev, nil
}

// Query delegates to the in-memory mirror, which already applies
// replaceable-shadowing and limit handling.
func (s *Store) Query(f *filters.S) []*event.E {
	return s.mem.Query(f)
}

// Store writes ev to disk (skipped for ephemeral kinds, which mem.Store
// also declines to index) and refreshes the manifest.
func (s *Store) Store(ev *event.E, f *filters.S) {
	if ev == nil || ev.IsEphemeral() {
		return
	}
	s.mem.Store(ev, f)

	s.mu.Lock()
	defer s.mu.Unlock()

	idHex := ev.IdString()
	path := s.eventPath(idHex)
	if err := apputil.EnsureDir(path); err != nil {
		log.W.F("filestore: mkdir for %s: %v", path, err)
		return
	}
	if err := os.WriteFile(path, ev.Marshal(nil), 0o644); err != nil {
		log.W.F("filestore: write %s: %v", path, err)
		return
	}
	if ev.Kind.K == 0 {
		ppath := s.profilePath(ev.PubKeyString())
		if err := apputil.EnsureDir(ppath); err != nil {
			log.W.F("filestore: mkdir for %s: %v", ppath, err)
		} else if err := os.WriteFile(ppath, ev.Marshal(nil), 0o644); err != nil {
			log.W.F("filestore: write %s: %v", ppath, err)
		}
	}
	s.writeManifestLocked()
}

// writeManifestLocked must be called with s.mu held.
func (s *Store) writeManifestLocked() {
	m := manifest{Version: formatVersion, EventIDs: s.mem.AllIDs()}
	b, err := msgpack.Marshal(&m)
	if err != nil {
		log.W.F("filestore: marshal manifest: %v", err)
		return
	}
	if err := os.WriteFile(s.manifestPath(), b, 0o644); err != nil {
		log.W.F("filestore: write manifest: %v", err)
	}
}

// Profile delegates to the in-memory mirror for TTL semantics. The on-disk
// profiles/ files are written but never read back; a reopened store
// repopulates profiles from the kind-0 events under events/.
func (s *Store) Profile(pubkey string) (*event.E, bool) { return s.mem.Profile(pubkey) }

// AddUnpublished enqueues ev and persists the queue to unpublished.json.
func (s *Store) AddUnpublished(ev *event.E) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unpublished[ev.IdString()] = ev
	return s.saveUnpublishedLocked()
}

// GetUnpublished returns every event still awaiting successful publish.
func (s *Store) GetUnpublished() ([]*event.E, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*event.E, 0, len(s.unpublished))
	for _, ev := range s.unpublished {
		out = append(out, ev)
	}
	return out, nil
}

// MarkPublished removes id from the unpublished queue and persists the
// change.
func (s *Store) MarkPublished(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.unpublished, id)
	return s.saveUnpublishedLocked()
}

func (s *Store) saveUnpublishedLocked() error {
	raw := make(map[string]json.RawMessage, len(s.unpublished))
	for id, ev := range s.unpublished {
		raw[id] = ev.Marshal(nil)
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(s.unpublishedPath(), b, 0o644)
}

func (s *Store) loadUnpublished() {
	b, err := os.ReadFile(s.unpublishedPath())
	if err != nil {
		return
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		log.D.F("filestore: unpublished.json corrupt, ignoring: %v", err)
		return
	}
	for id, data := range raw {
		ev := event.New()
		if _, err := ev.Unmarshal(data); err != nil {
			continue
		}
		s.unpublished[id] = ev
	}
}

// LookupNip05 returns a previously resolved NIP-05 identifier's pubkey and
// relay hints, if cached. Not part of cache.I; a convenience the outbox
// tracker's NIP-05 fallback path may use directly against a *Store.
func (s *Store) LookupNip05(identifier string) (pubkey string, relays []string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, found := s.nip05[identifier]
	if !found {
		return "", nil, false
	}
	return e.Pubkey, e.Relays, true
}

// StoreNip05 persists a resolved NIP-05 identifier to nip05.json.
func (s *Store) StoreNip05(identifier, pubkey string, relays []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nip05[identifier] = nip05Entry{Pubkey: pubkey, Relays: relays}
	b, err := json.Marshal(s.nip05)
	if err != nil {
		return err
	}
	return os.WriteFile(s.nip05Path(), b, 0o644)
}

func (s *Store) loadNip05() {
	b, err := os.ReadFile(s.nip05Path())
	if err != nil {
		return
	}
	if err := json.Unmarshal(b, &s.nip05); err != nil {
		log.D.F("filestore: nip05.json corrupt, ignoring: %v", err)
		s.nip05 = make(map[string]nip05Entry)
	}
}

// Close is a no-op: every write is synchronous, there is nothing buffered
// to flush.
func (s *Store) Close() error { return nil }
