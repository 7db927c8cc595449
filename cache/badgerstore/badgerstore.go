// Package badgerstore is the embedded, transactional cache.I
// implementation built on github.com/dgraph-io/badger/v4 — the teacher's
// own production event store engine (database/database.go) — offered as a
// drop-in alternative to cache/filestore for applications that want
// persistent caching without managing a directory of loose JSON files.
package badgerstore

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"

	"nostrkit.dev/cache"
	"nostrkit.dev/encoders/filters"
	"nostrkit.dev/event"
	"nostrkit.dev/internal/log"
	"nostrkit.dev/nosterr"
)

var _ cache.I = (*Store)(nil)

// DefaultProfileTTL matches cache/memory's default profile freshness
// window.
const DefaultProfileTTL = time.Hour

const (
	prefixEvent   = "ev:"
	prefixAddr    = "addr:"
	prefixFetched = "fetch:"
	prefixUnpub   = "up:"
)

// Store is the badger-backed cache.I implementation.
type Store struct {
	db         *badger.DB
	profileTTL time.Duration
}

// Open opens (creating if absent) a badger database rooted at dataDir,
// tuned the way the teacher tunes its production store.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, nosterr.Wrap(nosterr.CacheUnavailable, "badgerstore: mkdir", err)
	}
	opts := badger.DefaultOptions(dataDir)
	opts.Logger = nil
	opts.CompactL0OnClose = true
	db, err := badger.Open(opts)
	if err != nil {
		return nil, nosterr.Wrap(nosterr.CacheUnavailable, "badgerstore: open", err)
	}
	return &Store{db: db, profileTTL: DefaultProfileTTL}, nil
}

// OpenWithTTL is Open with an explicit profile freshness window.
func OpenWithTTL(dataDir string, ttl time.Duration) (*Store, error) {
	s, err := Open(filepath.Clean(dataDir))
	if err != nil {
		return nil, err
	}
	s.profileTTL = ttl
	return s, nil
}

// Query scans every cached event, returning those matching any filter in
// f, newest first, applying the smallest present Limit.
func (s *Store) Query(f *filters.S) []*event.E {
	var out event.S
	_ = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixEvent)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				ev := event.New()
				if _, uerr := ev.Unmarshal(val); uerr != nil {
					return nil
				}
				if f.Matches(ev) {
					out = append(out, ev)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	sortNewestFirst(out)
	if limit := smallestLimit(f); limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func smallestLimit(f *filters.S) int {
	limit := -1
	for _, m := range f.F {
		if m.Limit != nil && (limit < 0 || *m.Limit < limit) {
			limit = *m.Limit
		}
	}
	return limit
}

func sortNewestFirst(s event.S) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s.Less(j, j-1); j-- {
			s.Swap(j, j-1)
		}
	}
}

// Store writes ev in its own transaction, applying replaceable-shadowing
// against the addr index before committing. Ephemeral events are dropped.
func (s *Store) Store(ev *event.E, f *filters.S) {
	if ev == nil || ev.IsEphemeral() {
		return
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		if ev.IsReplaceable() || ev.IsParameterizedReplaceable() {
			addrKey := []byte(prefixAddr + ev.TagAddress())
			if item, err := txn.Get(addrKey); err == nil {
				var prevID string
				if verr := item.Value(func(val []byte) error {
					prevID = string(val)
					return nil
				}); verr != nil {
					return verr
				}
				if prevItem, perr := txn.Get([]byte(prefixEvent + prevID)); perr == nil {
					var prevCreated int64
					_ = prevItem.Value(func(val []byte) error {
						pev := event.New()
						if _, uerr := pev.Unmarshal(val); uerr == nil {
							prevCreated = pev.CreatedAt.I64()
						}
						return nil
					})
					if prevCreated >= ev.CreatedAt.I64() {
						return nil
					}
					if err := txn.Delete([]byte(prefixEvent + prevID)); err != nil {
						return err
					}
				}
			} else if err != badger.ErrKeyNotFound {
				return err
			}
			if err := txn.Set(addrKey, []byte(ev.IdString())); err != nil {
				return err
			}
		}
		if err := txn.Set([]byte(prefixEvent+ev.IdString()), ev.Marshal(nil)); err != nil {
			return err
		}
		if ev.Kind.K == 0 {
			var ts [8]byte
			binary.BigEndian.PutUint64(ts[:], uint64(time.Now().Unix()))
			if err := txn.Set([]byte(prefixFetched+ev.PubKeyString()), ts[:]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.W.F("badgerstore: store %s: %v", ev.IdString(), err)
	}
}

// Profile returns the cached kind-0 event for pubkey and whether it was
// stored within the profile freshness TTL.
func (s *Store) Profile(pubkey string) (*event.E, bool) {
	var ev *event.E
	var fetchedAt int64
	_ = s.db.View(func(txn *badger.Txn) error {
		addrItem, err := txn.Get([]byte(prefixAddr + "0:" + pubkey))
		if err != nil {
			return nil
		}
		var id string
		if verr := addrItem.Value(func(val []byte) error { id = string(val); return nil }); verr != nil {
			return verr
		}
		evItem, err := txn.Get([]byte(prefixEvent + id))
		if err != nil {
			return nil
		}
		if verr := evItem.Value(func(val []byte) error {
			e := event.New()
			if _, uerr := e.Unmarshal(val); uerr == nil {
				ev = e
			}
			return nil
		}); verr != nil {
			return verr
		}
		fItem, err := txn.Get([]byte(prefixFetched + pubkey))
		if err != nil {
			return nil
		}
		return fItem.Value(func(val []byte) error {
			if len(val) == 8 {
				fetchedAt = int64(binary.BigEndian.Uint64(val))
			}
			return nil
		})
	})
	if ev == nil {
		return nil, false
	}
	fresh := fetchedAt != 0 && time.Since(time.Unix(fetchedAt, 0)) < s.profileTTL
	return ev, fresh
}

// AddUnpublished enqueues ev for later publish retry.
func (s *Store) AddUnpublished(ev *event.E) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixUnpub+ev.IdString()), ev.Marshal(nil))
	})
}

// GetUnpublished returns every event still awaiting successful publish.
func (s *Store) GetUnpublished() ([]*event.E, error) {
	var out []*event.E
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixUnpub)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				ev := event.New()
				if _, uerr := ev.Unmarshal(val); uerr != nil {
					return nil
				}
				out = append(out, ev)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

// MarkPublished removes id from the unpublished queue.
func (s *Store) MarkPublished(id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(prefixUnpub + id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

// Close flushes and closes the underlying badger database.
func (s *Store) Close() error { return s.db.Close() }
