// Package cache defines the cache contract shared by every backing store
// (memory, filestore, badgerstore): query-by-filter, store-with-filter,
// profile lookup, and an unpublished-event queue. The subscription manager
// uses Query and Store and the publish pipeline uses Store; nothing in this
// module calls the unpublished-event operations.
package cache

import (
	"nostrkit.dev/encoders/filters"
	"nostrkit.dev/event"
)

// I is the contract every cache backend implements.
type I interface {
	// Query returns every cached event matching any filter in f.
	Query(f *filters.S) []*event.E
	// Store records ev, attaching f (the filters active when it arrived)
	// so the backend can maintain whatever secondary indices it keeps.
	// Replaceable/parameterized-replaceable semantics (§3) are applied
	// here: storing an older event for an already-seen tag_address is a
	// no-op.
	Store(ev *event.E, f *filters.S)

	// Profile returns the cached kind-0 metadata event for pubkey, and
	// whether the cache entry is still within its TTL.
	Profile(pubkey string) (ev *event.E, fresh bool)

	// AddUnpublished enqueues an event that failed to publish anywhere,
	// for later retry.
	AddUnpublished(ev *event.E) error
	// GetUnpublished returns every event still awaiting successful
	// publish.
	GetUnpublished() ([]*event.E, error)
	// MarkPublished removes id from the unpublished queue.
	MarkPublished(id string) error

	// Close releases any resources (open files, database handles) held by
	// the backend.
	Close() error
}
