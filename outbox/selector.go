package outbox

import (
	"nostrkit.dev/encoders/filters"
	"nostrkit.dev/xctx"
)

// NDKRelaySelector produces the final relay set for a read or a write,
// combining Tracker lookups with NDKRelayRanker's fan-out caps. It
// implements submgr.OutboxSelector so a *NDKRelaySelector can be handed to
// submgr.NewManager directly.
type NDKRelaySelector struct {
	tracker *Tracker
	ranker  *NDKRelayRanker
}

// NewSelector builds a selector over tracker and ranker.
func NewSelector(tracker *Tracker, ranker *NDKRelayRanker) *NDKRelaySelector {
	return &NDKRelaySelector{tracker: tracker, ranker: ranker}
}

// RelaysFor implements submgr.OutboxSelector: for filters constrained by
// authors, it targets each author's write relays (via ReadRelaysFor); for
// filters without authors it returns nil and selects no relays.
func (s *NDKRelaySelector) RelaysFor(f *filters.S) []string {
	authors := distinctAuthors(f)
	if len(authors) > 0 {
		return s.ReadRelaysFor(xctx.Bg(), authors)
	}
	return nil
}

// ReadRelaysFor returns the union of every author's write relays (where a
// client fetching their content should look), ranked and capped per
// author, per spec.md §4.10: "for fetching, union of every author's write
// relays".
func (s *NDKRelaySelector) ReadRelaysFor(ctx xctx.T, authors []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, a := range authors {
		_, write := s.tracker.GetRelaysFor(ctx, a)
		for _, w := range write {
			s.ranker.Observe(w)
		}
		for _, r := range s.ranker.TopK(write, s.ranker.cfg.ReadCap) {
			if !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
	}
	return out
}

// WriteRelaysFor returns the union of the author's write relays and every
// p-tagged recipient's read relays, per spec.md §4.8/§4.10: "union of
// (author's write relays, p-tag recipients' read relays), ranked and
// capped".
func (s *NDKRelaySelector) WriteRelaysFor(ctx xctx.T, author string, recipients []string) []string {
	seen := make(map[string]bool)
	var out []string
	_, write := s.tracker.GetRelaysFor(ctx, author)
	for _, r := range s.ranker.TopK(write, s.ranker.cfg.WriteCap) {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	for _, p := range recipients {
		read, _ := s.tracker.GetRelaysFor(ctx, p)
		for _, r := range s.ranker.TopK(read, s.ranker.cfg.ReadCap) {
			if !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
	}
	return out
}

func distinctAuthors(f *filters.S) []string {
	if f == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, m := range f.F {
		for _, a := range m.Authors {
			if !seen[a] {
				seen[a] = true
				out = append(out, a)
			}
		}
	}
	return out
}
