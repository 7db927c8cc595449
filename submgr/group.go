package submgr

import (
	"sync"

	"nostrkit.dev/encoders/filter"
	"nostrkit.dev/encoders/filters"
)

// group is a relay-level subscription: a coalesced view of one or more
// logical subscriptions whose filters were merged via
// filter.UnionOnSameShape.
type group struct {
	mu      sync.Mutex
	id      string
	relay   string
	filters []*filter.F
	members []*Logical
	eosed   bool
}

// tryJoin attempts to fold every filter of candidate into the group's
// filter set via filter.UnionOnSameShape, one group filter merged with one
// candidate filter at a time. It mutates nothing on failure.
func (g *group) tryJoin(candidate *filters.S, maxFilters int) ([]*filter.F, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.eosed {
		return nil, false
	}
	merged := make([]*filter.F, len(g.filters))
	copy(merged, g.filters)
	for _, cf := range candidate.F {
		joinedIdx := -1
		for i, gf := range merged {
			if u, err := filter.UnionOnSameShape(gf, cf); err == nil {
				merged[i] = u
				joinedIdx = i
				break
			}
		}
		if joinedIdx < 0 {
			if len(merged) >= maxFilters {
				return nil, false
			}
			merged = append(merged, cf.Clone())
		}
	}
	return merged, true
}

func (g *group) commit(merged []*filter.F, member *Logical) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.filters = merged
	g.members = append(g.members, member)
}

func (g *group) filterSet() *filters.S {
	g.mu.Lock()
	defer g.mu.Unlock()
	return &filters.S{F: append([]*filter.F{}, g.filters...)}
}

func (g *group) memberList() []*Logical {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*Logical{}, g.members...)
}

// removeMember drops sub from the group, reporting how many members remain.
func (g *group) removeMember(sub *Logical) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := g.members[:0]
	for _, m := range g.members {
		if m != sub {
			out = append(out, m)
		}
	}
	g.members = out
	return len(g.members)
}

func (g *group) markEosed() {
	g.mu.Lock()
	g.eosed = true
	g.mu.Unlock()
}
