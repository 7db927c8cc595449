// Package filters implements a disjunctive set of filter.F: an event matches
// the set iff it matches at least one member.
package filters

import (
	"nostrkit.dev/encoders/filter"
	"nostrkit.dev/event"
)

// S is an ordered set of filters, disjunctive across members.
type S struct {
	F []*filter.F
}

// New builds a filter set from the given filters.
func New(f ...*filter.F) *S { return &S{F: f} }

// Len returns the number of member filters.
func (s *S) Len() int {
	if s == nil {
		return 0
	}
	return len(s.F)
}

// Matches reports whether ev matches any member filter.
func (s *S) Matches(ev *event.E) bool {
	for _, f := range s.F {
		if f.Matches(ev) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (s *S) Clone() *S {
	out := make([]*filter.F, len(s.F))
	for i, f := range s.F {
		out[i] = f.Clone()
	}
	return &S{F: out}
}

// Marshal appends the filter set as a minified JSON array to dst.
func (s *S) Marshal(dst []byte) []byte {
	b := append(dst, '[')
	for i, f := range s.F {
		if i > 0 {
			b = append(b, ',')
		}
		b = f.Marshal(b)
	}
	b = append(b, ']')
	return b
}
