// Package filter implements the nostr filter: a conjunctive predicate over
// events used in REQ messages, plus the comparison/merge operations the
// subscription manager and cache need (specificity ordering, intersection,
// same-shape union) on top of plain matching.
package filter

import (
	"sort"
	"strconv"

	"nostrkit.dev/encoders/text"
	"nostrkit.dev/event"
	"nostrkit.dev/nosterr"
)

// F is a filter: every populated field narrows the match; an empty filter
// matches everything.
type F struct {
	Ids     []string
	Authors []string
	Kinds   []uint16
	// Tags maps a single-letter tag name (without the leading '#') to the
	// set of acceptable values, e.g. {"e": {"<id>"}, "p": {"<pubkey>"}}.
	Tags  map[string][]string
	Since *int64
	Until *int64
	Limit *int
}

// New returns an empty filter.
func New() *F { return &F{} }

// Clone returns a deep copy.
func (f *F) Clone() *F {
	cp := &F{
		Ids:     append([]string{}, f.Ids...),
		Authors: append([]string{}, f.Authors...),
		Kinds:   append([]uint16{}, f.Kinds...),
	}
	if f.Tags != nil {
		cp.Tags = make(map[string][]string, len(f.Tags))
		for k, v := range f.Tags {
			cp.Tags[k] = append([]string{}, v...)
		}
	}
	if f.Since != nil {
		v := *f.Since
		cp.Since = &v
	}
	if f.Until != nil {
		v := *f.Until
		cp.Until = &v
	}
	if f.Limit != nil {
		v := *f.Limit
		cp.Limit = &v
	}
	return cp
}

// Sort canonicalizes field ordering (ids, authors, kinds, and every tag
// value set) so that structurally identical filters serialize identically,
// enabling Fingerprint-based deduplication.
func (f *F) Sort() {
	sort.Strings(f.Ids)
	sort.Strings(f.Authors)
	sort.Slice(f.Kinds, func(i, j int) bool { return f.Kinds[i] < f.Kinds[j] })
	for k := range f.Tags {
		sort.Strings(f.Tags[k])
	}
}

// Matches reports whether ev satisfies every populated field of f.
func (f *F) Matches(ev *event.E) bool {
	if len(f.Ids) > 0 && !containsStr(f.Ids, ev.IdString()) {
		return false
	}
	if len(f.Authors) > 0 && !containsStr(f.Authors, ev.PubKeyString()) {
		return false
	}
	if len(f.Kinds) > 0 && !containsKind(f.Kinds, ev.Kind.K) {
		return false
	}
	if f.Since != nil && ev.CreatedAt.I64() < *f.Since {
		return false
	}
	if f.Until != nil && ev.CreatedAt.I64() > *f.Until {
		return false
	}
	for name, values := range f.Tags {
		if !eventHasTagValue(ev, name, values) {
			return false
		}
	}
	return true
}

func eventHasTagValue(ev *event.E, name string, values []string) bool {
	for _, t := range ev.Tags.GetAll(name) {
		if containsStr(values, t.Value()) {
			return true
		}
	}
	return false
}

func containsStr(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsKind(list []uint16, k uint16) bool {
	for _, v := range list {
		if v == k {
			return true
		}
	}
	return false
}

// Equal reports whether two filters match exactly the same set of events
// (after Sort normalizes ordering).
func (f *F) Equal(o *F) bool {
	return string(f.Fingerprint()) == string(o.Fingerprint())
}

// Fingerprint returns a canonical byte representation suitable for
// deduplication/hashing: Sort then Marshal.
func (f *F) Fingerprint() []byte {
	cp := f.Clone()
	cp.Sort()
	return cp.Marshal(nil)
}

// Specificity scores a filter for cache-lookup prioritization: ids are most
// specific, then authors, then kinds, then tag constraints, then time
// bounds, then limit alone. Higher is more specific.
func (f *F) Specificity() int {
	score := 0
	if len(f.Ids) > 0 {
		score += 1000
	}
	if len(f.Authors) > 0 {
		score += 500
	}
	if len(f.Kinds) > 0 {
		score += 100
	}
	score += 10 * len(f.Tags)
	if f.Since != nil || f.Until != nil {
		score += 2
	}
	if f.Limit != nil {
		score += 1
	}
	return score
}

// ErrImpossible is returned by Intersect when the two filters can never
// match a common event.
var ErrImpossible = nosterr.New(nosterr.InvalidEventCode, "filters are mutually exclusive")

// Intersect returns the most constrained filter matching exactly
// match(a) AND match(b), or ErrImpossible when the set intersections are
// empty or since > until.
func Intersect(a, b *F) (*F, error) {
	out := New()
	var ok bool
	if out.Ids, ok = intersectOptional(a.Ids, b.Ids); !ok {
		return nil, ErrImpossible
	}
	if out.Authors, ok = intersectOptional(a.Authors, b.Authors); !ok {
		return nil, ErrImpossible
	}
	if out.Kinds, ok = intersectKinds(a.Kinds, b.Kinds); !ok {
		return nil, ErrImpossible
	}
	out.Since = maxTime(a.Since, b.Since)
	out.Until = minTime(a.Until, b.Until)
	if out.Since != nil && out.Until != nil && *out.Since > *out.Until {
		return nil, ErrImpossible
	}
	out.Tags = make(map[string][]string)
	for k, v := range a.Tags {
		out.Tags[k] = v
	}
	for k, bv := range b.Tags {
		if av, has := out.Tags[k]; has {
			merged, ok2 := intersectOptional(av, bv)
			if !ok2 {
				return nil, ErrImpossible
			}
			out.Tags[k] = merged
		} else {
			out.Tags[k] = bv
		}
	}
	out.Limit = minLimit(a.Limit, b.Limit)
	return out, nil
}

// intersectOptional intersects two "unset means unconstrained" string sets.
// ok is false only when both are set and the intersection is empty.
func intersectOptional(a, b []string) (out []string, ok bool) {
	if len(a) == 0 {
		return append([]string{}, b...), true
	}
	if len(b) == 0 {
		return append([]string{}, a...), true
	}
	for _, v := range a {
		if containsStr(b, v) {
			out = append(out, v)
		}
	}
	return out, len(out) > 0
}

func intersectKinds(a, b []uint16) (out []uint16, ok bool) {
	if len(a) == 0 {
		return append([]uint16{}, b...), true
	}
	if len(b) == 0 {
		return append([]uint16{}, a...), true
	}
	for _, v := range a {
		if containsKind(b, v) {
			out = append(out, v)
		}
	}
	return out, len(out) > 0
}

func maxTime(a, b *int64) *int64 {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if *a > *b {
		return a
	}
	return b
}

func minTime(a, b *int64) *int64 {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if *a < *b {
		return a
	}
	return b
}

func minLimit(a, b *int) *int {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if *a < *b {
		return a
	}
	return b
}

// UnionOnSameShape merges two filters into one when every field except at
// most one array-valued field agrees; the differing field is set to the
// element-wise union. Used by the subscription manager to coalesce REQs.
// Returns an error when the filters' shapes differ by more than one field.
func UnionOnSameShape(a, b *F) (*F, error) {
	if !sameScalars(a, b) {
		return nil, nosterr.New(nosterr.InvalidEventCode, "since/until/limit differ")
	}

	diffs := 0
	which := ""
	if !sameStrSet(a.Ids, b.Ids) {
		diffs++
		which = "ids"
	}
	if !sameStrSet(a.Authors, b.Authors) {
		diffs++
		which = "authors"
	}
	if !sameKindSet(a.Kinds, b.Kinds) {
		diffs++
		which = "kinds"
	}
	tagDiffKey, tagDiffers := diffTagShape(a.Tags, b.Tags)
	if tagDiffers {
		diffs++
		if tagDiffKey == "" {
			diffs++
		}
		which = "tags"
	}
	if diffs == 0 {
		return a.Clone(), nil
	}
	if diffs > 1 {
		return nil, nosterr.New(nosterr.InvalidEventCode, "filters differ in more than one field")
	}

	out := a.Clone()
	switch which {
	case "ids":
		out.Ids = unionStr(a.Ids, b.Ids)
	case "authors":
		out.Authors = unionStr(a.Authors, b.Authors)
	case "kinds":
		out.Kinds = unionKind(a.Kinds, b.Kinds)
	case "tags":
		out.Tags = make(map[string][]string, len(a.Tags))
		for k, v := range a.Tags {
			out.Tags[k] = v
		}
		out.Tags[tagDiffKey] = unionStr(a.Tags[tagDiffKey], b.Tags[tagDiffKey])
	}
	return out, nil
}

func sameScalars(a, b *F) bool {
	return eqInt64Ptr(a.Since, b.Since) && eqInt64Ptr(a.Until, b.Until) && eqIntPtr(a.Limit, b.Limit)
}

func eqInt64Ptr(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameStrSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string{}, a...)
	bs := append([]string{}, b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func sameKindSet(a, b []uint16) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]uint16{}, a...)
	bs := append([]uint16{}, b...)
	sort.Slice(as, func(i, j int) bool { return as[i] < as[j] })
	sort.Slice(bs, func(i, j int) bool { return bs[i] < bs[j] })
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

// diffTagShape compares two filters' tag maps, reporting whether exactly one
// tag letter's value set differs (returning that letter) - any more than
// that is reported as "differs" under an empty key, which the caller treats
// as a second diff and rejects.
func diffTagShape(a, b map[string][]string) (key string, differs bool) {
	keys := make(map[string]bool, len(a)+len(b))
	for k := range a {
		keys[k] = true
	}
	for k := range b {
		keys[k] = true
	}
	found := 0
	for k := range keys {
		if !sameStrSet(a[k], b[k]) {
			found++
			key = k
		}
	}
	switch found {
	case 0:
		return "", false
	case 1:
		return key, true
	default:
		return "", true // more than one differing tag letter: not same-shape
	}
}

func unionStr(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, v := range a {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, v := range b {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func unionKind(a, b []uint16) []uint16 {
	seen := make(map[uint16]bool, len(a)+len(b))
	var out []uint16
	for _, v := range a {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, v := range b {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// Marshal appends the filter as minified JSON to dst.
func (f *F) Marshal(dst []byte) []byte {
	b := append(dst, '{')
	first := true
	comma := func() {
		if !first {
			b = append(b, ',')
		}
		first = false
	}
	if len(f.Ids) > 0 {
		comma()
		b = text.JSONKey(b, []byte("ids"))
		b = marshalStrArr(b, f.Ids)
	}
	if len(f.Authors) > 0 {
		comma()
		b = text.JSONKey(b, []byte("authors"))
		b = marshalStrArr(b, f.Authors)
	}
	if len(f.Kinds) > 0 {
		comma()
		b = text.JSONKey(b, []byte("kinds"))
		b = append(b, '[')
		for i, k := range f.Kinds {
			if i > 0 {
				b = append(b, ',')
			}
			b = strconv.AppendUint(b, uint64(k), 10)
		}
		b = append(b, ']')
	}
	if f.Since != nil {
		comma()
		b = text.JSONKey(b, []byte("since"))
		b = strconv.AppendInt(b, *f.Since, 10)
	}
	if f.Until != nil {
		comma()
		b = text.JSONKey(b, []byte("until"))
		b = strconv.AppendInt(b, *f.Until, 10)
	}
	if f.Limit != nil {
		comma()
		b = text.JSONKey(b, []byte("limit"))
		b = strconv.AppendInt(b, int64(*f.Limit), 10)
	}
	tagKeys := make([]string, 0, len(f.Tags))
	for k := range f.Tags {
		tagKeys = append(tagKeys, k)
	}
	sort.Strings(tagKeys)
	for _, k := range tagKeys {
		comma()
		b = text.JSONKey(b, []byte("#"+k))
		b = marshalStrArr(b, f.Tags[k])
	}
	b = append(b, '}')
	return b
}

func marshalStrArr(dst []byte, s []string) []byte {
	dst = append(dst, '[')
	for i, v := range s {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = text.AppendQuote(dst, []byte(v), text.NostrEscape)
	}
	dst = append(dst, ']')
	return dst
}
