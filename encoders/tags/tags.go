// Package tags implements an ordered collection of tag.T, as carried by an
// event's Tags field.
package tags

import "nostrkit.dev/encoders/tag"

// T is an ordered list of tags.
type T struct {
	T []*tag.T
}

// New builds an empty tag list.
func New(t ...*tag.T) *T { return &T{T: t} }

// NewWithCap builds an empty tag list with capacity reserved.
func NewWithCap(c int) *T { return &T{T: make([]*tag.T, 0, c)} }

// Len returns the number of tags.
func (t *T) Len() int {
	if t == nil {
		return 0
	}
	return len(t.T)
}

// AppendTags appends tags to the list.
func (t *T) AppendTags(tgs ...*tag.T) { t.T = append(t.T, tgs...) }

// GetFirst returns the first tag whose Key matches name, or nil.
func (t *T) GetFirst(name string) *tag.T {
	for _, tg := range t.T {
		if tg.Key() == name {
			return tg
		}
	}
	return nil
}

// GetAll returns every tag whose Key matches name.
func (t *T) GetAll(name string) []*tag.T {
	var out []*tag.T
	for _, tg := range t.T {
		if tg.Key() == name {
			out = append(out, tg)
		}
	}
	return out
}

// ContainsValue reports whether any tag named name carries value as its
// second element.
func (t *T) ContainsValue(name, value string) bool {
	for _, tg := range t.T {
		if tg.Key() == name && tg.Value() == value {
			return true
		}
	}
	return false
}

// ToStringsSlice renders the tag list as [][]string.
func (t *T) ToStringsSlice() [][]string {
	out := make([][]string, t.Len())
	for i, tg := range t.T {
		out[i] = tg.ToStrings()
	}
	return out
}

// Clone returns a deep copy of the tag list.
func (t *T) Clone() *T {
	out := make([]*tag.T, t.Len())
	for i, tg := range t.T {
		out[i] = tg.Clone()
	}
	return &T{T: out}
}

// Marshal appends the tag list as a minified JSON array of arrays to dst.
func (t *T) Marshal(dst []byte) []byte {
	dst = append(dst, '[')
	for i, tg := range t.T {
		dst = tg.Marshal(dst)
		if i != len(t.T)-1 {
			dst = append(dst, ',')
		}
	}
	dst = append(dst, ']')
	return dst
}

// MarshalWithWhitespace appends the tag list with one tag per line, each
// indented two tabs, and the closing bracket of a non-empty list on its own
// line indented one tab.
func (t *T) MarshalWithWhitespace(dst []byte) []byte {
	dst = append(dst, '[')
	for i, tg := range t.T {
		dst = append(dst, '\n', '\t', '\t')
		dst = tg.Marshal(dst)
		if i != len(t.T)-1 {
			dst = append(dst, ',')
		}
	}
	if t.Len() > 0 {
		dst = append(dst, '\n', '\t')
	}
	dst = append(dst, ']')
	return dst
}

// Unmarshal reads a tag list encoded as a JSON array of arrays of strings.
func (t *T) Unmarshal(b []byte) (rem []byte, err error) {
	r := b
	for len(r) > 0 && isWS(r[0]) {
		r = r[1:]
	}
	if len(r) == 0 || r[0] != '[' {
		err = errUnexpected
		return
	}
	r = r[1:]
	for {
		for len(r) > 0 && isWS(r[0]) {
			r = r[1:]
		}
		if len(r) == 0 {
			err = errUnexpected
			return
		}
		if r[0] == ']' {
			rem = r[1:]
			return
		}
		tg := &tag.T{}
		if r, err = tg.Unmarshal(r); err != nil {
			return
		}
		t.T = append(t.T, tg)
		for len(r) > 0 && isWS(r[0]) {
			r = r[1:]
		}
		if len(r) > 0 && r[0] == ',' {
			r = r[1:]
		}
	}
}

func isWS(b byte) bool { return b == ' ' || b == '\t' || b == '\n' || b == '\r' }

var errUnexpected = &unexpectedErr{}

type unexpectedErr struct{}

func (e *unexpectedErr) Error() string { return "tags: unexpected end of input" }
