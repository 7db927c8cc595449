// Package tag implements a single nostr tag: an ordered sequence of strings,
// the first element naming the tag.
package tag

import "nostrkit.dev/encoders/text"

// T is a single tag: field[0] is the name, the rest are positional values.
type T struct {
	Field [][]byte
}

// New builds a tag from string values.
func New(s ...string) *T {
	f := make([][]byte, len(s))
	for i := range s {
		f[i] = []byte(s[i])
	}
	return &T{Field: f}
}

// NewFromBytes builds a tag from byte-slice values (no copy).
func NewFromBytes(b ...[]byte) *T { return &T{Field: b} }

// Len returns the number of elements in the tag.
func (t *T) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Field)
}

// Key returns the tag name (element 0), or "" if empty.
func (t *T) Key() string {
	if t.Len() == 0 {
		return ""
	}
	return string(t.Field[0])
}

// Value returns element 1 (the conventional "value" position), or "" if
// absent.
func (t *T) Value() string {
	if t.Len() < 2 {
		return ""
	}
	return string(t.Field[1])
}

// Marker returns element 3 (used for e-tag reply markers), or "" if absent.
func (t *T) Marker() string {
	if t.Len() < 4 {
		return ""
	}
	return string(t.Field[3])
}

// ToStrings renders the tag as a []string.
func (t *T) ToStrings() []string {
	out := make([]string, t.Len())
	for i, f := range t.Field {
		out[i] = string(f)
	}
	return out
}

// Clone returns a deep copy of the tag.
func (t *T) Clone() *T {
	f := make([][]byte, len(t.Field))
	for i, v := range t.Field {
		cp := make([]byte, len(v))
		copy(cp, v)
		f[i] = cp
	}
	return &T{Field: f}
}

// Equal reports whether two tags carry identical fields in the same order.
func (t *T) Equal(o *T) bool {
	if t.Len() != o.Len() {
		return false
	}
	for i := range t.Field {
		if string(t.Field[i]) != string(o.Field[i]) {
			return false
		}
	}
	return true
}

// Marshal appends the tag as a minified JSON array to dst.
func (t *T) Marshal(dst []byte) []byte {
	dst = append(dst, '[')
	for i, f := range t.Field {
		dst = text.AppendQuote(dst, f, text.NostrEscape)
		if i != len(t.Field)-1 {
			dst = append(dst, ',')
		}
	}
	dst = append(dst, ']')
	return dst
}

// Unmarshal reads a tag encoded as a JSON array of strings.
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
		var v []byte
		if v, r, err = text.UnmarshalQuoted(r); err != nil {
			return
		}
		t.Field = append(t.Field, v)
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

func (e *unexpectedErr) Error() string { return "tag: unexpected end of input" }
