// Package kind implements the event kind field and its classification into
// regular, replaceable, ephemeral, and parameterized-replaceable ranges.
package kind

import "strconv"

// T is an event kind number.
type T struct{ K uint16 }

// New wraps a raw kind number.
func New(k uint16) *T { return &T{K: k} }

var (
	Metadata     = New(0)
	TextNote     = New(1)
	Contacts     = New(3)
	RelayListMetadata = New(10002)
)

// Marshal appends the decimal kind value to dst.
func (t *T) Marshal(dst []byte) []byte {
	return strconv.AppendUint(dst, uint64(t.K), 10)
}

// Unmarshal reads a bare decimal integer from the start of b.
func (t *T) Unmarshal(b []byte) (rem []byte, err error) {
	i := 0
	for i < len(b) && b[i] >= '0' && b[i] <= '9' {
		i++
	}
	var v uint64
	if v, err = strconv.ParseUint(string(b[:i]), 10, 16); err != nil {
		return
	}
	t.K = uint16(v)
	rem = b[i:]
	return
}

// IsReplaceable reports whether the kind follows "latest (pubkey,kind) wins"
// semantics: metadata (0), contacts (3), and 10000-19999.
func (t *T) IsReplaceable() bool {
	return t.K == 0 || t.K == 3 || (t.K >= 10000 && t.K < 20000)
}

// IsEphemeral reports whether the kind is never persisted past the session:
// 20000-29999.
func (t *T) IsEphemeral() bool {
	return t.K >= 20000 && t.K < 30000
}

// IsParameterizedReplaceable reports whether the kind's uniqueness key
// includes a `d` tag value: 30000-39999.
func (t *T) IsParameterizedReplaceable() bool {
	return t.K >= 30000 && t.K < 40000
}

// IsRegular reports whether the kind accumulates by id (none of the above).
func (t *T) IsRegular() bool {
	return !t.IsReplaceable() && !t.IsEphemeral() && !t.IsParameterizedReplaceable()
}

// Equal reports whether two kinds carry the same number.
func (t *T) Equal(o *T) bool {
	if t == nil || o == nil {
		return t == o
	}
	return t.K == o.K
}
