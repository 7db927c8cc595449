// Package timestamp implements the created_at field: a unix-second instant
// that round-trips through the wire as a bare JSON integer.
package timestamp

import (
	"strconv"
	"time"
)

// T is a unix-second timestamp.
type T struct {
	t int64
}

// New wraps a raw unix-second value.
func New(t int64) *T { return &T{t: t} }

// FromUnix is an alias of New, matching call sites that read better that way.
func FromUnix(t int64) *T { return &T{t: t} }

// Now returns the current time as a T.
func Now() *T { return &T{t: time.Now().Unix()} }

// I64 returns the raw unix-second value.
func (t *T) I64() int64 {
	if t == nil {
		return 0
	}
	return t.t
}

// Time returns the value as a time.Time in UTC.
func (t *T) Time() time.Time { return time.Unix(t.I64(), 0).UTC() }

// Marshal appends the decimal unix value to dst.
func (t *T) Marshal(dst []byte) []byte {
	return strconv.AppendInt(dst, t.I64(), 10)
}

// Unmarshal reads a bare decimal integer from the start of b.
func (t *T) Unmarshal(b []byte) (rem []byte, err error) {
	i := 0
	for i < len(b) && (b[i] == '-' || (b[i] >= '0' && b[i] <= '9')) {
		i++
	}
	var v int64
	if v, err = strconv.ParseInt(string(b[:i]), 10, 64); err != nil {
		return
	}
	t.t = v
	rem = b[i:]
	return
}

// Before reports whether t happens before o.
func (t *T) Before(o *T) bool { return t.I64() < o.I64() }

// After reports whether t happens after o.
func (t *T) After(o *T) bool { return t.I64() > o.I64() }
