// Package text implements the small set of JSON string helpers shared by the
// encoders family: nostr-specific escaping for canonical serialization, and
// quoted/hex scanning helpers used when decoding wire messages by hand.
package text

import (
	"bytes"
	"io"
)

// JSONKey appends a quoted JSON object key followed by a colon.
func JSONKey(dst, key []byte) []byte {
	dst = append(dst, '"')
	dst = append(dst, key...)
	dst = append(dst, '"', ':')
	return dst
}

// NostrEscape appends src to dst as a JSON string body (without surrounding
// quotes), escaping exactly the characters the NIP-01 canonical serialization
// requires: the mandatory JSON escapes for `"` and `\`, the named escapes for
// \b \t \n \f \r, and \u00XX for other control characters below 0x20. `/` is
// never escaped.
func NostrEscape(dst, src []byte) []byte {
	for _, c := range src {
		switch {
		case c == '"':
			dst = append(dst, '\\', '"')
		case c == '\\':
			dst = append(dst, '\\', '\\')
		case c == '\b':
			dst = append(dst, '\\', 'b')
		case c == '\t':
			dst = append(dst, '\\', 't')
		case c == '\n':
			dst = append(dst, '\\', 'n')
		case c == '\f':
			dst = append(dst, '\\', 'f')
		case c == '\r':
			dst = append(dst, '\\', 'r')
		case c < 0x20:
			const hexdigits = "0123456789abcdef"
			dst = append(dst, '\\', 'u', '0', '0', hexdigits[c>>4], hexdigits[c&0xf])
		default:
			dst = append(dst, c)
		}
	}
	return dst
}

// AppendQuote appends a quoted string to dst, running enc over src to produce
// the body (enc is typically NostrEscape or hex.EncAppend).
func AppendQuote(dst, src []byte, enc func(dst, src []byte) []byte) []byte {
	dst = append(dst, '"')
	dst = enc(dst, src)
	dst = append(dst, '"')
	return dst
}

// UnmarshalQuoted reads a JSON-quoted string starting at a leading `"`,
// un-escaping it, and returns the unescaped bytes plus the remainder after
// the closing quote.
func UnmarshalQuoted(b []byte) (content, rem []byte, err error) {
	r := b
	for len(r) > 0 && isWhitespace(r[0]) {
		r = r[1:]
	}
	if len(r) == 0 || r[0] != '"' {
		err = io.ErrUnexpectedEOF
		return
	}
	r = r[1:]
	var out []byte
	for len(r) > 0 {
		c := r[0]
		if c == '"' {
			r = r[1:]
			content = out
			rem = r
			return
		}
		if c == '\\' && len(r) > 1 {
			switch r[1] {
			case '"':
				out = append(out, '"')
			case '\\':
				out = append(out, '\\')
			case '/':
				out = append(out, '/')
			case 'b':
				out = append(out, '\b')
			case 't':
				out = append(out, '\t')
			case 'n':
				out = append(out, '\n')
			case 'f':
				out = append(out, '\f')
			case 'r':
				out = append(out, '\r')
			case 'u':
				if len(r) >= 6 {
					var v int
					for i := 2; i < 6; i++ {
						v <<= 4
						v |= hexVal(r[i])
					}
					out = append(out, byte(v))
					r = r[4:]
				}
			default:
				out = append(out, r[1])
			}
			r = r[2:]
			continue
		}
		out = append(out, c)
		r = r[1:]
	}
	err = io.ErrUnexpectedEOF
	return
}

// UnmarshalHex reads a JSON-quoted hex string and decodes it.
func UnmarshalHex(b []byte) (out, rem []byte, err error) {
	var content []byte
	if content, rem, err = UnmarshalQuoted(b); err != nil {
		return
	}
	out = make([]byte, len(content)/2)
	_, err = hexDecode(out, content)
	return
}

func hexDecode(dst, src []byte) (int, error) {
	for i := 0; i < len(dst); i++ {
		hi := hexVal(src[i*2])
		lo := hexVal(src[i*2+1])
		dst[i] = byte(hi<<4 | lo)
	}
	return len(dst), nil
}

func hexVal(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	}
	return 0
}

func isWhitespace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// SkipToTheEnd advances past any trailing characters up to and including the
// `]` that closes the enclosing array, skipping nested arrays, and returns
// what follows it (nil when no such `]` is found).
func SkipToTheEnd(b []byte) (rem []byte, err error) {
	r := b
	depth := 0
	for i := 0; i < len(r); i++ {
		switch r[i] {
		case '[':
			depth++
		case ']':
			if depth == 0 {
				rem = r[i+1:]
				return
			}
			depth--
		}
	}
	rem = nil
	return
}

// UnmarshalHexArray decodes a JSON array of quoted hex strings, each
// expected to decode to exactly size bytes (size <= 0 means unchecked).
func UnmarshalHexArray(b []byte, size int) (out [][]byte, rem []byte, err error) {
	r := bytes.TrimLeft(b, " \t\n\r")
	if len(r) == 0 || r[0] != '[' {
		err = io.ErrUnexpectedEOF
		return
	}
	r = r[1:]
	for {
		r = bytes.TrimLeft(r, " \t\n\r")
		if len(r) == 0 {
			err = io.ErrUnexpectedEOF
			return
		}
		if r[0] == ']' {
			rem = r[1:]
			return
		}
		var h []byte
		if h, r, err = UnmarshalHex(r); err != nil {
			return
		}
		if size > 0 && len(h) != size {
			err = io.ErrUnexpectedEOF
			return
		}
		out = append(out, h)
		r = bytes.TrimLeft(r, " \t\n\r")
		if len(r) > 0 && r[0] == ',' {
			r = r[1:]
		}
	}
}
