package filter

import (
	"strconv"
	"strings"

	"nostrkit.dev/encoders/text"
	"nostrkit.dev/nosterr"
)

// Unmarshal reads a filter from minified or whitespace-formatted JSON.
func (f *F) Unmarshal(b []byte) (rem []byte, err error) {
	r := skipWS(b)
	if len(r) == 0 || r[0] != '{' {
		return nil, nosterr.New(nosterr.ParseError, "filter: expected '{'")
	}
	r = r[1:]
	for {
		r = skipWS(r)
		if len(r) == 0 {
			return nil, nosterr.New(nosterr.ParseError, "filter: unexpected eof")
		}
		if r[0] == '}' {
			return skipWS(r[1:]), nil
		}
		if r[0] == ',' {
			r = skipWS(r[1:])
			continue
		}
		var key []byte
		if key, r, err = text.UnmarshalQuoted(r); err != nil {
			return nil, err
		}
		r = skipWS(r)
		if len(r) == 0 || r[0] != ':' {
			return nil, nosterr.New(nosterr.ParseError, "filter: expected ':'")
		}
		r = skipWS(r[1:])
		ks := string(key)
		switch {
		case ks == "ids":
			if f.Ids, r, err = unmarshalStrArr(r); err != nil {
				return nil, err
			}
		case ks == "authors":
			if f.Authors, r, err = unmarshalStrArr(r); err != nil {
				return nil, err
			}
		case ks == "kinds":
			if f.Kinds, r, err = unmarshalKindArr(r); err != nil {
				return nil, err
			}
		case ks == "since":
			var v int64
			if v, r, err = unmarshalInt(r); err != nil {
				return nil, err
			}
			f.Since = &v
		case ks == "until":
			var v int64
			if v, r, err = unmarshalInt(r); err != nil {
				return nil, err
			}
			f.Until = &v
		case ks == "limit":
			var v int64
			if v, r, err = unmarshalInt(r); err != nil {
				return nil, err
			}
			lv := int(v)
			f.Limit = &lv
		case strings.HasPrefix(ks, "#") && len(ks) == 2:
			var vals []string
			if vals, r, err = unmarshalStrArr(r); err != nil {
				return nil, err
			}
			if f.Tags == nil {
				f.Tags = make(map[string][]string)
			}
			f.Tags[ks[1:]] = vals
		default:
			// unknown field (e.g. "search"): skip its value
			if r, err = skipValue(r); err != nil {
				return nil, err
			}
		}
	}
}

func skipWS(b []byte) []byte {
	i := 0
	for i < len(b) && (b[i] == ' ' || b[i] == '\t' || b[i] == '\n' || b[i] == '\r') {
		i++
	}
	return b[i:]
}

func unmarshalStrArr(b []byte) (out []string, rem []byte, err error) {
	r := skipWS(b)
	if len(r) == 0 || r[0] != '[' {
		return nil, nil, nosterr.New(nosterr.ParseError, "expected '['")
	}
	r = r[1:]
	for {
		r = skipWS(r)
		if len(r) == 0 {
			return nil, nil, nosterr.New(nosterr.ParseError, "unexpected eof in array")
		}
		if r[0] == ']' {
			return out, r[1:], nil
		}
		if r[0] == ',' {
			r = r[1:]
			continue
		}
		var v []byte
		if v, r, err = text.UnmarshalQuoted(r); err != nil {
			return nil, nil, err
		}
		out = append(out, string(v))
	}
}

func unmarshalKindArr(b []byte) (out []uint16, rem []byte, err error) {
	r := skipWS(b)
	if len(r) == 0 || r[0] != '[' {
		return nil, nil, nosterr.New(nosterr.ParseError, "expected '['")
	}
	r = r[1:]
	for {
		r = skipWS(r)
		if len(r) == 0 {
			return nil, nil, nosterr.New(nosterr.ParseError, "unexpected eof in array")
		}
		if r[0] == ']' {
			return out, r[1:], nil
		}
		if r[0] == ',' {
			r = r[1:]
			continue
		}
		var v int64
		if v, r, err = unmarshalInt(r); err != nil {
			return nil, nil, err
		}
		out = append(out, uint16(v))
	}
}

func unmarshalInt(b []byte) (v int64, rem []byte, err error) {
	r := skipWS(b)
	i := 0
	for i < len(r) && (r[i] == '-' || (r[i] >= '0' && r[i] <= '9')) {
		i++
	}
	if i == 0 {
		return 0, nil, nosterr.New(nosterr.ParseError, "expected integer")
	}
	v, err = strconv.ParseInt(string(r[:i]), 10, 64)
	return v, r[i:], err
}

func skipValue(b []byte) ([]byte, error) {
	r := skipWS(b)
	if len(r) == 0 {
		return nil, nosterr.New(nosterr.ParseError, "unexpected eof")
	}
	switch r[0] {
	case '"':
		_, rem, err := text.UnmarshalQuoted(r)
		return rem, err
	case '[':
		depth := 0
		for i, c := range r {
			switch c {
			case '[':
				depth++
			case ']':
				depth--
				if depth == 0 {
					return r[i+1:], nil
				}
			}
		}
		return nil, nosterr.New(nosterr.ParseError, "unterminated array")
	default:
		i := 0
		for i < len(r) && r[i] != ',' && r[i] != '}' {
			i++
		}
		return r[i:], nil
	}
}
