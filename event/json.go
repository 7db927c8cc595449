package event

import (
	"nostrkit.dev/encoders/tags"
	"nostrkit.dev/encoders/text"
	"nostrkit.dev/hex"
)

var (
	jId        = []byte("id")
	jPubkey    = []byte("pubkey")
	jCreatedAt = []byte("created_at")
	jKind      = []byte("kind")
	jTags      = []byte("tags")
	jContent   = []byte("content")
	jSig       = []byte("sig")
)

func newTags() *tags.T { return tags.New() }

// Marshal appends an event.E to dst as minified JSON.
func (ev *E) Marshal(dst []byte) []byte {
	b := append(dst, '{')
	b = text.JSONKey(b, jId)
	b = text.AppendQuote(b, ev.Id, hex.EncAppend)
	b = append(b, ',')
	b = text.JSONKey(b, jPubkey)
	b = text.AppendQuote(b, ev.Pubkey, hex.EncAppend)
	b = append(b, ',')
	b = text.JSONKey(b, jCreatedAt)
	b = ev.CreatedAt.Marshal(b)
	b = append(b, ',')
	b = text.JSONKey(b, jKind)
	b = ev.Kind.Marshal(b)
	b = append(b, ',')
	b = text.JSONKey(b, jTags)
	b = ev.Tags.Marshal(b)
	b = append(b, ',')
	b = text.JSONKey(b, jContent)
	b = text.AppendQuote(b, ev.Content, text.NostrEscape)
	b = append(b, ',')
	b = text.JSONKey(b, jSig)
	b = text.AppendQuote(b, ev.Sig, hex.EncAppend)
	b = append(b, '}')
	return b
}

// CanonicalSerialize appends the 6-element canonical array
// `[0,pubkey,created_at,kind,tags,content]` to dst, the exact byte sequence
// that is SHA-256 hashed to produce Id. No whitespace, `/` unescaped.
func (ev *E) CanonicalSerialize(dst []byte) []byte {
	b := append(dst, '[', '0', ',')
	b = text.AppendQuote(b, ev.Pubkey, hex.EncAppend)
	b = append(b, ',')
	b = ev.CreatedAt.Marshal(b)
	b = append(b, ',')
	b = ev.Kind.Marshal(b)
	b = append(b, ',')
	b = ev.Tags.Marshal(b)
	b = append(b, ',')
	b = text.AppendQuote(b, ev.Content, text.NostrEscape)
	b = append(b, ']')
	return b
}

// Unmarshal reads an event from minified or whitespace-formatted JSON.
func (ev *E) Unmarshal(b []byte) (rem []byte, err error) {
	r := skipWS(b)
	if len(r) == 0 || r[0] != '{' {
		return nil, errUnexpectedEOF
	}
	r = r[1:]
	for {
		r = skipWS(r)
		if len(r) == 0 {
			return nil, errUnexpectedEOF
		}
		if r[0] == '}' {
			rem = skipWS(r[1:])
			return
		}
		if r[0] == ',' {
			r = skipWS(r[1:])
			continue
		}
		if r[0] != '"' {
			return nil, errInvalidKey
		}
		var key []byte
		if key, r, err = text.UnmarshalQuoted(r); err != nil {
			return nil, err
		}
		r = skipWS(r)
		if len(r) == 0 || r[0] != ':' {
			return nil, errInvalidKey
		}
		r = skipWS(r[1:])
		switch string(key) {
		case "id":
			if ev.Id, r, err = text.UnmarshalHex(r); err != nil {
				return nil, err
			}
		case "pubkey":
			if ev.Pubkey, r, err = text.UnmarshalHex(r); err != nil {
				return nil, err
			}
		case "created_at":
			if r, err = ev.CreatedAt.Unmarshal(r); err != nil {
				return nil, err
			}
		case "kind":
			if r, err = ev.Kind.Unmarshal(r); err != nil {
				return nil, err
			}
		case "tags":
			ev.Tags = newTags()
			if r, err = ev.Tags.Unmarshal(r); err != nil {
				return nil, err
			}
		case "content":
			if ev.Content, r, err = text.UnmarshalQuoted(r); err != nil {
				return nil, err
			}
		case "sig":
			if ev.Sig, r, err = text.UnmarshalHex(r); err != nil {
				return nil, err
			}
		default:
			return nil, errInvalidKey
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

type parseErr struct{ msg string }

func (e *parseErr) Error() string { return e.msg }

var (
	errUnexpectedEOF = &parseErr{"event: unexpected end of input"}
	errInvalidKey    = &parseErr{"event: invalid key"}
)
