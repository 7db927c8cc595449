// Package event implements the nostr event: its wire codec, canonical
// serialization for id hashing, signing/verification, and the derived
// attributes (tag_address, referenced ids/pubkeys, reply-to) used by the
// rest of the core.
package event

import (
	"nostrkit.dev/encoders/kind"
	"nostrkit.dev/encoders/tags"
	"nostrkit.dev/encoders/timestamp"
	"nostrkit.dev/hex"
)

// E is the primary datatype of nostr: an event record, with byte-slice
// fields for the hash-relevant data and helper types for kind/timestamp/tags.
type E struct {
	// Id is the SHA-256 hash of the canonical encoding, in binary form.
	Id []byte
	// Pubkey is the 32-byte x-only public key of the event creator.
	Pubkey []byte
	// CreatedAt is the unix-second timestamp the creator attached.
	CreatedAt *timestamp.T
	// Kind classifies the event's semantics.
	Kind *kind.T
	// Tags is the ordered tag list.
	Tags *tags.T
	// Content is the arbitrary payload, meaning governed by Kind.
	Content []byte
	// Sig is the 64-byte Schnorr signature over Id under Pubkey.
	Sig []byte
}

// S is a slice of events that sorts newest-first.
type S []*E

func (s S) Len() int      { return len(s) }
func (s S) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s S) Less(i, j int) bool {
	return s[i].CreatedAt.I64() > s[j].CreatedAt.I64()
}

// New makes a new, empty event.E.
func New() *E {
	return &E{CreatedAt: timestamp.New(0), Kind: kind.New(0), Tags: tags.New()}
}

// Serialize renders an event.E into minified JSON.
func (ev *E) Serialize() []byte { return ev.Marshal(nil) }

// IdString returns the event id as lowercase hex.
func (ev *E) IdString() string { return hex.Enc(ev.Id) }

// PubKeyString returns the pubkey as lowercase hex.
func (ev *E) PubKeyString() string { return hex.Enc(ev.Pubkey) }

// SigString returns the signature as lowercase hex.
func (ev *E) SigString() string { return hex.Enc(ev.Sig) }

// ContentString returns the content as a string.
func (ev *E) ContentString() string { return string(ev.Content) }

// Clone returns a deep copy of the event.
func (ev *E) Clone() *E {
	return &E{
		Id:        append([]byte{}, ev.Id...),
		Pubkey:    append([]byte{}, ev.Pubkey...),
		CreatedAt: timestamp.New(ev.CreatedAt.I64()),
		Kind:      kind.New(ev.Kind.K),
		Tags:      ev.Tags.Clone(),
		Content:   append([]byte{}, ev.Content...),
		Sig:       append([]byte{}, ev.Sig...),
	}
}

// IsReplaceable reports whether the event's kind follows replaceable
// semantics (0, 3, 10000-19999).
func (ev *E) IsReplaceable() bool { return ev.Kind.IsReplaceable() }

// IsEphemeral reports whether the event's kind is ephemeral (20000-29999).
func (ev *E) IsEphemeral() bool { return ev.Kind.IsEphemeral() }

// IsParameterizedReplaceable reports whether the event's kind is
// parameterized-replaceable (30000-39999).
func (ev *E) IsParameterizedReplaceable() bool {
	return ev.Kind.IsParameterizedReplaceable()
}

// DTag returns the value of the first `d` tag, or "" if absent.
func (ev *E) DTag() string {
	if t := ev.Tags.GetFirst("d"); t != nil {
		return t.Value()
	}
	return ""
}

// TagAddress returns the event's replaceable-coordinate address,
// "kind:pubkey[:d]" for replaceable/parameterized-replaceable kinds, or the
// event id otherwise, as used to key the cache's replaceable-winner slot.
func (ev *E) TagAddress() string {
	switch {
	case ev.IsReplaceable():
		return addrOf(ev.Kind.K, ev.PubKeyString(), "")
	case ev.IsParameterizedReplaceable():
		return addrOf(ev.Kind.K, ev.PubKeyString(), ev.DTag())
	default:
		return ev.IdString()
	}
}

func addrOf(k uint16, pubkey, d string) string {
	if d == "" {
		return itoa(k) + ":" + pubkey
	}
	return itoa(k) + ":" + pubkey + ":" + d
}

func itoa(k uint16) string {
	if k == 0 {
		return "0"
	}
	var buf [5]byte
	i := len(buf)
	for k > 0 {
		i--
		buf[i] = byte('0' + k%10)
		k /= 10
	}
	return string(buf[i:])
}

// ReferencedIds returns the hex ids of every `e` tag.
func (ev *E) ReferencedIds() []string {
	var out []string
	for _, t := range ev.Tags.GetAll("e") {
		if t.Len() >= 2 {
			out = append(out, t.Value())
		}
	}
	return out
}

// ReferencedPubkeys returns the hex pubkeys of every `p` tag.
func (ev *E) ReferencedPubkeys() []string {
	var out []string
	for _, t := range ev.Tags.GetAll("p") {
		if t.Len() >= 2 {
			out = append(out, t.Value())
		}
	}
	return out
}

// ReplyTo returns the hex event id this event replies to, per NIP-10: the
// first `e` tag marked "reply", falling back to the last `e` tag (the
// positional-convention root/parent) when no marker is present, or "" when
// there are no `e` tags at all.
func (ev *E) ReplyTo() string {
	es := ev.Tags.GetAll("e")
	if len(es) == 0 {
		return ""
	}
	for _, t := range es {
		if t.Marker() == "reply" {
			return t.Value()
		}
	}
	return es[len(es)-1].Value()
}
