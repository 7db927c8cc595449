// Package nip19 implements the bech32 entity encodings of NIP-19: npub,
// nsec, note (plain 32-byte payloads) and nevent/naddr/nprofile (TLV
// payloads), built on btcutil/bech32.
package nip19

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/btcutil/bech32"

	"nostrkit.dev/nosterr"
)

const (
	tlvSpecial = 0
	tlvRelay   = 1
	tlvAuthor  = 2
	tlvKind    = 3
)

// EncodeSimple encodes a fixed 32-byte payload (npub/nsec/note) under hrp.
func EncodeSimple(hrp string, payload []byte) (string, error) {
	conv, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return "", nosterr.Wrap(nosterr.InvalidBech32, "convert bits", err)
	}
	s, err := bech32.Encode(hrp, conv)
	if err != nil {
		return "", nosterr.Wrap(nosterr.InvalidBech32, "bech32 encode", err)
	}
	return s, nil
}

// DecodeSimple decodes a fixed 32-byte payload, checking hrp matches one of
// wantHRP.
func DecodeSimple(s string, wantHRP ...string) (hrp string, payload []byte, err error) {
	hrp, data, err := bech32.Decode(s)
	if err != nil {
		return "", nil, nosterr.Wrap(nosterr.InvalidBech32, "bech32 decode", err)
	}
	if len(wantHRP) > 0 && !contains(wantHRP, hrp) {
		return "", nil, nosterr.New(nosterr.InvalidBech32, "unexpected hrp "+hrp)
	}
	payload, err = bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", nil, nosterr.Wrap(nosterr.InvalidBech32, "convert bits", err)
	}
	return hrp, payload, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// EncodePubkey encodes a 32-byte pubkey as npub1....
func EncodePubkey(pub []byte) (string, error) { return EncodeSimple("npub", pub) }

// EncodeSeckey encodes a 32-byte secret key as nsec1....
func EncodeSeckey(sec []byte) (string, error) { return EncodeSimple("nsec", sec) }

// EncodeNote encodes a 32-byte event id as note1....
func EncodeNote(id []byte) (string, error) { return EncodeSimple("note", id) }

// DecodePubkey decodes an npub1... string.
func DecodePubkey(s string) ([]byte, error) {
	_, payload, err := DecodeSimple(s, "npub")
	return payload, err
}

// DecodeSeckey decodes an nsec1... string.
func DecodeSeckey(s string) ([]byte, error) {
	_, payload, err := DecodeSimple(s, "nsec")
	return payload, err
}

// DecodeNote decodes a note1... string.
func DecodeNote(s string) ([]byte, error) {
	_, payload, err := DecodeSimple(s, "note")
	return payload, err
}

// Pointer is the decoded form of the TLV-based entities (nevent/naddr/
// nprofile): an optional special payload (event id, or parameterized
// identifier for naddr), optional relay hints, optional author pubkey, and
// optional kind.
type Pointer struct {
	Special []byte
	Relays  []string
	Author  []byte
	Kind    *uint32
}

func encodeTLV(hrp string, p Pointer) (string, error) {
	var data []byte
	if p.Special != nil {
		data = appendTLV(data, tlvSpecial, p.Special)
	}
	for _, r := range p.Relays {
		data = appendTLV(data, tlvRelay, []byte(r))
	}
	if p.Author != nil {
		data = appendTLV(data, tlvAuthor, p.Author)
	}
	if p.Kind != nil {
		var kb [4]byte
		binary.BigEndian.PutUint32(kb[:], *p.Kind)
		data = appendTLV(data, tlvKind, kb[:])
	}
	conv, err := bech32.ConvertBits(data, 8, 5, true)
	if err != nil {
		return "", nosterr.Wrap(nosterr.InvalidBech32, "convert bits", err)
	}
	s, err := bech32.Encode(hrp, conv)
	if err != nil {
		return "", nosterr.Wrap(nosterr.InvalidBech32, "bech32 encode", err)
	}
	return s, nil
}

func appendTLV(dst []byte, typ byte, value []byte) []byte {
	dst = append(dst, typ, byte(len(value)))
	dst = append(dst, value...)
	return dst
}

func decodeTLV(s string, hrp string) (Pointer, error) {
	var p Pointer
	_, data, err := bech32.Decode(s)
	if err != nil {
		return p, nosterr.Wrap(nosterr.InvalidBech32, "bech32 decode", err)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return p, nosterr.Wrap(nosterr.InvalidBech32, "convert bits", err)
	}
	for i := 0; i+2 <= len(raw); {
		typ := raw[i]
		l := int(raw[i+1])
		i += 2
		if i+l > len(raw) {
			break // truncated trailing TLV, tolerate rather than fail whole decode
		}
		val := raw[i : i+l]
		i += l
		switch typ {
		case tlvSpecial:
			p.Special = val
		case tlvRelay:
			p.Relays = append(p.Relays, string(val))
		case tlvAuthor:
			p.Author = val
		case tlvKind:
			if len(val) == 4 {
				k := binary.BigEndian.Uint32(val)
				p.Kind = &k
			}
		default:
			// unknown TLV type: skip, per NIP-19's forward-compatibility rule
		}
	}
	_ = hrp
	return p, nil
}

// EncodeNevent encodes an event pointer as nevent1....
func EncodeNevent(p Pointer) (string, error) { return encodeTLV("nevent", p) }

// DecodeNevent decodes an nevent1... string.
func DecodeNevent(s string) (Pointer, error) { return decodeTLV(s, "nevent") }

// EncodeNaddr encodes a parameterized-replaceable coordinate as naddr1....
func EncodeNaddr(p Pointer) (string, error) { return encodeTLV("naddr", p) }

// DecodeNaddr decodes an naddr1... string.
func DecodeNaddr(s string) (Pointer, error) { return decodeTLV(s, "naddr") }

// EncodeNprofile encodes a pubkey pointer as nprofile1....
func EncodeNprofile(p Pointer) (string, error) { return encodeTLV("nprofile", p) }

// DecodeNprofile decodes an nprofile1... string.
func DecodeNprofile(s string) (Pointer, error) { return decodeTLV(s, "nprofile") }

// Prefix returns the bech32 HRP of s without fully decoding it ("npub",
// "nsec", "note", "nevent", "naddr", "nprofile", or "" if malformed).
func Prefix(s string) string {
	hrp, _, err := bech32.Decode(s)
	if err != nil {
		return ""
	}
	return hrp
}
