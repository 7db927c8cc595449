// Package hex provides the small set of hex encode/decode helpers used
// pervasively by the encoders family for id/pubkey/sig fields.
package hex

import "encoding/hex"

// Enc returns the lowercase hex encoding of b as a string.
func Enc(b []byte) string { return hex.EncodeToString(b) }

// Dec decodes a hex string into bytes.
func Dec(s string) ([]byte, error) { return hex.DecodeString(s) }

// EncAppend appends the lowercase hex encoding of src to dst.
func EncAppend(dst, src []byte) []byte {
	start := len(dst)
	dst = append(dst, make([]byte, hex.EncodedLen(len(src)))...)
	hex.Encode(dst[start:], src)
	return dst
}

// DecAppend decodes src (hex) and appends the result to dst.
func DecAppend(dst, src []byte) ([]byte, error) {
	start := len(dst)
	dst = append(dst, make([]byte, hex.DecodedLen(len(src)))...)
	n, err := hex.Decode(dst[start:], src)
	if err != nil {
		return dst[:start], err
	}
	return dst[:start+n], nil
}
