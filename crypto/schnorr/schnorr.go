// Package schnorr wraps btcec/v2's Schnorr implementation with the narrow
// surface the event and signer packages need: fixed-size pubkey/signature
// constants and Sign/Verify over a 32-byte digest.
package schnorr

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

const (
	// PubKeyBytesLen is the length in bytes of a BIP-340 x-only pubkey.
	PubKeyBytesLen = 32
	// SignatureSize is the length in bytes of a Schnorr signature.
	SignatureSize = 64
	// SecKeyBytesLen is the length in bytes of a secp256k1 scalar.
	SecKeyBytesLen = 32
)

// Sign produces a BIP-340 Schnorr signature over hash (expected to be 32
// bytes) using the 32-byte secret key sec.
func Sign(sec, hash []byte) (sig []byte, err error) {
	priv, _ := btcec.PrivKeyFromBytes(sec)
	s, err := schnorr.Sign(priv, hash)
	if err != nil {
		return nil, err
	}
	return s.Serialize(), nil
}

// Verify reports whether sig is a valid BIP-340 signature over hash under
// the x-only pubkey pub.
func Verify(pub, hash, sig []byte) bool {
	pk, err := schnorr.ParsePubKey(pub)
	if err != nil {
		return false
	}
	s, err := schnorr.ParseSignature(sig)
	if err != nil {
		return false
	}
	return s.Verify(hash, pk)
}

// PubKeyFromSecret derives the 32-byte x-only pubkey for a secret key.
func PubKeyFromSecret(sec []byte) []byte {
	_, pub := btcec.PrivKeyFromBytes(sec)
	return schnorr.SerializePubKey(pub)
}

// ECDH computes the shared X coordinate between a local secret key and a
// remote x-only pubkey, as used by NIP-04/NIP-44 key derivation. The pubkey
// is reconstructed with an even-Y assumption, matching the nostr convention
// of storing only the x-coordinate.
func ECDH(sec, pub []byte) ([]byte, error) {
	priv, _ := btcec.PrivKeyFromBytes(sec)
	pk, err := schnorr.ParsePubKey(pub)
	if err != nil {
		return nil, err
	}
	var point btcec.JacobianPoint
	pk.AsJacobian(&point)
	var result btcec.JacobianPoint
	btcec.ScalarMultNonConst(&priv.Key, &point, &result)
	result.ToAffine()
	x := result.X.Bytes()
	return x[:], nil
}
