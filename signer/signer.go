// Package signer defines the contract event signing and NIP-04/NIP-44
// payload encryption are built against, plus a local-private-key
// implementation. The remote-bunker (NIP-46) implementation lives in
// signer/bunker.go; it carries its RPC traffic over a caller-supplied
// Transport rather than a concrete relay pool.
package signer

import "nostrkit.dev/xctx"

// I is the contract every signer variant (local key, remote bunker) must
// satisfy.
type I interface {
	// Pub returns the 32-byte x-only pubkey. Local derives and caches it
	// once, in NewLocal.
	Pub() []byte
	// Sign produces a 64-byte Schnorr signature over a 32-byte digest.
	Sign(ctx xctx.T, hash []byte) (sig []byte, err error)
	// Nip04Encrypt/Nip04Decrypt implement NIP-04 under ECDH(ours, theirs).
	Nip04Encrypt(ctx xctx.T, plaintext string, theirPub []byte) (string, error)
	Nip04Decrypt(ctx xctx.T, payload string, theirPub []byte) (string, error)
	// Nip44Encrypt/Nip44Decrypt implement NIP-44 v2 under ECDH(ours, theirs).
	Nip44Encrypt(ctx xctx.T, plaintext string, theirPub []byte) (string, error)
	Nip44Decrypt(ctx xctx.T, payload string, theirPub []byte) (string, error)
}
