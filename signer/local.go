package signer

import (
	"sync"

	"nostrkit.dev/crypto/nip04"
	"nostrkit.dev/crypto/nip44"
	"nostrkit.dev/crypto/schnorr"
	"nostrkit.dev/hex"
	"nostrkit.dev/nosterr"
	"nostrkit.dev/xctx"
)

// Local is a signer holding a 32-byte secp256k1 scalar in memory.
type Local struct {
	mu  sync.Mutex
	sec []byte
	pub []byte
}

var _ I = (*Local)(nil)

// NewLocal wraps a raw 32-byte secret key.
func NewLocal(sec []byte) (*Local, error) {
	if len(sec) != schnorr.SecKeyBytesLen {
		return nil, nosterr.New(nosterr.InvalidPubkey, "secret key must be 32 bytes")
	}
	s := &Local{sec: append([]byte{}, sec...)}
	s.pub = schnorr.PubKeyFromSecret(s.sec)
	return s, nil
}

// NewLocalFromHex wraps a hex-encoded secret key.
func NewLocalFromHex(s string) (*Local, error) {
	b, err := hex.Dec(s)
	if err != nil {
		return nil, nosterr.Wrap(nosterr.InvalidPubkey, "bad hex secret key", err)
	}
	return NewLocal(b)
}

// Pub returns the cached x-only pubkey.
func (s *Local) Pub() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pub
}

// Sec returns the raw secret key. Callers must not retain or leak it beyond
// the signing operation it serves.
func (s *Local) Sec() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sec
}

// Sign produces a Schnorr signature over hash.
func (s *Local) Sign(_ xctx.T, hash []byte) ([]byte, error) {
	s.mu.Lock()
	sec := s.sec
	s.mu.Unlock()
	sig, err := schnorr.Sign(sec, hash)
	if err != nil {
		return nil, nosterr.Wrap(nosterr.SignFailed, "schnorr sign", err)
	}
	return sig, nil
}

// Zero overwrites the in-memory secret key.
func (s *Local) Zero() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.sec {
		s.sec[i] = 0
	}
}

func (s *Local) sharedNip04(theirPub []byte) ([]byte, error) {
	return nip04.SharedSecret(s.Sec(), theirPub)
}

// Nip04Encrypt implements the legacy encrypted-DM scheme.
func (s *Local) Nip04Encrypt(_ xctx.T, plaintext string, theirPub []byte) (string, error) {
	shared, err := s.sharedNip04(theirPub)
	if err != nil {
		return "", err
	}
	return nip04.Encrypt(shared, []byte(plaintext))
}

// Nip04Decrypt reverses Nip04Encrypt.
func (s *Local) Nip04Decrypt(_ xctx.T, payload string, theirPub []byte) (string, error) {
	shared, err := s.sharedNip04(theirPub)
	if err != nil {
		return "", err
	}
	plain, err := nip04.Decrypt(shared, payload)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// Nip44Encrypt implements the v2 encrypted-payload scheme.
func (s *Local) Nip44Encrypt(_ xctx.T, plaintext string, theirPub []byte) (string, error) {
	return nip44.Encrypt(s.Sec(), theirPub, plaintext)
}

// Nip44Decrypt reverses Nip44Encrypt.
func (s *Local) Nip44Decrypt(_ xctx.T, payload string, theirPub []byte) (string, error) {
	return nip44.Decrypt(s.Sec(), theirPub, payload)
}
