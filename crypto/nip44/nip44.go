// Package nip44 implements the v2 encrypted-payload scheme: a ChaCha20
// stream cipher keyed by an HKDF-SHA256-derived key, authenticated with
// HMAC-SHA256 over the random 32-byte nonce followed by the ciphertext,
// padded to one of a fixed set
// of bucket sizes before encryption to reduce length-based fingerprinting.
package nip44

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"math"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/hkdf"

	"nostrkit.dev/crypto/schnorr"
	"nostrkit.dev/nosterr"
)

const version = 2

// conversationKey derives the long-term key for a sec/pub pair via
// HKDF-extract over the ECDH shared X coordinate, salted with "nip44-v2".
func conversationKey(sec, pub []byte) ([]byte, error) {
	shared, err := schnorr.ECDH(sec, pub)
	if err != nil {
		return nil, err
	}
	extracted := hkdfExtract(shared, []byte("nip44-v2"))
	return extracted, nil
}

func hkdfExtract(ikm, salt []byte) []byte {
	mac := hmac.New(sha256.New, salt)
	mac.Write(ikm)
	return mac.Sum(nil)
}

type messageKeys struct {
	chachaKey   []byte
	chachaNonce []byte
	hmacKey     []byte
}

func deriveMessageKeys(conversationKey, nonce []byte) (*messageKeys, error) {
	r := hkdf.Expand(sha256.New, conversationKey, nonce)
	buf := make([]byte, 32+12+32)
	if _, err := r.Read(buf); err != nil {
		return nil, err
	}
	return &messageKeys{
		chachaKey:   buf[0:32],
		chachaNonce: buf[32:44],
		hmacKey:     buf[44:76],
	}, nil
}

// calcPadding maps a plaintext length to NIP-44's bucketed padding scheme:
// next power-of-two chunking above 32 bytes, to blur exact message length.
func calcPadding(l int) int {
	if l <= 32 {
		return 32
	}
	nextPower := 1 << int(math.Ceil(math.Log2(float64(l))))
	var chunk int
	if nextPower <= 256 {
		chunk = 32
	} else {
		chunk = nextPower / 8
	}
	return chunk * (int(math.Floor(float64(l-1)/float64(chunk))) + 1)
}

func pad(plain []byte) []byte {
	l := len(plain)
	padded := calcPadding(l)
	out := make([]byte, 2+padded)
	binary.BigEndian.PutUint16(out[0:2], uint16(l))
	copy(out[2:2+l], plain)
	return out
}

func unpad(padded []byte) ([]byte, error) {
	if len(padded) < 2 {
		return nil, nosterr.New(nosterr.DecryptFailed, "padded plaintext too short")
	}
	l := int(binary.BigEndian.Uint16(padded[0:2]))
	if l < 0 || 2+l > len(padded) {
		return nil, nosterr.New(nosterr.DecryptFailed, "invalid padding length")
	}
	unpadded := padded[2 : 2+l]
	if len(unpadded) != l || calcPadding(l) != len(padded)-2 {
		return nil, nosterr.New(nosterr.DecryptFailed, "padding mismatch")
	}
	return unpadded, nil
}

// Encrypt encrypts plaintext from sec's perspective to pub, returning the
// base64 wire payload.
func Encrypt(sec, pub []byte, plaintext string) (string, error) {
	ck, err := conversationKey(sec, pub)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, 32)
	if _, err = rand.Read(nonce); err != nil {
		return "", err
	}
	return encryptWithNonce(ck, nonce, plaintext)
}

func encryptWithNonce(ck, nonce []byte, plaintext string) (string, error) {
	keys, err := deriveMessageKeys(ck, nonce)
	if err != nil {
		return "", err
	}
	padded := pad([]byte(plaintext))
	cipher, err := chacha20.NewUnauthenticatedCipher(keys.chachaKey, keys.chachaNonce)
	if err != nil {
		return "", err
	}
	ciphertext := make([]byte, len(padded))
	cipher.XORKeyStream(ciphertext, padded)

	mac := hmac.New(sha256.New, keys.hmacKey)
	mac.Write(nonce)
	mac.Write(ciphertext)
	tag := mac.Sum(nil)

	out := make([]byte, 0, 1+32+len(ciphertext)+32)
	out = append(out, byte(version))
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	out = append(out, tag...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt, verifying the HMAC before returning plaintext.
func Decrypt(sec, pub []byte, payload string) (string, error) {
	ck, err := conversationKey(sec, pub)
	if err != nil {
		return "", err
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nosterr.Wrap(nosterr.DecryptFailed, "bad base64", err)
	}
	if len(raw) < 1+32+32+32 || raw[0] != version {
		return "", nosterr.New(nosterr.DecryptFailed, "bad envelope")
	}
	nonce := raw[1:33]
	tag := raw[len(raw)-32:]
	ciphertext := raw[33 : len(raw)-32]

	keys, err := deriveMessageKeys(ck, nonce)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, keys.hmacKey)
	mac.Write(nonce)
	mac.Write(ciphertext)
	if !hmac.Equal(mac.Sum(nil), tag) {
		return "", nosterr.New(nosterr.DecryptFailed, "hmac mismatch")
	}

	cipher, err := chacha20.NewUnauthenticatedCipher(keys.chachaKey, keys.chachaNonce)
	if err != nil {
		return "", err
	}
	padded := make([]byte, len(ciphertext))
	cipher.XORKeyStream(padded, ciphertext)
	plain, err := unpad(padded)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
