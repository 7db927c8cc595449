// Package nip04 implements the legacy encrypted-DM scheme: AES-256-CBC under
// a shared secret derived from ECDH, wire-encoded as "<b64cipher>?iv=<b64iv>".
package nip04

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"strings"

	"nostrkit.dev/crypto/schnorr"
	"nostrkit.dev/nosterr"
)

// SharedSecret derives the AES key from ECDH(sec, pub): the raw X coordinate,
// used directly as a 32-byte AES-256 key (NIP-04's original, non-HKDF scheme).
func SharedSecret(sec, pub []byte) ([]byte, error) {
	return schnorr.ECDH(sec, pub)
}

// Encrypt encrypts plaintext under the shared secret, returning the NIP-04
// wire format "<base64 ciphertext>?iv=<base64 iv>".
func Encrypt(sharedSecret []byte, plaintext []byte) (string, error) {
	block, err := aes.NewCipher(sharedSecret)
	if err != nil {
		return "", nosterr.Wrap(nosterr.DecryptFailed, "aes cipher", err)
	}
	iv := make([]byte, aes.BlockSize)
	if _, err = rand.Read(iv); err != nil {
		return "", nosterr.Wrap(nosterr.DecryptFailed, "iv", err)
	}
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	mode := cipher.NewCBCEncrypter(block, iv)
	mode.CryptBlocks(ciphertext, padded)
	return base64.StdEncoding.EncodeToString(ciphertext) + "?iv=" + base64.StdEncoding.EncodeToString(iv), nil
}

// Decrypt reverses Encrypt given the NIP-04 wire format.
func Decrypt(sharedSecret []byte, payload string) ([]byte, error) {
	parts := strings.SplitN(payload, "?iv=", 2)
	if len(parts) != 2 {
		return nil, nosterr.New(nosterr.DecryptFailed, "missing iv")
	}
	ciphertext, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, nosterr.Wrap(nosterr.DecryptFailed, "bad ciphertext b64", err)
	}
	iv, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, nosterr.Wrap(nosterr.DecryptFailed, "bad iv b64", err)
	}
	block, err := aes.NewCipher(sharedSecret)
	if err != nil {
		return nil, nosterr.Wrap(nosterr.DecryptFailed, "aes cipher", err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, nosterr.New(nosterr.DecryptFailed, "ciphertext not block aligned")
	}
	plain := make([]byte, len(ciphertext))
	mode := cipher.NewCBCDecrypter(block, iv)
	mode.CryptBlocks(plain, ciphertext)
	return pkcs7Unpad(plain)
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	pad := make([]byte, n)
	for i := range pad {
		pad[i] = byte(n)
	}
	return append(append([]byte{}, b...), pad...)
}

func pkcs7Unpad(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, nosterr.New(nosterr.DecryptFailed, "empty plaintext")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > len(b) {
		return nil, nosterr.New(nosterr.DecryptFailed, "bad padding")
	}
	return b[:len(b)-n], nil
}
