// Package gen generates random-but-valid signed events for fuzz and
// property tests, grounded on the teacher's tests.GenerateEvent (random
// kind-1 notes sized via lukechampine.com/frand for encoder fuzzing). It
// produces kind-1 notes only, from a random or a caller-supplied signer;
// event/roundtrip_test.go is its user.
package gen

import (
	"encoding/base64"

	"github.com/btcsuite/btcd/btcec/v2"
	"lukechampine.com/frand"

	"nostrkit.dev/encoders/kind"
	"nostrkit.dev/encoders/tags"
	"nostrkit.dev/encoders/timestamp"
	"nostrkit.dev/event"
	"nostrkit.dev/signer"
	"nostrkit.dev/xctx"
)

// Signer returns a fresh local signer backed by a random secp256k1 key.
func Signer() (signer.I, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	return signer.NewLocal(priv.Serialize())
}

// Event signs and returns a random kind-1 text note whose base64-encoded
// content is at most maxSize bytes, plus the event's wire-serialized size.
func Event(maxSize int) (ev *event.E, wireSize int, err error) {
	sign, err := Signer()
	if err != nil {
		return nil, 0, err
	}
	return EventWithSigner(sign, maxSize)
}

// EventWithSigner is Event for a caller-supplied signer, letting tests
// generate several events from the same identity.
func EventWithSigner(sign signer.I, maxSize int) (ev *event.E, wireSize int, err error) {
	l := maxSize * 6 / 8 // account for base64 expansion
	if l < 1 {
		l = 1
	}
	ev = event.New()
	ev.Kind = kind.New(1)
	ev.CreatedAt = timestamp.Now()
	ev.Tags = tags.New()
	ev.Content = []byte(base64.StdEncoding.EncodeToString(frand.Bytes(frand.Intn(l))))
	if err = ev.Sign(xctx.Bg(), sign); err != nil {
		return nil, 0, err
	}
	wireSize = len(ev.Marshal(nil))
	return ev, wireSize, nil
}
