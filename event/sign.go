package event

import (
	"github.com/minio/sha256-simd"

	"nostrkit.dev/crypto/schnorr"
	"nostrkit.dev/encoders/timestamp"
	"nostrkit.dev/nosterr"
	"nostrkit.dev/signer"
	"nostrkit.dev/xctx"
)

// ComputeId hashes the canonical serialization of the event's current
// fields, returning the 32-byte digest. Deterministic: calling it twice on
// an unchanged event yields the same id.
func (ev *E) ComputeId() []byte {
	h := sha256.Sum256(ev.CanonicalSerialize(nil))
	return h[:]
}

// Sign populates Pubkey (from signer, if empty), computes Id, and invokes
// the signer for Sig. Fails with no_signer when signer is nil, and with
// invalid_pubkey when the signer's pubkey disagrees with an already-set one.
func (ev *E) Sign(ctx xctx.T, sign signer.I) error {
	if sign == nil {
		return nosterr.New(nosterr.NoSigner, "sign requires a signer")
	}
	pub := sign.Pub()
	if len(ev.Pubkey) == 0 {
		ev.Pubkey = pub
	} else if string(ev.Pubkey) != string(pub) {
		return nosterr.New(nosterr.InvalidPubkey, "event pubkey does not match signer")
	}
	if ev.CreatedAt == nil {
		ev.CreatedAt = timestamp.Now()
	}
	if ev.Tags == nil {
		ev.Tags = newTags()
	}
	ev.GenerateContentTags()
	ev.Id = ev.ComputeId()
	sig, err := sign.Sign(ctx, ev.Id)
	if err != nil {
		return nosterr.Wrap(nosterr.SignFailed, "signer sign", err)
	}
	ev.Sig = sig
	return nil
}

// Verify reports whether the event's Id matches the recomputed canonical
// hash and its Sig verifies under Pubkey.
func (ev *E) Verify() bool {
	if len(ev.Id) != sha256.Size || len(ev.Pubkey) != schnorr.PubKeyBytesLen ||
		len(ev.Sig) != schnorr.SignatureSize {
		return false
	}
	if string(ev.Id) != string(ev.ComputeId()) {
		return false
	}
	return schnorr.Verify(ev.Pubkey, ev.Id, ev.Sig)
}
