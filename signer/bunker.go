package signer

import (
	"encoding/json"

	"nostrkit.dev/encoders/kind"
	"nostrkit.dev/encoders/tag"
	"nostrkit.dev/event"
	"nostrkit.dev/hex"
	"nostrkit.dev/internal/chk"
	"nostrkit.dev/nosterr"
	"nostrkit.dev/xctx"
)

// Transport is the minimal publish/subscribe contract Bunker needs from a
// relay pool, kept separate from any concrete pool type so this package
// never depends on the relay package.
type Transport interface {
	Publish(ctx xctx.T, ev *event.E) error
	// Await blocks until an event matching pubkey/kind/#e(replyTo) arrives
	// or ctx is done, returning it.
	Await(ctx xctx.T, authorPubkey []byte, k uint16, replyToEventID string) (*event.E, error)
}

// rpcRequest/rpcResponse are the NIP-46 JSON-RPC envelope shapes, carried
// NIP-44-encrypted inside kind 24133 events.
type rpcRequest struct {
	ID     string   `json:"id"`
	Method string   `json:"method"`
	Params []string `json:"params"`
}

type rpcResponse struct {
	ID     string `json:"id"`
	Result string `json:"result"`
	Error  string `json:"error"`
}

// Bunker is a remote-signer client implementing NIP-46: it encrypts RPC
// requests with the local client key toward the remote signer's pubkey,
// publishes them as kind 24133 events, and awaits a correlated response.
type Bunker struct {
	clientKey    *Local
	remotePubkey []byte // the signer's identity (also the signed-for user's pubkey, once connected)
	userPubkey   []byte
	transport    Transport
	reqID        int
}

var _ I = (*Bunker)(nil)

// NewBunker builds a Bunker that talks to remotePubkey (the bunker's own
// nostr identity) through transport, authenticating with clientKey.
func NewBunker(clientKey *Local, remotePubkey []byte, transport Transport) *Bunker {
	return &Bunker{clientKey: clientKey, remotePubkey: remotePubkey, transport: transport}
}

func (b *Bunker) nextID() string {
	b.reqID++
	return itoa(b.reqID)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// rpc sends method/params to the remote signer and returns its raw result
// string, or an error built from the RPC error field / BunkerRejected.
func (b *Bunker) rpc(ctx xctx.T, method string, params []string) (string, error) {
	id := b.nextID()
	req := rpcRequest{ID: id, Method: method, Params: params}
	payload, err := json.Marshal(req)
	if chk.E(err) {
		return "", err
	}
	content, err := b.clientKey.Nip44Encrypt(ctx, string(payload), b.remotePubkey)
	if err != nil {
		return "", nosterr.Wrap(nosterr.SendFailed, "nip46 encrypt request", err)
	}
	ev := event.New()
	ev.Kind = kind.New(24133)
	ev.Content = []byte(content)
	ev.Tags.AppendTags(tag.New("p", hex.Enc(b.remotePubkey)))
	if err = ev.Sign(ctx, b.clientKey); err != nil {
		return "", nosterr.Wrap(nosterr.SignFailed, "sign nip46 request", err)
	}
	if err = b.transport.Publish(ctx, ev); err != nil {
		return "", nosterr.Wrap(nosterr.SendFailed, "publish nip46 request", err)
	}
	respEv, err := b.transport.Await(ctx, b.remotePubkey, 24133, ev.IdString())
	if err != nil {
		return "", nosterr.Wrap(nosterr.BunkerTimeout, "awaiting bunker response", err)
	}
	plain, err := b.clientKey.Nip44Decrypt(ctx, respEv.ContentString(), b.remotePubkey)
	if err != nil {
		return "", nosterr.Wrap(nosterr.DecryptFailed, "nip46 decrypt response", err)
	}
	var resp rpcResponse
	if err = json.Unmarshal([]byte(plain), &resp); chk.E(err) {
		return "", nosterr.Wrap(nosterr.ParseError, "nip46 response", err)
	}
	if resp.Error != "" {
		return "", nosterr.New(nosterr.BunkerRejected, resp.Error)
	}
	return resp.Result, nil
}

// Connect performs NIP-46 "connect", discovering and caching the user's
// actual pubkey (which may differ from remotePubkey for multi-user
// bunkers).
func (b *Bunker) Connect(ctx xctx.T, secret string) error {
	params := []string{hex.Enc(b.remotePubkey)}
	if secret != "" {
		params = append(params, secret)
	}
	if _, err := b.rpc(ctx, "connect", params); err != nil {
		return err
	}
	return b.fetchPub(ctx)
}

func (b *Bunker) fetchPub(ctx xctx.T) error {
	result, err := b.rpc(ctx, "get_public_key", nil)
	if err != nil {
		return err
	}
	pub, err := hex.Dec(result)
	if err != nil {
		return nosterr.Wrap(nosterr.ParseError, "get_public_key result", err)
	}
	b.userPubkey = pub
	return nil
}

// Pub returns the signed-for user's pubkey (cached from Connect/get_public_key).
func (b *Bunker) Pub() []byte {
	if b.userPubkey != nil {
		return b.userPubkey
	}
	return b.remotePubkey
}

// Sign always fails with a SignFailed error and contacts no one: NIP-46
// signs whole events, not raw digests. SignEvent is the signing path for a
// Bunker.
func (b *Bunker) Sign(_ xctx.T, _ []byte) ([]byte, error) {
	return nil, nosterr.New(nosterr.SignFailed, "bunker: use SignEvent, raw-digest signing is not part of NIP-46")
}

// SignEvent sends ev's JSON to the remote signer's "sign_event" method and
// fills in ev.Sig (and ev.Id, which the signer also computes) from the
// result.
func (b *Bunker) SignEvent(ctx xctx.T, ev *event.E) error {
	result, err := b.rpc(ctx, "sign_event", []string{string(ev.Marshal(nil))})
	if err != nil {
		return err
	}
	signed := event.New()
	if _, err = signed.Unmarshal([]byte(result)); err != nil {
		return nosterr.Wrap(nosterr.ParseError, "sign_event result", err)
	}
	ev.Id = signed.Id
	ev.Sig = signed.Sig
	ev.Pubkey = signed.Pubkey
	return nil
}

// Nip04Encrypt delegates to the remote signer's nip04_encrypt method.
func (b *Bunker) Nip04Encrypt(ctx xctx.T, plaintext string, theirPub []byte) (string, error) {
	return b.rpc(ctx, "nip04_encrypt", []string{hex.Enc(theirPub), plaintext})
}

// Nip04Decrypt delegates to the remote signer's nip04_decrypt method.
func (b *Bunker) Nip04Decrypt(ctx xctx.T, payload string, theirPub []byte) (string, error) {
	return b.rpc(ctx, "nip04_decrypt", []string{hex.Enc(theirPub), payload})
}

// Nip44Encrypt delegates to the remote signer's nip44_encrypt method.
func (b *Bunker) Nip44Encrypt(ctx xctx.T, plaintext string, theirPub []byte) (string, error) {
	return b.rpc(ctx, "nip44_encrypt", []string{hex.Enc(theirPub), plaintext})
}

// Nip44Decrypt delegates to the remote signer's nip44_decrypt method.
func (b *Bunker) Nip44Decrypt(ctx xctx.T, payload string, theirPub []byte) (string, error) {
	return b.rpc(ctx, "nip44_decrypt", []string{hex.Enc(theirPub), payload})
}
