// Package publish implements the publish pipeline (spec.md §4.8): sign
// (if needed), validate, write-through to cache, fan out to target relays
// in parallel, and aggregate per-relay OK acknowledgements. Grounded on the
// teacher's ws.Client.Publish/okCallbacks correlation
// (pkg/protocol/ws/client.go), generalized from one relay to many with the
// commented-out PublishMany fan-out sketch carried through to completion.
package publish

import (
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/puzpuzpuz/xsync/v3"

	"nostrkit.dev/cache"
	"nostrkit.dev/encoders/envelopes"
	"nostrkit.dev/event"
	"nostrkit.dev/internal/log"
	"nostrkit.dev/nosterr"
	"nostrkit.dev/signer"
	"nostrkit.dev/xctx"
)

// Status is a per-relay publish outcome.
type Status int

const (
	Pending Status = iota
	Succeeded
	Failed
	TimedOut
)

func (s Status) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case TimedOut:
		return "timed_out"
	default:
		return "pending"
	}
}

// Outcome is one relay's result for a single publish.
type Outcome struct {
	Relay  string
	Status Status
	Reason string
}

// Result aggregates every targeted relay's Outcome for one publish call.
type Result struct {
	EventID  string
	Outcomes []Outcome
}

// bucket filters outcomes by status, preserving relay order.
func (r *Result) bucket(s Status) []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Status == s {
			out = append(out, o)
		}
	}
	return out
}

// Succeeded returns every relay that accepted the event.
func (r *Result) Succeeded() []Outcome { return r.bucket(Succeeded) }

// Failed returns every relay that rejected the event.
func (r *Result) Failed() []Outcome { return r.bucket(Failed) }

// TimedOut returns every relay that never answered before the deadline.
func (r *Result) TimedOut() []Outcome { return r.bucket(TimedOut) }

// AnySucceeded reports whether at least one relay accepted the event.
func (r *Result) AnySucceeded() bool { return len(r.Succeeded()) > 0 }

// Sender is the subset of relay.Pool the pipeline needs.
type Sender interface {
	All() []string
	Broadcast(ctx xctx.T, urls []string, data []byte) []string
}

// RelaySelector picks write targets for an author/recipient pair, per the
// outbox model; may be nil, in which case Publish falls back to "every
// currently connected relay" (basic mode).
type RelaySelector interface {
	WriteRelaysFor(ctx xctx.T, author string, recipients []string) []string
}

// PowMiner mines a NIP-13 proof-of-work nonce into an event up to
// difficulty, mutating its tags before it is re-signed and resent. Left as
// a contract: PoW mining is a concrete primitive outside this module's
// scope (spec.md §1).
type PowMiner interface {
	Mine(ctx xctx.T, ev *event.E, difficulty int) error
}

// CredentialInterface performs the NIP-42 AUTH handshake for a relay that
// rejected a publish with "auth-required:". Left as a contract for the same
// reason as PowMiner.
type CredentialInterface interface {
	Authenticate(ctx xctx.T, relayURL string) error
}

// Config tunes the pipeline's fan-out and retry behavior.
type Config struct {
	Deadline         time.Duration
	PerRelayTimeout  time.Duration
	PowDifficultyCap int
}

// DefaultConfig matches this module's documented defaults.
func DefaultConfig() Config {
	return Config{Deadline: 10 * time.Second, PerRelayTimeout: 10 * time.Second}
}

// Pipeline is the publish pipeline: it fans an event out to its target
// relays and correlates OK responses by event id.
type Pipeline struct {
	sender     Sender
	cache      cache.I
	signer     signer.I
	selector   RelaySelector
	pow        PowMiner
	credential CredentialInterface
	cfg        Config

	pending *xsync.MapOf[string, *waiters] // eventID -> per-relay OK channels
}

type waiters struct {
	mu sync.Mutex
	ch map[string]chan envelopes.OkMsg
}

// New builds a Pipeline. cache, selector, pow, and credential may all be
// nil; a nil selector means basic (every-connected-relay) fan-out, a nil
// pow/credential means the corresponding retry policy is skipped.
func New(sender Sender, c cache.I, sign signer.I, selector RelaySelector, pow PowMiner, credential CredentialInterface, cfg Config) *Pipeline {
	return &Pipeline{
		sender: sender, cache: c, signer: sign, selector: selector,
		pow: pow, credential: credential, cfg: cfg,
		pending: xsync.NewMapOf[string, *waiters](),
	}
}

// HandleOk is wired as the relay pool's Handlers.OnOk: it correlates the
// response to any publish awaiting it on relayURL.
func (p *Pipeline) HandleOk(relayURL, eventID string, accepted bool, message string) {
	w, ok := p.pending.Load(eventID)
	if !ok {
		return
	}
	w.mu.Lock()
	ch, ok := w.ch[relayURL]
	w.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- envelopes.OkMsg{EventID: eventID, Accepted: accepted, Message: message}:
	default:
	}
}

// Publish signs ev if unsigned, validates it, writes it to the cache,
// determines its target relays, fans it out in parallel, and waits for
// every relay to conclude (succeed, fail, or time out) or for the overall
// deadline to expire, whichever comes first.
func (p *Pipeline) Publish(ctx xctx.T, ev *event.E, recipients []string) (*Result, error) {
	if len(ev.Sig) == 0 {
		if err := ev.Sign(ctx, p.signer); err != nil {
			return nil, err
		}
	}
	if !ev.Verify() {
		return nil, nosterr.New(nosterr.InvalidEventCode, "event fails validation")
	}
	if p.cache != nil {
		p.cache.Store(ev, nil)
	}

	targets := p.targetsFor(ctx, ev, recipients)
	if len(targets) == 0 {
		return &Result{EventID: ev.IdString()}, nil
	}

	id := ev.IdString()
	w := &waiters{ch: make(map[string]chan envelopes.OkMsg, len(targets))}
	for _, r := range targets {
		w.ch[r] = make(chan envelopes.OkMsg, 1)
	}
	p.pending.Store(id, w)
	defer p.pending.Delete(id)

	deadline := p.cfg.Deadline
	if deadline <= 0 {
		deadline = DefaultConfig().Deadline
	}
	fanCtx, cancel := xctx.WithTimeout(ctx, deadline)
	defer cancel()

	outcomes := make([]Outcome, len(targets))
	var g errgroup.Group

	for i, r := range targets {
		i, r := i, r
		g.Go(func() error {
			outcomes[i] = p.publishOne(fanCtx, r, ev, w)
			return nil
		})
	}
	_ = g.Wait()

	return &Result{EventID: id, Outcomes: outcomes}, nil
}

func (p *Pipeline) publishOne(ctx xctx.T, relayURL string, ev *event.E, w *waiters) Outcome {
	msg := (&envelopes.EventMsg{Event: ev}).Marshal(nil)
	sent := p.sender.Broadcast(ctx, []string{relayURL}, msg)
	if len(sent) == 0 {
		return Outcome{Relay: relayURL, Status: Failed, Reason: "relay_not_connected"}
	}
	w.mu.Lock()
	ch := w.ch[relayURL]
	w.mu.Unlock()

	select {
	case ok := <-ch:
		return p.interpretOk(ctx, relayURL, ev, w, ok)
	case <-ctx.Done():
		return Outcome{Relay: relayURL, Status: TimedOut}
	}
}

func (p *Pipeline) interpretOk(ctx xctx.T, relayURL string, ev *event.E, w *waiters, ok envelopes.OkMsg) Outcome {
	if ok.Accepted {
		return Outcome{Relay: relayURL, Status: Succeeded, Reason: ok.Message}
	}
	reason := classify(ok.Message)
	switch reason {
	case "duplicate":
		return Outcome{Relay: relayURL, Status: Succeeded, Reason: ok.Message}
	case "rate-limited":
		// Re-queue with a short delay, then try once more. If the
		// deadline arrives before the retry concludes, the relay stays
		// failed with the original reason rather than being reclassified
		// as a silent timeout (spec.md's publish-aggregation scenario).
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			return Outcome{Relay: relayURL, Status: Failed, Reason: ok.Message}
		}
		out := p.retryOnce(ctx, relayURL, ev, w, ok.Message)
		if out.Status == TimedOut {
			out.Status = Failed
			out.Reason = ok.Message
		}
		return out
	case "auth-required":
		if p.credential == nil {
			return Outcome{Relay: relayURL, Status: Failed, Reason: ok.Message}
		}
		if err := p.credential.Authenticate(ctx, relayURL); err != nil {
			return Outcome{Relay: relayURL, Status: Failed, Reason: ok.Message}
		}
		return p.retryOnce(ctx, relayURL, ev, w, ok.Message)
	case "pow":
		return p.retryWithMining(ctx, relayURL, ev, ok.Message)
	default:
		return Outcome{Relay: relayURL, Status: Failed, Reason: ok.Message}
	}
}

// retryWithMining mines a NIP-13 nonce into a clone of ev up to the
// configured difficulty cap and resends it. Since mining changes the
// event's id, it registers a fresh waiter for the mined id rather than
// reusing the original event's waiter.
func (p *Pipeline) retryWithMining(ctx xctx.T, relayURL string, ev *event.E, fallbackReason string) Outcome {
	if p.pow == nil || p.cfg.PowDifficultyCap <= 0 {
		return Outcome{Relay: relayURL, Status: Failed, Reason: fallbackReason}
	}
	mined := ev.Clone()
	if err := p.pow.Mine(ctx, mined, p.cfg.PowDifficultyCap); err != nil {
		return Outcome{Relay: relayURL, Status: Failed, Reason: fallbackReason}
	}
	if err := mined.Sign(ctx, p.signer); err != nil {
		return Outcome{Relay: relayURL, Status: Failed, Reason: fallbackReason}
	}
	minedID := mined.IdString()
	mw := &waiters{ch: map[string]chan envelopes.OkMsg{relayURL: make(chan envelopes.OkMsg, 1)}}
	p.pending.Store(minedID, mw)
	defer p.pending.Delete(minedID)
	return p.publishOne(ctx, relayURL, mined, mw)
}

func (p *Pipeline) retryOnce(ctx xctx.T, relayURL string, ev *event.E, w *waiters, fallbackReason string) Outcome {
	msg := (&envelopes.EventMsg{Event: ev}).Marshal(nil)
	sent := p.sender.Broadcast(ctx, []string{relayURL}, msg)
	if len(sent) == 0 {
		return Outcome{Relay: relayURL, Status: Failed, Reason: fallbackReason}
	}
	w.mu.Lock()
	ch := w.ch[relayURL]
	w.mu.Unlock()
	select {
	case ok := <-ch:
		if ok.Accepted {
			return Outcome{Relay: relayURL, Status: Succeeded, Reason: ok.Message}
		}
		return Outcome{Relay: relayURL, Status: Failed, Reason: ok.Message}
	case <-ctx.Done():
		return Outcome{Relay: relayURL, Status: TimedOut}
	}
}

// classify extracts the machine-readable prefix of a relay's OK message
// (spec.md §4.1: "duplicate:", "pow:", "rate-limited:", "invalid:",
// "blocked:", "auth-required:", "restricted:", "error:").
func classify(message string) string {
	for _, prefix := range []string{"duplicate", "pow", "rate-limited", "invalid", "blocked", "auth-required", "restricted", "error"} {
		if hasPrefixColon(message, prefix) {
			return prefix
		}
	}
	return "error"
}

func hasPrefixColon(s, prefix string) bool {
	return len(s) > len(prefix) && s[:len(prefix)] == prefix && s[len(prefix)] == ':'
}

func (p *Pipeline) targetsFor(ctx xctx.T, ev *event.E, recipients []string) []string {
	if p.selector != nil {
		if t := p.selector.WriteRelaysFor(ctx, ev.PubKeyString(), recipients); len(t) > 0 {
			return t
		}
	}
	all := p.sender.All()
	if len(all) == 0 {
		log.D.F("publish: no relays connected for event %s", ev.IdString())
	}
	return all
}
