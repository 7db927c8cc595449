// Package relay implements the per-relay connection state machine: dialing,
// reconnect backoff, NIP-11 metadata fetch, message dispatch, and per-relay
// statistics, on top of github.com/coder/websocket.
package relay

import "fmt"

// State is a relay connection's lifecycle state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Disconnecting
	Failed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnecting:
		return "disconnecting"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}
