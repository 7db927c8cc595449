// Package xctx is a set of shorter names for the standard context package,
// used pervasively across this module's suspendable operations (connect,
// send, cache queries, signer calls, subscription awaits).
package xctx

import "context"

type (
	// T is context.Context.
	T = context.Context
	// Cancel is context.CancelFunc.
	Cancel = context.CancelFunc
	// CancelCause is context.CancelCauseFunc.
	CancelCause = context.CancelCauseFunc
)

var (
	// Bg is context.Background.
	Bg = context.Background
	// WithCancel is context.WithCancel.
	WithCancel = context.WithCancel
	// WithCause is context.WithCancelCause.
	WithCause = context.WithCancelCause
	// WithTimeout is context.WithTimeout.
	WithTimeout = context.WithTimeout
	// WithTimeoutCause is context.WithTimeoutCause.
	WithTimeoutCause = context.WithTimeoutCause
	// Cause is context.Cause.
	Cause = context.Cause
)

// Canceled is context.Canceled.
var Canceled = context.Canceled
