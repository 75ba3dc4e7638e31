//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package ferrors classifies protocol failures into the small set of
// kinds a caller needs to react to: whether the session must abort,
// whether the peer should be told, and whether the failure was
// already handled locally.
package ferrors

import "fmt"

// Kind names one of the protocol's failure categories.
type Kind int

const (
	// ConfigMismatch means the two parties disagree on a parameter
	// that must be identical (d, delta, l, seed, ...). Always fatal.
	// Raised by local parameter checks, by the N check of the offline
	// phase, and by the BlindBits check that opens each query.
	ConfigMismatch Kind = iota

	// CryptoSetup means key generation, parameter construction, or a
	// serialization round-trip for key material failed. Always
	// fatal.
	CryptoSetup

	// ChannelError means the transport read or write failed (peer
	// closed the connection, a length prefix was absurd, an ACK
	// never arrived). Always fatal.
	ChannelError

	// DecodeAnomaly means an OKVS decode or band solve produced an
	// inconsistency that the receiving party can recover from
	// locally (by retrying with a fresh OKVS instance during the
	// offline phase) without telling the peer. Never surfaced past
	// the package that raised it.
	DecodeAnomaly

	// HEError means a homomorphic operation or a ciphertext
	// (de)serialization failed. Always fatal.
	HEError

	// ProtocolAbort means a party observed a well-formed but
	// protocol-violating message (wrong round, wrong ACK token) and
	// is ending the session cleanly rather than guessing at intent.
	ProtocolAbort
)

func (k Kind) String() string {
	switch k {
	case ConfigMismatch:
		return "config mismatch"
	case CryptoSetup:
		return "crypto setup"
	case ChannelError:
		return "channel error"
	case DecodeAnomaly:
		return "decode anomaly"
	case HEError:
		return "he error"
	case ProtocolAbort:
		return "protocol abort"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind so that session code
// can decide, by inspection, whether a failure is locally recoverable
// (DecodeAnomaly) or must tear the session down.
type Error struct {
	Kind  Kind
	Phase string
	Err   error
}

func (e *Error) Error() string {
	if e.Phase != "" {
		return fmt.Sprintf("%s [%s]: %v", e.Kind, e.Phase, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an Error of the given kind.
func New(kind Kind, phase string, err error) *Error {
	return &Error{Kind: kind, Phase: phase, Err: err}
}

// Recoverable reports whether a session can continue after err
// without informing the peer.
func Recoverable(err error) bool {
	var fe *Error
	if e, ok := err.(*Error); ok {
		fe = e
	} else {
		return false
	}
	return fe.Kind == DecodeAnomaly
}

// Fatal reports whether err should terminate the session.
func Fatal(err error) bool {
	return err != nil && !Recoverable(err)
}
