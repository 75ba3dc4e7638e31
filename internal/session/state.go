//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package session drives the per-party state machine named in
// spec.md §4.4: offline packaging once, then Start -> FP_0 -> ... ->
// FP_{L-1} -> Aggregate -> Deliver -> End for every query, with any
// error from a lower layer ending the session in Fatal rather than
// retried. It is the only package that wires package he's key
// material, package okvs's decoder, package query's per-round state,
// and package delivery's PEqT/OT stages together around one
// p2p.Conn.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/acprk/FuzzyPSI-hamming/env"
	"github.com/acprk/FuzzyPSI-hamming/internal/elsh"
	"github.com/acprk/FuzzyPSI-hamming/internal/ferrors"
	"github.com/acprk/FuzzyPSI-hamming/internal/he"
	"github.com/acprk/FuzzyPSI-hamming/internal/params"
	"github.com/acprk/FuzzyPSI-hamming/ot"
)

// newSessionID names one RunReceiver/RunSender call for logging and
// for the session result the CLI binaries print. It never crosses the wire: spec.md §1
// rules out persistence of state across sessions, so this exists
// purely to let a human correlate a Receiver's log lines with the
// matching Sender's in a shared log stream.
func newSessionID() string {
	return uuid.New().String()
}

// PhaseDeadline bounds how long a single phase (the offline exchange,
// or any one query's full round trip) may run before the session
// gives up and transitions to Fatal, per spec.md §5's "implementations
// SHOULD expose a wall-clock deadline per phase". Zero means no
// deadline.
type PhaseDeadline = time.Duration

// deadliner is satisfied by net.Conn; session callers pass the raw
// network connection alongside the p2p.Conn wrapping it so phase
// deadlines can be applied to the underlying socket.
type deadliner interface {
	SetDeadline(t time.Time) error
}

func applyDeadline(d deadliner, phase PhaseDeadline) error {
	if d == nil || phase <= 0 {
		return nil
	}
	return d.SetDeadline(time.Now().Add(phase))
}

// newHEContext builds the shared BFV parameter context both parties
// derive identically from the agreed Params, never exchanged on the
// wire (spec.md §6: "the wire format does not carry them").
func newHEContext(p params.Params) (*he.Context, error) {
	ctx, err := he.NewContext(p.D, p.PlaintextModulus)
	if err != nil {
		return nil, ferrors.New(ferrors.CryptoSetup, "session.newHEContext", err)
	}
	return ctx, nil
}

func newFingerprinter(p params.Params) (*elsh.Fingerprinter, error) {
	fp, err := elsh.New(p.D, p.Delta, p.L, p.Seed)
	if err != nil {
		return nil, ferrors.New(ferrors.CryptoSetup, "session.newFingerprinter", err)
	}
	return fp, nil
}

// newCOT builds a correlated-OT instance over a Chou-Orlandi base OT
// (ot.NewCO, the "Simplest Protocol"), extended by IKNP (ot.NewCOT)
// into the batch of 1-of-2 transfers the delivery phase needs. This
// replaces the both-keys-in-the-clear placeholder spec.md §9 flags as
// insecure; every byte of the OT exchange now actually depends on the
// receiver's choice bit.
func newCOT(cfg *env.Config) *ot.COT {
	base := ot.NewCO()
	return ot.NewCOT(base, cfg.GetRandom())
}
