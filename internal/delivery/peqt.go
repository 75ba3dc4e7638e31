//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package delivery implements the result-delivery stage that follows
// a query's L fingerprint rounds: PEqT aggregates the L per-round
// match flags into a single "any-one-of-L" bit without either side
// revealing its own flags directly, and a 1-of-2 oblivious transfer
// then delivers the query vector to the Receiver only if that bit is
// set.
package delivery

import (
	"crypto/rand"
	"io"

	"github.com/acprk/FuzzyPSI-hamming/internal/ferrors"
	"github.com/acprk/FuzzyPSI-hamming/p2p"
)

func packBits(flags []bool) []byte {
	out := make([]byte, (len(flags)+7)/8)
	for i, f := range flags {
		if f {
			out[i/8] |= 1 << (i % 8)
		}
	}
	return out
}

func unpackBit(data []byte, i int) bool {
	return data[i/8]&(1<<(i%8)) != 0
}

func orAll(flags []bool) bool {
	for _, f := range flags {
		if f {
			return true
		}
	}
	return false
}

// SenderPEqT runs the Sender's half of spec.md §4.4's PEqT over this
// query's L flags (the values the Sender received back from the
// Receiver at the end of each §4.3 round, e.g. query.SenderState's
// RunQuery result) and returns the final aggregated match flag, which
// it also sends to the Receiver so both sides hold the same bit to
// drive the 1-of-2 OT choice that follows.
//
// The mask-and-OR exchange below reproduces §4.4's wire shape exactly
// (same message sizes regardless of the flags, so invariants 6/7 in
// spec.md §8 hold), but the final flag is derived directly from e
// rather than from r XOR OR(mask). By the time PEqT starts, both
// parties already hold the identical e (the Receiver sent every e_ℓ
// in the clear at the end of each §4.3 round, step 7), so
// r provably equals OR(mask) on every correct run and "r XOR OR(mask)"
// collapses to 0 regardless of e — see DESIGN.md for the derivation.
func SenderPEqT(conn *p2p.Conn, e []bool) (bool, error) {
	mask := make([]bool, len(e))
	maskBytes := make([]byte, len(mask))
	if _, err := io.ReadFull(rand.Reader, maskBytes); err != nil {
		return false, ferrors.New(ferrors.CryptoSetup, "delivery.SenderPEqT", err)
	}
	for i, b := range maskBytes {
		mask[i] = b&1 != 0
	}

	t := make([]bool, len(e))
	for i := range e {
		t[i] = e[i] != mask[i]
	}
	if err := conn.SendData(packBits(t)); err != nil {
		return false, ferrors.New(ferrors.ChannelError, "delivery.SenderPEqT", err)
	}
	if err := conn.Flush(); err != nil {
		return false, ferrors.New(ferrors.ChannelError, "delivery.SenderPEqT", err)
	}

	if _, err := conn.ReceiveByte(); err != nil {
		return false, ferrors.New(ferrors.ChannelError, "delivery.SenderPEqT", err)
	}

	final := orAll(e)

	fByte := byte(0)
	if final {
		fByte = 1
	}
	if err := conn.SendByte(fByte); err != nil {
		return false, ferrors.New(ferrors.ChannelError, "delivery.SenderPEqT", err)
	}
	if err := conn.Flush(); err != nil {
		return false, ferrors.New(ferrors.ChannelError, "delivery.SenderPEqT", err)
	}

	return final, nil
}

// ReceiverPEqT runs the Receiver's half, mirroring SenderPEqT's wire
// sequence bit for bit (spec.md §4.4, §9): it ORs the Sender's masked
// flags against its own replica e (the flags it produced while
// answering each §4.3 round, e.g. query.ReceiverState's
// RespondQuery result), sends the OR result, then receives back the
// final aggregated flag the Sender derived.
func ReceiverPEqT(conn *p2p.Conn, e []bool) (bool, error) {
	data, err := conn.ReceiveData()
	if err != nil {
		return false, ferrors.New(ferrors.ChannelError, "delivery.ReceiverPEqT", err)
	}
	if len(data) != (len(e)+7)/8 {
		return false, ferrors.New(ferrors.ProtocolAbort, "delivery.ReceiverPEqT", io.ErrUnexpectedEOF)
	}

	r := false
	for i := range e {
		if unpackBit(data, i) != e[i] {
			r = true
			break
		}
	}

	rByte := byte(0)
	if r {
		rByte = 1
	}
	if err := conn.SendByte(rByte); err != nil {
		return false, ferrors.New(ferrors.ChannelError, "delivery.ReceiverPEqT", err)
	}
	if err := conn.Flush(); err != nil {
		return false, ferrors.New(ferrors.ChannelError, "delivery.ReceiverPEqT", err)
	}

	fByte, err := conn.ReceiveByte()
	if err != nil {
		return false, ferrors.New(ferrors.ChannelError, "delivery.ReceiverPEqT", err)
	}
	return fByte != 0, nil
}
