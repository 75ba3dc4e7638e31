//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package query implements the per-query online round: the Sender's
// half (engine.go) iterates a query's L fingerprints, extracts and
// masks the OKVS-indexed vector's bit ciphertexts, and runs the
// threshold comparison; the Receiver's half (respond.go) mirrors it
// round for round. Both halves return the L per-round match flags for
// the aggregation stage in package delivery.
package query

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/acprk/FuzzyPSI-hamming/internal/bits"
	"github.com/acprk/FuzzyPSI-hamming/internal/elsh"
	"github.com/acprk/FuzzyPSI-hamming/internal/ferrors"
	"github.com/acprk/FuzzyPSI-hamming/internal/he"
	"github.com/acprk/FuzzyPSI-hamming/internal/offline"
	"github.com/acprk/FuzzyPSI-hamming/internal/params"
	"github.com/acprk/FuzzyPSI-hamming/internal/wire"
	"github.com/acprk/FuzzyPSI-hamming/p2p"
	"github.com/tuneinsight/lattigo/v4/rlwe"
)

const maxShareCiphertextBytes = 8 << 20

// SenderState holds everything the Sender's per-query round needs,
// built once in the offline phase and read-only thereafter.
type SenderState struct {
	P       params.Params
	FP      *elsh.Fingerprinter
	Offline *offline.Received
	HE      *he.Context
	Eval    *he.Evaluator
	DummyCt *rlwe.Ciphertext
	Rand    io.Reader
}

// NewSenderState builds a SenderState from the offline phase's
// result. The dummy ciphertext (spec.md §4.3 step 1's "all-zero
// encryptions" substitute) is encrypted once and reused for every
// out-of-range OKVS decode.
func NewSenderState(p params.Params, fp *elsh.Fingerprinter, off *offline.Received, heCtx *he.Context) (*SenderState, error) {
	dummy, err := off.Enc.EncryptBits(make([]byte, p.D))
	if err != nil {
		return nil, ferrors.New(ferrors.HEError, "query.NewSenderState", err)
	}
	return &SenderState{
		P:       p,
		FP:      fp,
		Offline: off,
		HE:      heCtx,
		Eval:    heCtx.NewEvaluator(nil),
		DummyCt: dummy,
		Rand:    rand.Reader,
	}, nil
}

// RunQuery drives all L rounds of spec.md §4.3 for one query q and
// returns the L per-round match flags e_0..e_{L-1}.
func (s *SenderState) RunQuery(conn *p2p.Conn, q *bits.Vector) ([]bool, error) {
	// spec.md §6's per-query wire format opens with a single i32 M:
	// the blind's bit width, which the Receiver compares against its
	// own configured BlindBits and rejects with ConfigMismatch when
	// the two differ.
	if err := conn.SendUint32(s.P.BlindBits); err != nil {
		return nil, ferrors.New(ferrors.ChannelError, "query.RunQuery", err)
	}
	if err := conn.Flush(); err != nil {
		return nil, ferrors.New(ferrors.ChannelError, "query.RunQuery", err)
	}

	flags := make([]bool, s.FP.L())

	for round := 0; round < s.FP.L(); round++ {
		fp, err := s.FP.Fingerprint(q, round)
		if err != nil {
			return nil, ferrors.New(ferrors.CryptoSetup, "query.RunQuery", err)
		}

		ct := s.DummyCt
		if idx, ok := s.Offline.OKVS.DecodeIndex(fp, s.P.N); ok {
			ct = s.Offline.Cts[idx]
		}

		r := make([]byte, s.P.D)
		if _, err := io.ReadFull(s.Rand, r); err != nil {
			return nil, ferrors.New(ferrors.CryptoSetup, "query.RunQuery", err)
		}
		for i := range r {
			r[i] &= 1
		}

		u := make([]byte, s.P.D)
		for k := 0; k < s.P.D; k++ {
			selected := s.Eval.SelectSlot(ct, k)
			masked := s.Eval.AddPlainUint(selected, uint64(r[k]))
			data, err := he.MarshalCiphertext(masked)
			if err != nil {
				return nil, ferrors.New(ferrors.HEError, "query.RunQuery", err)
			}
			if err := wire.PutBytes(conn, data); err != nil {
				return nil, ferrors.New(ferrors.ChannelError, "query.RunQuery", err)
			}
			u[k] = r[k] ^ q.Get(k)
		}
		if err := conn.SendData(u); err != nil {
			return nil, ferrors.New(ferrors.ChannelError, "query.RunQuery", err)
		}
		if err := conn.Flush(); err != nil {
			return nil, ferrors.New(ferrors.ChannelError, "query.RunQuery", err)
		}

		numBlocks := (s.P.D + 7) / 8
		var sum *rlwe.Ciphertext
		for blk := 0; blk < numBlocks; blk++ {
			data, err := wire.GetBytes(conn, maxShareCiphertextBytes)
			if err != nil {
				return nil, ferrors.New(ferrors.ChannelError, "query.RunQuery", err)
			}
			ct, err := s.HE.UnmarshalCiphertext(data)
			if err != nil {
				return nil, ferrors.New(ferrors.HEError, "query.RunQuery", err)
			}
			if sum == nil {
				sum = ct
			} else {
				sum = s.Eval.Add(sum, ct)
			}
		}

		blind := make([]byte, 8)
		if _, err := io.ReadFull(s.Rand, blind); err != nil {
			return nil, ferrors.New(ferrors.CryptoSetup, "query.RunQuery", err)
		}
		mask := uint64(0)
		for _, b := range blind {
			mask = mask<<8 | uint64(b)
		}
		mask &= (uint64(1) << s.P.BlindBits) - 1

		masked := s.Eval.AddPlainUint(sum, mask)
		data, err := he.MarshalCiphertext(masked)
		if err != nil {
			return nil, ferrors.New(ferrors.HEError, "query.RunQuery", err)
		}
		if err := wire.PutBytes(conn, data); err != nil {
			return nil, ferrors.New(ferrors.ChannelError, "query.RunQuery", err)
		}
		if err := conn.SendUint64(mask); err != nil {
			return nil, ferrors.New(ferrors.ChannelError, "query.RunQuery", err)
		}
		if err := conn.Flush(); err != nil {
			return nil, ferrors.New(ferrors.ChannelError, "query.RunQuery", err)
		}

		eByte, err := conn.ReceiveByte()
		if err != nil {
			return nil, ferrors.New(ferrors.ChannelError, "query.RunQuery", err)
		}
		if eByte > 1 {
			return nil, ferrors.New(ferrors.ProtocolAbort, "query.RunQuery",
				fmt.Errorf("e_%d out of range: %d", round, eByte))
		}
		flags[round] = eByte == 1
	}

	return flags, nil
}
