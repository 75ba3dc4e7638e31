//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package query

import (
	"fmt"

	"github.com/acprk/FuzzyPSI-hamming/internal/ferrors"
	"github.com/acprk/FuzzyPSI-hamming/internal/he"
	"github.com/acprk/FuzzyPSI-hamming/internal/params"
	"github.com/acprk/FuzzyPSI-hamming/internal/wire"
	"github.com/acprk/FuzzyPSI-hamming/p2p"
)

// ReceiverState holds what the Receiver's per-query round needs. It
// never sees a fingerprint, an index, or a dummy ciphertext: those are
// entirely the Sender's OKVS-side bookkeeping. The Receiver only ever
// decrypts ciphertexts the Sender sends it and re-encrypts derived
// bits, so it never learns which of its vectors (if any) the round is
// actually about.
type ReceiverState struct {
	P    params.Params
	HE   *he.Context
	Dec  *he.Decryptor
	Enc  *he.Encryptor
	Eval *he.Evaluator

	// MaxMismatch is the largest total number of differing bits still
	// within the Hamming threshold: Delta itself. The per-block sum
	// computed in RespondQuery already adds up actual bit differences
	// (0..8 per block), so the comparison against this field is a
	// direct bit-level Hamming-distance threshold, not a block count.
	MaxMismatch int
}

// NewReceiverState builds a ReceiverState bound to the Receiver's own
// key pair (it both encrypts the per-block differing-bit counts and
// decrypts the Sender's blinded sum with the same key).
func NewReceiverState(p params.Params, heCtx *he.Context, sk *he.Decryptor, pk *he.Encryptor) *ReceiverState {
	return &ReceiverState{
		P:           p,
		HE:          heCtx,
		Dec:         sk,
		Enc:         pk,
		Eval:        heCtx.NewEvaluator(nil),
		MaxMismatch: p.Delta,
	}
}

// RespondQuery drives the Receiver's side of all L rounds, mirroring
// SenderState.RunQuery step for step, and returns the L per-round
// match flags e_0..e_{L-1} (the same values it sends the Sender, kept
// here so the Receiver can run its own half of the PEqT aggregation
// in package delivery without a redundant round trip).
func (r *ReceiverState) RespondQuery(conn *p2p.Conn, l int) ([]bool, error) {
	blindBits, err := conn.ReceiveUint32()
	if err != nil {
		return nil, ferrors.New(ferrors.ChannelError, "query.RespondQuery", err)
	}
	if blindBits < 0 || blindBits != r.P.BlindBits {
		return nil, ferrors.New(ferrors.ConfigMismatch, "query.RespondQuery",
			&params.MismatchError{Field: "BlindBits", Want: r.P.BlindBits, Got: blindBits})
	}

	flags := make([]bool, l)
	numBlocks := (r.P.D + 7) / 8

	for round := 0; round < l; round++ {
		v := make([]uint64, r.P.D)
		for k := 0; k < r.P.D; k++ {
			data, err := wire.GetBytes(conn, maxShareCiphertextBytes)
			if err != nil {
				return nil, ferrors.New(ferrors.ChannelError, "query.RespondQuery", err)
			}
			ct, err := r.HE.UnmarshalCiphertext(data)
			if err != nil {
				return nil, ferrors.New(ferrors.HEError, "query.RespondQuery", err)
			}
			v[k] = r.Dec.DecryptSlot(ct, k) & 1
		}
		u, err := conn.ReceiveData()
		if err != nil {
			return nil, ferrors.New(ferrors.ChannelError, "query.RespondQuery", err)
		}
		if len(u) != r.P.D {
			return nil, ferrors.New(ferrors.ProtocolAbort, "query.RespondQuery",
				fmt.Errorf("u length %d != d=%d", len(u), r.P.D))
		}

		for blk := 0; blk < numBlocks; blk++ {
			diffBits := uint64(0)
			start := blk * 8
			end := start + 8
			if end > r.P.D {
				end = r.P.D
			}
			for j := start; j < end; j++ {
				if (uint64(u[j])^v[j])&1 != 0 {
					diffBits++
				}
			}
			ct := r.Enc.EncryptUint(diffBits)
			data, err := he.MarshalCiphertext(ct)
			if err != nil {
				return nil, ferrors.New(ferrors.HEError, "query.RespondQuery", err)
			}
			if err := wire.PutBytes(conn, data); err != nil {
				return nil, ferrors.New(ferrors.ChannelError, "query.RespondQuery", err)
			}
		}
		if err := conn.Flush(); err != nil {
			return nil, ferrors.New(ferrors.ChannelError, "query.RespondQuery", err)
		}

		data, err := wire.GetBytes(conn, maxShareCiphertextBytes)
		if err != nil {
			return nil, ferrors.New(ferrors.ChannelError, "query.RespondQuery", err)
		}
		tCt, err := r.HE.UnmarshalCiphertext(data)
		if err != nil {
			return nil, ferrors.New(ferrors.HEError, "query.RespondQuery", err)
		}
		mask, err := conn.ReceiveUint64()
		if err != nil {
			return nil, ferrors.New(ferrors.ChannelError, "query.RespondQuery", err)
		}

		t := r.Dec.DecryptSlot(tCt, 0)
		mismatch := (t - mask + r.P.PlaintextModulus) % r.P.PlaintextModulus
		if mismatch > uint64(r.P.D) {
			return nil, ferrors.New(ferrors.HEError, "query.RespondQuery",
				fmt.Errorf("recovered bit-mismatch count %d exceeds d=%d", mismatch, r.P.D))
		}

		e := byte(0)
		if mismatch <= uint64(r.MaxMismatch) {
			e = 1
		}
		if err := conn.SendByte(e); err != nil {
			return nil, ferrors.New(ferrors.ChannelError, "query.RespondQuery", err)
		}
		if err := conn.Flush(); err != nil {
			return nil, ferrors.New(ferrors.ChannelError, "query.RespondQuery", err)
		}

		flags[round] = e == 1
	}

	return flags, nil
}
