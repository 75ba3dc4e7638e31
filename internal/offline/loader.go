//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package offline

import (
	"fmt"

	"github.com/acprk/FuzzyPSI-hamming/internal/ferrors"
	"github.com/acprk/FuzzyPSI-hamming/internal/he"
	"github.com/acprk/FuzzyPSI-hamming/internal/okvs"
	"github.com/acprk/FuzzyPSI-hamming/internal/params"
	"github.com/acprk/FuzzyPSI-hamming/internal/wire"
	"github.com/acprk/FuzzyPSI-hamming/ot"
	"github.com/acprk/FuzzyPSI-hamming/p2p"
	"github.com/tuneinsight/lattigo/v4/rlwe"
)

// maxCiphertextBytes bounds a single ciphertext frame; generous for
// the parameter ranges this protocol targets, tight enough to reject
// a corrupted length prefix before allocating in response to it.
const maxCiphertextBytes = 64 << 20

// Received is what the Sender ends up with after Receive returns: the
// OKVS decoder, one packed ciphertext per Receiver vector, and a
// ready-to-use encryptor bound to the Receiver's public key.
type Received struct {
	OKVS *okvs.Encoded
	Cts  []*rlwe.Ciphertext
	Enc  *he.Encryptor
}

// Receive runs the Sender's offline phase: reads the OKVS tuple, then
// N packed ciphertexts in the announced batch cadence, ACKing each
// batch, then the public key. It instantiates an encryptor from that
// key so the caller never touches the raw bytes again.
func Receive(conn *p2p.Conn, p params.Params, heCtx *he.Context) (*Received, error) {
	okvsLen, err := conn.ReceiveUint64()
	if err != nil {
		return nil, ferrors.New(ferrors.ChannelError, "offline.Receive", err)
	}
	var ld ot.LabelData
	blocks := make([]ot.Label, okvsLen)
	for i := range blocks {
		if err := conn.ReceiveLabel(&blocks[i], &ld); err != nil {
			return nil, ferrors.New(ferrors.ChannelError, "offline.Receive", err)
		}
	}
	var seed ot.Label
	if err := conn.ReceiveLabel(&seed, &ld); err != nil {
		return nil, ferrors.New(ferrors.ChannelError, "offline.Receive", err)
	}
	m, err := conn.ReceiveUint32()
	if err != nil {
		return nil, ferrors.New(ferrors.ChannelError, "offline.Receive", err)
	}
	bandLength, err := conn.ReceiveUint32()
	if err != nil {
		return nil, ferrors.New(ferrors.ChannelError, "offline.Receive", err)
	}
	nItems, err := conn.ReceiveUint32()
	if err != nil {
		return nil, ferrors.New(ferrors.ChannelError, "offline.Receive", err)
	}
	n, err := conn.ReceiveUint32()
	if err != nil {
		return nil, ferrors.New(ferrors.ChannelError, "offline.Receive", err)
	}
	if n != p.N {
		return nil, ferrors.New(ferrors.ConfigMismatch, "offline.Receive",
			&params.MismatchError{Field: "N", Want: p.N, Got: n})
	}

	enc := &okvs.Encoded{P: blocks, Seed: seed, M: m, BandLength: bandLength, NItems: nItems}

	cts := make([]*rlwe.Ciphertext, n)
	for i := 0; i < n; i++ {
		data, err := wire.GetBytes(conn, maxCiphertextBytes)
		if err != nil {
			return nil, ferrors.New(ferrors.ChannelError, "offline.Receive", err)
		}
		ct, err := heCtx.UnmarshalCiphertext(data)
		if err != nil {
			return nil, ferrors.New(ferrors.HEError, "offline.Receive", err)
		}
		cts[i] = ct

		if (i+1)%p.BatchSize == 0 || i+1 == n {
			tok, err := conn.ReceiveString()
			if err != nil {
				return nil, ferrors.New(ferrors.ChannelError, "offline.Receive", err)
			}
			batch := i / p.BatchSize
			if tok != syncToken(batch) {
				return nil, ferrors.New(ferrors.ProtocolAbort, "offline.Receive",
					fmt.Errorf("unexpected sync token %q", tok))
			}
			if err := conn.SendString(ackToken); err != nil {
				return nil, ferrors.New(ferrors.ChannelError, "offline.Receive", err)
			}
			if err := conn.Flush(); err != nil {
				return nil, ferrors.New(ferrors.ChannelError, "offline.Receive", err)
			}
		}
	}

	pkStr, err := conn.ReceiveString()
	if err != nil {
		return nil, ferrors.New(ferrors.ChannelError, "offline.Receive", err)
	}
	pk, err := heCtx.UnmarshalPublicKey([]byte(pkStr))
	if err != nil {
		return nil, ferrors.New(ferrors.HEError, "offline.Receive", err)
	}

	return &Received{OKVS: enc, Cts: cts, Enc: heCtx.NewEncryptor(pk)}, nil
}
