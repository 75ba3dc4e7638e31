//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package offline implements the protocol's offline phase: the
// Receiver builds an OKVS over its fingerprinted vectors, packs and
// encrypts each vector as one ciphertext, and ships both to the
// Sender in fixed-size batches with an explicit ACK per batch so
// neither side's channel buffers grow unbounded. The Sender's half
// (loader.go) mirrors every step in the same order.
package offline

import (
	"fmt"

	"github.com/acprk/FuzzyPSI-hamming/env"
	"github.com/acprk/FuzzyPSI-hamming/internal/bits"
	"github.com/acprk/FuzzyPSI-hamming/internal/elsh"
	"github.com/acprk/FuzzyPSI-hamming/internal/ferrors"
	"github.com/acprk/FuzzyPSI-hamming/internal/he"
	"github.com/acprk/FuzzyPSI-hamming/internal/okvs"
	"github.com/acprk/FuzzyPSI-hamming/internal/params"
	"github.com/acprk/FuzzyPSI-hamming/internal/wire"
	"github.com/acprk/FuzzyPSI-hamming/ot"
	"github.com/acprk/FuzzyPSI-hamming/p2p"
)

const ackToken = "ACK"

// syncToken names batch i's handshake string. Deterministic and
// data-independent, matching the size-invariance property in
// spec.md §8 (testable property 6).
func syncToken(i int) string {
	return fmt.Sprintf("BATCH-%d", i)
}

// Package is what the Receiver sends: the encoded OKVS over
// (fingerprint, index) pairs plus the serialized public key.
type Package struct {
	OKVS *okvs.Encoded
	PK   []byte
}

// Send runs the Receiver's offline phase over conn, in the exact wire
// order of spec.md §6: the OKVS tuple, N, the N packed ciphertexts in
// batches of p.BatchSize (each batch followed by a sync token and an
// awaited ACK), and finally the serialized public key.
func Send(conn *p2p.Conn, p params.Params, fp *elsh.Fingerprinter, w []*bits.Vector, heCtx *he.Context, enc *he.Encryptor, pk []byte, cfg *env.Config) (*okvs.Encoded, error) {
	pairs := make([]okvs.Pair, 0, len(w)*fp.L())
	for i, v := range w {
		fps, err := fp.Fingerprints(v)
		if err != nil {
			return nil, ferrors.New(ferrors.CryptoSetup, "offline.Send", err)
		}
		for _, f := range fps {
			pairs = append(pairs, okvs.Pair{FP: f, Index: i})
		}
	}

	enc2, err := okvs.EncodeWithRetry(pairs, cfg)
	if err != nil {
		return nil, ferrors.New(ferrors.ConfigMismatch, "offline.Send", err)
	}

	if err := conn.SendUint64(uint64(len(enc2.P))); err != nil {
		return nil, ferrors.New(ferrors.ChannelError, "offline.Send", err)
	}
	var ld ot.LabelData
	for _, blk := range enc2.P {
		if err := conn.SendLabel(blk, &ld); err != nil {
			return nil, ferrors.New(ferrors.ChannelError, "offline.Send", err)
		}
	}
	if err := conn.SendLabel(enc2.Seed, &ld); err != nil {
		return nil, ferrors.New(ferrors.ChannelError, "offline.Send", err)
	}
	if err := conn.SendUint32(enc2.M); err != nil {
		return nil, ferrors.New(ferrors.ChannelError, "offline.Send", err)
	}
	if err := conn.SendUint32(enc2.BandLength); err != nil {
		return nil, ferrors.New(ferrors.ChannelError, "offline.Send", err)
	}
	if err := conn.SendUint32(enc2.NItems); err != nil {
		return nil, ferrors.New(ferrors.ChannelError, "offline.Send", err)
	}
	if err := conn.SendUint32(len(w)); err != nil {
		return nil, ferrors.New(ferrors.ChannelError, "offline.Send", err)
	}

	for i, v := range w {
		ct, err := enc.EncryptBits(v.Bits())
		if err != nil {
			return nil, ferrors.New(ferrors.HEError, "offline.Send", err)
		}
		data, err := he.MarshalCiphertext(ct)
		if err != nil {
			return nil, ferrors.New(ferrors.HEError, "offline.Send", err)
		}
		if err := wire.PutBytes(conn, data); err != nil {
			return nil, ferrors.New(ferrors.ChannelError, "offline.Send", err)
		}

		if (i+1)%p.BatchSize == 0 || i+1 == len(w) {
			batch := i / p.BatchSize
			if err := conn.SendString(syncToken(batch)); err != nil {
				return nil, ferrors.New(ferrors.ChannelError, "offline.Send", err)
			}
			if err := conn.Flush(); err != nil {
				return nil, ferrors.New(ferrors.ChannelError, "offline.Send", err)
			}
			ack, err := conn.ReceiveString()
			if err != nil {
				return nil, ferrors.New(ferrors.ChannelError, "offline.Send", err)
			}
			if ack != ackToken {
				return nil, ferrors.New(ferrors.ProtocolAbort, "offline.Send",
					fmt.Errorf("expected ACK, got %q", ack))
			}
		}
	}

	if err := conn.SendString(string(pk)); err != nil {
		return nil, ferrors.New(ferrors.ChannelError, "offline.Send", err)
	}
	if err := conn.Flush(); err != nil {
		return nil, ferrors.New(ferrors.ChannelError, "offline.Send", err)
	}

	return enc2, nil
}
