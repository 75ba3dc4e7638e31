//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package wire implements the `{u64 length, length bytes}` framing
// spec.md's wire format uses for ciphertexts: a plain byte count
// followed by the raw bytes, with no secondary length prefix the way
// p2p.Conn.SendData's `{u32 length, bytes}` framing would add.
package wire

import (
	"fmt"

	"github.com/acprk/FuzzyPSI-hamming/p2p"
)

// PutBytes writes data as `{u64 len, len bytes}`.
func PutBytes(conn *p2p.Conn, data []byte) error {
	if err := conn.SendUint64(uint64(len(data))); err != nil {
		return err
	}
	for len(data) > 0 {
		if err := conn.NeedSpace(1); err != nil {
			return err
		}
		n := copy(conn.WriteBuf[conn.WritePos:], data)
		if n == 0 {
			if err := conn.Flush(); err != nil {
				return err
			}
			continue
		}
		conn.WritePos += n
		data = data[n:]
	}
	return nil
}

// GetBytes reads a `{u64 len, len bytes}` frame. maxLen bounds how
// large a single frame this side will allocate for, guarding against
// a corrupted or adversarial length prefix turning into an
// out-of-memory condition.
func GetBytes(conn *p2p.Conn, maxLen uint64) ([]byte, error) {
	n, err := conn.ReceiveUint64()
	if err != nil {
		return nil, err
	}
	if n > maxLen {
		return nil, fmt.Errorf("wire: frame length %d exceeds limit %d", n, maxLen)
	}
	out := make([]byte, n)
	pos := 0
	for pos < int(n) {
		if conn.ReadStart >= conn.ReadEnd {
			if err := conn.Fill(1); err != nil {
				return nil, err
			}
		}
		avail := conn.ReadEnd - conn.ReadStart
		need := int(n) - pos
		if avail > need {
			avail = need
		}
		copy(out[pos:], conn.ReadBuf[conn.ReadStart:conn.ReadStart+avail])
		conn.ReadStart += avail
		pos += avail
	}
	return out, nil
}
