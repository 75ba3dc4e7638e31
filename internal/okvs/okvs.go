//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package okvs implements a banded oblivious key-value store: given
// n (key, 128-bit value) pairs, Encode produces a vector P of
// m_OKVS >= 1.05n blocks such that Decode(P, key) reconstructs the
// associated value for every inserted key, while Decode(P, key) for
// any key that was never inserted returns a value indistinguishable
// from uniform. The band structure (each key's equation touches only
// a contiguous window of band-length columns, derived deterministically
// from the key and the encoder's seed) is what makes Gaussian
// elimination over the n x m system run in time linear in n times
// the band length rather than n times m.
package okvs

import (
	"crypto/sha256"
	"fmt"
	"io"
	"math/big"
	"sort"

	"golang.org/x/crypto/hkdf"

	"github.com/acprk/FuzzyPSI-hamming/env"
	"github.com/acprk/FuzzyPSI-hamming/ot"
)

// Block is the 128-bit value type the store carries. It is exactly
// the OT label type, reused so that an OKVS-decoded value can be fed
// directly into the correlated-OT delivery stage without conversion.
type Block = ot.Label

// Pair is one key/value entry to encode: a fingerprint string (the
// canonical "l||p" E-LSH identifier) mapped to the owning vector's
// index.
type Pair struct {
	FP    string
	Index int
}

// Encoded is the output of Encode: the solution vector P plus the
// band parameters needed to reproduce every key's window during
// Decode. Every field here is sent to the peer in the offline phase.
type Encoded struct {
	P          []Block
	Seed       Block
	M          int
	BandLength int
	NItems     int
}

// maxEncodeRetries bounds EncodeWithRetry. Each retry draws a fresh
// random seed, so a failure is independent across attempts.
const maxEncodeRetries = 8

// inconsistentRow is returned internally when elimination reduces a
// row to an all-zero band with a nonzero residual value: the band
// system is singular under this seed, signaling a retry.
type inconsistentRow struct{}

func (inconsistentRow) Error() string { return "okvs: inconsistent row during elimination" }

// bandLength looks up the band width for n items. The table matches
// the reference implementation's tuning: it was computed offline to
// give negligible (< 2^-40) encoding failure probability at each
// size class, and was derived for set sizes up to 2^24; larger inputs
// have no tuned band length and are rejected rather than guessed at.
func bandLength(n int) (int, error) {
	switch {
	case n <= 1<<14:
		return 339, nil
	case n <= 1<<16:
		return 350, nil
	case n <= 1<<18:
		return 366, nil
	case n <= 1<<20:
		return 377, nil
	case n <= 1<<22:
		return 396, nil
	case n <= 1<<24:
		return 413, nil
	default:
		return 0, fmt.Errorf("okvs: no tuned band length for %d items (max 2^24)", n)
	}
}

// expansionSize returns m_OKVS = ceil(1.05*n), raised to at least the
// band length so that every key's window, wherever its start lands,
// fits inside [0, m). For realistic set sizes the 1.05 expansion
// already dwarfs the band length; the floor only bites for the
// smallest toy inputs.
func expansionSize(n, w int) int {
	m := n + (n+19)/20 // ceil(1.05*n), since n/20 = 0.05n
	if m < n {
		m = n
	}
	if m < w {
		m = w
	}
	return m
}

// row is one key's equation during elimination: a band of w bits
// starting at global column start, and the 128-bit value it must sum
// to.
type row struct {
	start int
	win   *big.Int
	value Block
}

// deriveRow computes a key's deterministic band: its starting column
// in [0, m-w] and its w-bit window, both HKDF-expanded from the key
// string under the encoder's seed, so that Encode and Decode always
// agree on a key's row without any shared state beyond the key
// string, the seed, and (m, w).
func deriveRow(fp string, seed Block, m, w int) (int, *big.Int) {
	salt := seedBytes(seed)

	startBytes := hkdfExpand(fp, salt, "fpsi-hamming/okvs-start", 8)
	startSeed := uint64(0)
	for _, b := range startBytes {
		startSeed = startSeed<<8 | uint64(b)
	}
	start := int(startSeed % uint64(m-w+1))

	winBytes := hkdfExpand(fp, salt, "fpsi-hamming/okvs-band", (w+7)/8)
	win := new(big.Int).SetBytes(winBytes)
	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(w)), big.NewInt(1))
	win.And(win, mask)
	if win.Sign() == 0 {
		win.SetUint64(1)
	}
	return start, win
}

func seedBytes(seed Block) []byte {
	var data ot.LabelData
	return seed.Bytes(&data)
}

func hkdfExpand(fp string, salt []byte, info string, n int) []byte {
	kdf := hkdf.New(sha256.New, []byte(fp), salt, []byte(info))
	buf := make([]byte, n)
	if _, err := io.ReadFull(kdf, buf); err != nil {
		panic(fmt.Sprintf("okvs: hkdf expand: %v", err))
	}
	return buf
}

func xorBlock(a, b Block) Block {
	a.Xor(b)
	return a
}

func indexValue(i int) Block {
	return Block{D0: 0, D1: uint64(i)}
}

// Encode runs one banded-Gaussian-elimination attempt over pairs
// under the given seed. It fails with inconsistentRow if the
// resulting system is singular for this seed; callers wanting
// automatic retry should use EncodeWithRetry. cfg supplies the
// entropy source used to fill non-pivot columns of P with fresh
// randomness; pass nil to use the process-wide default
// (crypto/rand).
func Encode(pairs []Pair, seed Block, cfg *env.Config) (*Encoded, error) {
	n := len(pairs)
	if n == 0 {
		return nil, fmt.Errorf("okvs: cannot encode an empty key set")
	}
	w, err := bandLength(n)
	if err != nil {
		return nil, err
	}
	m := expansionSize(n, w)

	rows := make([]*row, n)
	for i, p := range pairs {
		start, win := deriveRow(p.FP, seed, m, w)
		rows[i] = &row{start: start, win: new(big.Int).Set(win), value: indexValue(p.Index)}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].start < rows[j].start })

	pivots := make(map[int]*row, n)
	for _, cur := range rows {
		for {
			if cur.win.Sign() == 0 {
				if cur.value != (Block{}) {
					return nil, inconsistentRow{}
				}
				break
			}
			col := cur.start + int(cur.win.TrailingZeroBits())
			p, ok := pivots[col]
			if !ok {
				pivots[col] = cur
				break
			}
			delta := cur.start - p.start
			shifted := new(big.Int).Rsh(p.win, uint(delta))
			cur.win.Xor(cur.win, shifted)
			cur.value = xorBlock(cur.value, p.value)
		}
	}

	if cfg == nil {
		cfg = &env.Config{}
	}
	P := make([]Block, m)
	for i := range P {
		lbl, err := ot.NewLabel(cfg.GetRandom())
		if err != nil {
			return nil, fmt.Errorf("okvs: filling random padding: %w", err)
		}
		P[i] = lbl
	}

	cols := make([]int, 0, len(pivots))
	for c := range pivots {
		cols = append(cols, c)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(cols)))

	for _, c := range cols {
		r := pivots[c]
		acc := r.value
		pivotBit := c - r.start
		for i := 0; i < r.win.BitLen(); i++ {
			if i == pivotBit {
				continue
			}
			if r.win.Bit(i) == 1 {
				acc = xorBlock(acc, P[r.start+i])
			}
		}
		P[c] = acc
	}

	return &Encoded{P: P, Seed: seed, M: m, BandLength: w, NItems: n}, nil
}

// EncodeWithRetry calls Encode under successive freshly-drawn seeds
// until one succeeds or maxEncodeRetries is exhausted.
func EncodeWithRetry(pairs []Pair, cfg *env.Config) (*Encoded, error) {
	if cfg == nil {
		cfg = &env.Config{}
	}
	var lastErr error
	for attempt := 0; attempt < maxEncodeRetries; attempt++ {
		seed, err := ot.NewLabel(cfg.GetRandom())
		if err != nil {
			return nil, fmt.Errorf("okvs: drawing seed: %w", err)
		}
		enc, err := Encode(pairs, seed, cfg)
		if err == nil {
			return enc, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("okvs: exhausted %d retries: %w", maxEncodeRetries, lastErr)
}

// Decode reconstructs the value associated with fp. For a key that
// was never Encode-d, the result is indistinguishable from uniform:
// its band, like every key's, is a pseudorandom function of the key
// string alone, and with overwhelming probability touches at least
// one column that no inserted key claimed as a pivot, which Encode
// left filled with fresh randomness.
func (e *Encoded) Decode(fp string) Block {
	start, win := deriveRow(fp, e.Seed, e.M, e.BandLength)
	var acc Block
	for i := 0; i < win.BitLen(); i++ {
		if win.Bit(i) == 1 {
			acc = xorBlock(acc, e.P[start+i])
		}
	}
	return acc
}

// DecodeIndex decodes fp and extracts the low 64 bits as a candidate
// vector index. ok is false when the decoded index lies outside
// [0, n): by the OKVS pseudorandomness guarantee this happens for
// almost every key that was never inserted, and is the signal the
// query engine uses to fall onto the dummy-ciphertext path (see
// package query).
func (e *Encoded) DecodeIndex(fp string, n int) (idx int, ok bool) {
	block := e.Decode(fp)
	idx = int(block.D1)
	if idx < 0 || idx >= n {
		return 0, false
	}
	return idx, true
}
