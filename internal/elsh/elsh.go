//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package elsh implements E-LSH (subset-parity locality-sensitive
// hashing) fingerprinting: each vector is reduced to L short strings,
// one per random subset of its bit positions, such that vectors
// within the Hamming threshold collide on at least one subset with
// overwhelming probability while unrelated vectors almost never do.
package elsh

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"math/rand"

	"golang.org/x/crypto/hkdf"

	"github.com/acprk/FuzzyPSI-hamming/internal/bits"
)

// Fingerprinter derives the L deterministic subsets S_0..S_{L-1} of
// {0,...,d-1}, each of size k = ceil(d/(delta+1)), from a shared
// seed, and projects vectors onto them.
type Fingerprinter struct {
	d       int
	k       int
	l       int
	subsets [][]int
}

// New derives a Fingerprinter restricted to the full dimension pool
// {0,...,d-1}. Both parties must call New with identical (d, delta,
// l, seed) to obtain identical subsets; this is the only place the
// protocol relies on a shared source of randomness that is not
// itself exchanged over the wire. Equivalent to NewWithPool(d, delta,
// l, seed, nil).
func New(d, delta, l int, seed int64) (*Fingerprinter, error) {
	return NewWithPool(d, delta, l, seed, nil)
}

// NewWithPool derives a Fingerprinter the same way New does, but
// draws every round's k-subset only from pool (a set of dimension
// indices, each in [0,d)) instead of the full {0,...,d-1}. A nil or
// empty pool means the full range, matching New. This is the
// mechanism callers who want τ-gating use: estimate each dimension's
// bit-entropy externally, keep the ones above τ, and pass that
// restricted pool here. Both parties must agree on the same pool, the
// same way they must agree on seed.
func NewWithPool(d, delta, l int, seed int64, pool []int) (*Fingerprinter, error) {
	if d <= 0 {
		return nil, fmt.Errorf("elsh: d must be positive, got %d", d)
	}
	k := (d + delta) / (delta + 1)
	if k <= 0 || k > d {
		return nil, fmt.Errorf("elsh: derived subset size %d invalid for d=%d", k, d)
	}
	if l <= 0 {
		return nil, fmt.Errorf("elsh: l must be positive, got %d", l)
	}
	if len(pool) == 0 {
		pool = make([]int, d)
		for i := range pool {
			pool[i] = i
		}
	} else if len(pool) < k {
		return nil, fmt.Errorf("elsh: pool of size %d smaller than subset size %d", len(pool), k)
	} else {
		for _, idx := range pool {
			if idx < 0 || idx >= d {
				return nil, fmt.Errorf("elsh: pool index %d out of range [0,%d)", idx, d)
			}
		}
	}

	roundSeeds, err := expandSeed(seed, l)
	if err != nil {
		return nil, err
	}

	subsets := make([][]int, l)
	for round := 0; round < l; round++ {
		subsets[round] = sampleSubset(roundSeeds[round], pool, k)
	}

	return &Fingerprinter{d: d, k: k, l: l, subsets: subsets}, nil
}

// expandSeed stretches a single 64-bit protocol seed into l
// independent 64-bit round seeds using HKDF-SHA256, so that the
// per-round subsets are not trivially related to one another even
// though they all derive from the same shared constant.
func expandSeed(seed int64, l int) ([]int64, error) {
	secret := make([]byte, 8)
	binary.BigEndian.PutUint64(secret, uint64(seed))
	kdf := hkdf.New(sha256.New, secret, nil, []byte("fpsi-hamming/elsh-subset"))

	out := make([]int64, l)
	buf := make([]byte, 8)
	for i := 0; i < l; i++ {
		if _, err := io.ReadFull(kdf, buf); err != nil {
			return nil, fmt.Errorf("elsh: seed expansion: %w", err)
		}
		out[i] = int64(binary.BigEndian.Uint64(buf))
	}
	return out, nil
}

// sampleSubset draws a uniformly random k-subset of pool from a
// seeded, deterministic PRNG (a Fisher-Yates partial shuffle over a
// private copy of pool, so the caller's slice is never mutated), then
// sorts the result for a canonical, index-stable projection order.
func sampleSubset(seed int64, pool []int, k int) []int {
	rng := rand.New(rand.NewSource(seed))
	work := make([]int, len(pool))
	copy(work, pool)
	n := len(work)
	for i := 0; i < k; i++ {
		j := i + rng.Intn(n-i)
		work[i], work[j] = work[j], work[i]
	}
	chosen := make([]int, k)
	copy(chosen, work[:k])

	for i := 1; i < len(chosen); i++ {
		for j := i; j > 0 && chosen[j-1] > chosen[j]; j-- {
			chosen[j-1], chosen[j] = chosen[j], chosen[j-1]
		}
	}
	return chosen
}

// K returns the subset size k = ceil(d/(delta+1)).
func (f *Fingerprinter) K() int {
	return f.k
}

// L returns the number of rounds.
func (f *Fingerprinter) L() int {
	return f.l
}

// Subset returns the sorted bit indices making up round r's subset.
// The returned slice must not be modified.
func (f *Fingerprinter) Subset(r int) []int {
	return f.subsets[r]
}

// Fingerprint reduces v to a single parity bit over round r's subset
// (the XOR of v's bits at the subset's k positions), and returns the
// canonical "l||p" string identifying that round and that bit. Two
// vectors within the Hamming threshold agree on this bit, for at
// least one round, with overwhelming probability; unrelated vectors
// agree by chance only half the time per round.
func (f *Fingerprinter) Fingerprint(v *bits.Vector, r int) (string, error) {
	if v.Len() != f.d {
		return "", fmt.Errorf("elsh: vector length %d does not match d=%d", v.Len(), f.d)
	}
	var parity byte
	for _, idx := range f.subsets[r] {
		parity ^= v.Get(idx)
	}
	return fmt.Sprintf("%d||%d", r, parity&1), nil
}

// Fingerprints returns v's fingerprint for every round, Fingerprint
// applied for r = 0..L-1.
func (f *Fingerprinter) Fingerprints(v *bits.Vector) ([]string, error) {
	out := make([]string, f.l)
	for r := 0; r < f.l; r++ {
		fp, err := f.Fingerprint(v, r)
		if err != nil {
			return nil, err
		}
		out[r] = fp
	}
	return out, nil
}
