//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package params defines the compile-time protocol parameters shared
// by both parties of the fuzzy private set intersection protocol.
package params

import (
	"fmt"

	gomath "github.com/acprk/FuzzyPSI-hamming/pkg/math"
)

// Params collects the parameters that both the Receiver and the
// Sender must agree on before a session starts. The wire format
// carries two of these values, N and BlindBits, and the receiving
// party compares each against its own; no other parameter is
// compared across the two parties.
type Params struct {
	// D is the bit dimension of every vector in W and Q.
	D int

	// Delta is the Hamming distance threshold.
	Delta int

	// L is the number of E-LSH fingerprints computed per vector.
	L int

	// Tau is the minimum estimated bit-entropy a dimension must have
	// to be eligible for the E-LSH subset pool.
	Tau float64

	// N is the Receiver's set size, |W|.
	N int

	// M is the Sender's set size, |Q|.
	M int

	// Seed seeds the E-LSH subset derivation. Both parties must use
	// the same seed so that they compute identical subsets S_0..S_{L-1}.
	Seed int64

	// PlaintextModulus is the BFV plaintext modulus. It must exceed
	// d + the blind range (2^20) with headroom for one multiplicative
	// level of noise growth.
	PlaintextModulus uint64

	// BatchSize is the number of packed ciphertexts sent per
	// offline-phase batch, B in the wire format.
	BatchSize int

	// BlindBits controls the size of the threshold-sum blind M: it is
	// drawn uniformly from [0, 2^BlindBits).
	BlindBits int
}

// Default fills in the ancillary parameters (Tau, Seed,
// PlaintextModulus, BatchSize, BlindBits) with the values used
// throughout the test suite and the reference CLI tools, given the
// core sizing parameters (d, delta, l, n, m).
func Default(d, delta, l, n, m int) Params {
	return Params{
		D:                d,
		Delta:            delta,
		L:                l,
		Tau:              0,
		N:                n,
		M:                m,
		Seed:             0x46505349, // "FPSI"
		PlaintextModulus: defaultPlaintextModulus(d),
		BatchSize:        16,
		BlindBits:        20,
	}
}

// defaultPlaintextModulus picks a prime plaintext modulus comfortably
// above d plus the blind range, matching the headroom rule in the
// design notes (plaintext modulus > d + max blind, with slack for one
// multiplicative level).
func defaultPlaintextModulus(d int) uint64 {
	// 2^21 - 9 = 2097143 is prime and exceeds any practical d plus a
	// 20-bit blind with room to spare.
	const p uint64 = 2097143
	return p
}

// K returns the E-LSH subset size k = ceil(d/(delta+1)).
func (p Params) K() int {
	return (p.D + p.Delta) / (p.Delta + 1)
}

// MismatchError reports that the two parties configured a parameter
// differently; it is always fatal (ConfigMismatch, see the error
// kinds in package ferrors).
type MismatchError struct {
	Field string
	Want  interface{}
	Got   interface{}
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("params: %s mismatch: want %v, got %v", e.Field, e.Want, e.Got)
}

// Validate checks that the parameter set is internally consistent. It
// does not know the peer's parameters; the only cross-party check the
// wire format affords is N (carried literally, see internal/offline)
// and BlindBits (sent once per query, see internal/query).
func (p Params) Validate() error {
	if p.D <= 0 {
		return fmt.Errorf("params: d must be positive, got %d", p.D)
	}
	if p.Delta < 0 || p.Delta >= p.D {
		return fmt.Errorf("params: delta out of range [0,%d), got %d", p.D, p.Delta)
	}
	if p.L <= 0 {
		return fmt.Errorf("params: l must be positive, got %d", p.L)
	}
	if p.N <= 0 || p.M <= 0 {
		return fmt.Errorf("params: n and m must be positive, got n=%d m=%d", p.N, p.M)
	}
	if p.BatchSize <= 0 {
		return fmt.Errorf("params: batch size must be positive, got %d", p.BatchSize)
	}
	if p.PlaintextModulus <= uint64(p.D)+(1<<p.BlindBits) {
		return fmt.Errorf("params: plaintext modulus %d too small for d=%d and blind bits=%d",
			p.PlaintextModulus, p.D, p.BlindBits)
	}
	// The blind M travels on the wire as an i32 (spec.md §6); a
	// BlindBits that lets M exceed uint32 range would silently
	// truncate on the wire rather than fail loudly here.
	if p.BlindBits < 0 || uint64(1)<<p.BlindBits > gomath.MaxUint32 {
		return fmt.Errorf("params: blind bits %d does not fit the wire's i32 M field", p.BlindBits)
	}
	return nil
}

// Digest returns a snapshot of the core sizing parameters, useful for
// a log line an operator can diff across two processes to confirm
// they were launched with matching flags. It never crosses the wire:
// spec.md §6 states plainly that the wire format does not carry the
// parameters, so this exists purely as a debugging aid.
func (p Params) Digest() [6]int64 {
	return [6]int64{
		int64(p.D), int64(p.Delta), int64(p.L), int64(p.N), int64(p.M), p.Seed,
	}
}
