//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package session

import (
	mrand "math/rand"
	"net"
	"testing"
	"time"

	"github.com/acprk/FuzzyPSI-hamming/internal/bits"
	"github.com/acprk/FuzzyPSI-hamming/internal/params"
)

func vec(bitvals ...byte) *bits.Vector {
	return bits.FromBits(bitvals)
}

// vecBits builds a d-bit Vector from val, bit d-1 (the most
// significant bit of val) landing at index 0, so that a hex literal
// like 0x0003 reads left-to-right the way spec.md §8's scenarios list
// it.
func vecBits(d int, val uint64) *bits.Vector {
	bitvals := make([]byte, d)
	for i := 0; i < d; i++ {
		bitvals[i] = byte((val >> uint(d-1-i)) & 1)
	}
	return bits.FromBits(bitvals)
}

// randomBitsVec draws a uniformly random d-bit Vector.
func randomBitsVec(rng *mrand.Rand, d int) *bits.Vector {
	bitvals := make([]byte, d)
	for i := range bitvals {
		bitvals[i] = byte(rng.Intn(2))
	}
	return bits.FromBits(bitvals)
}

// flipRandomBits returns a copy of v with k distinct, randomly chosen
// bit positions complemented.
func flipRandomBits(rng *mrand.Rand, v *bits.Vector, k int) *bits.Vector {
	bitvals := v.Bits()
	for _, idx := range rng.Perm(len(bitvals))[:k] {
		bitvals[idx] ^= 1
	}
	return bits.FromBits(bitvals)
}

// runSession wires a Receiver and a Sender together over an in-memory
// net.Pipe, the net.Conn equivalent of p2p.Pipe used elsewhere in the
// module, and runs both RunReceiver and RunSender to completion.
func runSession(t *testing.T, p params.Params, w, q []*bits.Vector) (*ReceiverResult, *SenderResult) {
	t.Helper()
	receiverConn, senderConn := net.Pipe()

	type rOut struct {
		res *ReceiverResult
		err error
	}
	rCh := make(chan rOut, 1)
	go func() {
		res, err := RunReceiver(receiverConn, ReceiverConfig{Params: p, W: w}, nil)
		rCh <- rOut{res, err}
	}()

	sRes, sErr := RunSender(senderConn, SenderConfig{Params: p, Q: q}, nil)
	if sErr != nil {
		t.Fatalf("RunSender: %v", sErr)
	}

	out := <-rCh
	if out.err != nil {
		t.Fatalf("RunReceiver: %v", out.err)
	}
	return out.res, sRes
}

// TestScenarioE1 mirrors spec.md §8's E1: a single Receiver vector and
// a single Sender vector one bit away, under a threshold that should
// accept it.
func TestScenarioE1(t *testing.T) {
	p := params.Default(8, 1, 4, 1, 1)
	w := []*bits.Vector{vec(0, 0, 0, 0, 0, 0, 0, 0)}
	q := []*bits.Vector{vec(0, 0, 0, 0, 0, 0, 0, 1)}

	rRes, sRes := runSession(t, p, w, q)

	if len(sRes.Matched) != 1 || sRes.Matched[0] != 0 {
		t.Fatalf("SenderResult.Matched = %v, want [0]", sRes.Matched)
	}
	if len(rRes.Matches) != 1 {
		t.Fatalf("ReceiverResult.Matches has %d entries, want 1", len(rRes.Matches))
	}
	if rRes.Matches[0].Get(7) != 1 {
		t.Fatalf("delivered vector bit 7 = %d, want 1 (expected q itself, not the dummy)", rRes.Matches[0].Get(7))
	}
}

// TestScenarioE2 mirrors spec.md §8's E2: a Sender vector far outside
// the threshold must not appear in the intersection.
func TestScenarioE2(t *testing.T) {
	p := params.Default(8, 1, 4, 1, 1)
	w := []*bits.Vector{vec(0, 0, 0, 0, 0, 0, 0, 0)}
	q := []*bits.Vector{vec(1, 1, 1, 1, 0, 0, 0, 0)}

	rRes, sRes := runSession(t, p, w, q)

	if len(sRes.Matched) != 0 {
		t.Fatalf("SenderResult.Matched = %v, want empty", sRes.Matched)
	}
	if len(rRes.Matches) != 0 {
		t.Fatalf("ReceiverResult.Matches has %d entries, want 0", len(rRes.Matches))
	}
}

// TestScenarioE3 mirrors spec.md §8's E3: two Receiver vectors and
// three Sender vectors, two within the threshold of one W entry each
// and one equidistant from both and outside the threshold.
func TestScenarioE3(t *testing.T) {
	p := params.Default(16, 2, 8, 2, 3)
	w := []*bits.Vector{vecBits(16, 0x0000), vecBits(16, 0xFFFF)}
	q := []*bits.Vector{vecBits(16, 0x0003), vecBits(16, 0x7FFF), vecBits(16, 0x5555)}

	_, sRes := runSession(t, p, w, q)

	matched := map[int]bool{}
	for _, j := range sRes.Matched {
		matched[j] = true
	}
	if !matched[0] {
		t.Error("0x0003 (Hamming distance 2 from 0x0000) should be in the intersection")
	}
	if !matched[1] {
		t.Error("0x7FFF (Hamming distance 1 from 0xFFFF) should be in the intersection")
	}
	if matched[2] {
		t.Error("0x5555 (Hamming distance 8 from both W entries, δ=2) should not be in the intersection")
	}
}

// TestScenarioE4 mirrors spec.md §8's E4 and exercises testable
// property 1 (completeness recall) and property 2 (soundness) at
// d=128/δ=10/L=32: half the Sender's queries are near-copies of a
// random Receiver entry (5 bit flips, well inside δ=10), half are
// independent random vectors.
func TestScenarioE4(t *testing.T) {
	const (
		d     = 128
		delta = 10
		l     = 32
		n     = 256
		near  = 128
		far   = 128
	)
	p := params.Default(d, delta, l, n, near+far)
	rng := mrand.New(mrand.NewSource(12345))

	w := make([]*bits.Vector, n)
	for i := range w {
		w[i] = randomBitsVec(rng, d)
	}

	q := make([]*bits.Vector, 0, near+far)
	perm := rng.Perm(n)
	for i := 0; i < near; i++ {
		q = append(q, flipRandomBits(rng, w[perm[i]], 5))
	}
	for i := 0; i < far; i++ {
		q = append(q, randomBitsVec(rng, d))
	}

	_, sRes := runSession(t, p, w, q)

	matchedNear, matchedFar := 0, 0
	for _, j := range sRes.Matched {
		if j < near {
			matchedNear++
		} else {
			matchedFar++
		}
	}
	if matchedNear < int(0.99*float64(near)) {
		t.Errorf("recall too low: %d/%d near-W queries matched, want >= 0.99 (property 1)",
			matchedNear, near)
	}
	if matchedFar > far/10 {
		t.Errorf("soundness violated: %d/%d unrelated queries matched (property 2)",
			matchedFar, far)
	}
}

// TestScenarioE5 mirrors spec.md §8's E5 and exercises testable
// properties 6 (size invariance) and 7 (dummy-hit indistinguishability):
// a genuine OKVS hit and a forced OKVS miss (a query far outside every
// W entry's threshold, whose fingerprints were never inserted) must
// put the same number of bytes on the wire, since every round sends a
// real or dummy ciphertext set regardless of which branch was taken.
func TestScenarioE5(t *testing.T) {
	const d = 128
	p := params.Default(d, 10, 32, 4, 1)
	rng := mrand.New(mrand.NewSource(99))

	w := make([]*bits.Vector, 4)
	for i := range w {
		w[i] = randomBitsVec(rng, d)
	}

	hitQ := []*bits.Vector{w[0]}
	missQ := []*bits.Vector{flipRandomBits(rng, w[0], d/2)}

	hitR, hitS := runSession(t, p, w, hitQ)
	missR, missS := runSession(t, p, w, missQ)

	if len(hitR.Matches) != 1 {
		t.Fatalf("hit scenario: got %d matches, want 1", len(hitR.Matches))
	}
	if len(missR.Matches) != 0 {
		t.Fatalf("miss scenario: got %d matches, want 0", len(missR.Matches))
	}

	if got, want := missS.IOStats.Sent.Load(), hitS.IOStats.Sent.Load(); got != want {
		t.Errorf("sender bytes sent differ between hit (%d) and miss (%d): wire shape leaks the match bit",
			want, got)
	}
	if got, want := missR.IOStats.Sent.Load(), hitR.IOStats.Sent.Load(); got != want {
		t.Errorf("receiver bytes sent differ between hit (%d) and miss (%d): wire shape leaks the match bit",
			want, got)
	}
}

// TestScenarioE6 mirrors spec.md §8's E6: the channel drops mid-query.
// Simulated with a QueryDeadline so short it has already elapsed by
// the time the Receiver's first query-phase read fires, closing its
// connection and forcing the Sender's own in-flight read to fail too —
// both sides must return a non-nil error (their Fatal transition) and
// neither produces a result alongside that error.
func TestScenarioE6(t *testing.T) {
	p := params.Default(8, 1, 4, 1, 1)
	w := []*bits.Vector{vec(0, 0, 0, 0, 0, 0, 0, 0)}
	q := []*bits.Vector{vec(0, 0, 0, 0, 0, 0, 0, 1)}

	receiverConn, senderConn := net.Pipe()

	type rOut struct {
		res *ReceiverResult
		err error
	}
	rCh := make(chan rOut, 1)
	go func() {
		res, err := RunReceiver(receiverConn, ReceiverConfig{
			Params:        p,
			W:             w,
			QueryDeadline: time.Nanosecond,
		}, nil)
		rCh <- rOut{res, err}
	}()

	sRes, sErr := RunSender(senderConn, SenderConfig{Params: p, Q: q}, nil)
	if sErr == nil {
		t.Error("expected RunSender to fail once the receiver's connection drops mid-query")
	}
	if sRes != nil {
		t.Error("RunSender returned a non-nil result alongside its error; q may have leaked")
	}

	out := <-rCh
	if out.err == nil {
		t.Error("expected RunReceiver to fail once its query deadline elapses")
	}
	if out.res != nil {
		t.Error("RunReceiver returned a non-nil result alongside its error")
	}
}

// TestSessionIDPopulated checks that both sides' results carry a
// non-empty, session-local identifier (see newSessionID).
func TestSessionIDPopulated(t *testing.T) {
	p := params.Default(8, 1, 4, 1, 1)
	w := []*bits.Vector{vec(0, 0, 0, 0, 0, 0, 0, 0)}
	q := []*bits.Vector{vec(0, 0, 0, 0, 0, 0, 0, 0)}

	rRes, sRes := runSession(t, p, w, q)
	if rRes.SessionID == "" {
		t.Fatal("ReceiverResult.SessionID is empty")
	}
	if sRes.SessionID == "" {
		t.Fatal("SenderResult.SessionID is empty")
	}
	if rRes.SessionID == sRes.SessionID {
		t.Fatal("Receiver and Sender session IDs should be independent, got equal")
	}
}

func TestRunReceiverRejectsWrongSetSize(t *testing.T) {
	p := params.Default(8, 1, 4, 2, 1)
	w := []*bits.Vector{vec(0, 0, 0, 0, 0, 0, 0, 0)} // len 1, but p.N == 2
	receiverConn, peer := net.Pipe()
	defer peer.Close()

	if _, err := RunReceiver(receiverConn, ReceiverConfig{Params: p, W: w}, nil); err == nil {
		t.Fatal("expected ConfigMismatch error for len(W) != N")
	}
}

func TestRunSenderRejectsWrongSetSize(t *testing.T) {
	p := params.Default(8, 1, 4, 1, 2)
	q := []*bits.Vector{vec(0, 0, 0, 0, 0, 0, 0, 0)} // len 1, but p.M == 2
	senderConn, peer := net.Pipe()
	defer peer.Close()

	if _, err := RunSender(senderConn, SenderConfig{Params: p, Q: q}, nil); err == nil {
		t.Fatal("expected ConfigMismatch error for len(Q) != M")
	}
}
