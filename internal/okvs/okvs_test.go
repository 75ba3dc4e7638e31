//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package okvs

import (
	"fmt"
	"testing"

	"github.com/acprk/FuzzyPSI-hamming/env"
)

func testPairs(n int) []Pair {
	pairs := make([]Pair, n)
	for i := 0; i < n; i++ {
		pairs[i] = Pair{FP: fmt.Sprintf("%d||%d", i, i%2), Index: i}
	}
	return pairs
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	pairs := testPairs(20)
	enc, err := EncodeWithRetry(pairs, nil)
	if err != nil {
		t.Fatalf("EncodeWithRetry: %v", err)
	}
	for _, p := range pairs {
		idx, ok := enc.DecodeIndex(p.FP, len(pairs))
		if !ok {
			t.Fatalf("key %q: DecodeIndex reported not-ok for an inserted key", p.FP)
		}
		if idx != p.Index {
			t.Fatalf("key %q: DecodeIndex = %d, want %d", p.FP, idx, p.Index)
		}
	}
}

func TestEncodeRejectsEmptySet(t *testing.T) {
	if _, err := Encode(nil, Block{}, nil); err == nil {
		t.Fatal("expected error encoding an empty pair set")
	}
}

func TestEncodeWithCustomConfig(t *testing.T) {
	pairs := testPairs(12)
	cfg := &env.Config{}
	enc, err := EncodeWithRetry(pairs, cfg)
	if err != nil {
		t.Fatalf("EncodeWithRetry: %v", err)
	}
	if enc.NItems != len(pairs) {
		t.Fatalf("NItems = %d, want %d", enc.NItems, len(pairs))
	}
	if enc.M < len(pairs) {
		t.Fatalf("M = %d smaller than n = %d", enc.M, len(pairs))
	}
}

func TestBandLengthTable(t *testing.T) {
	cases := []struct {
		n    int
		want int
	}{
		{1, 339},
		{1 << 14, 339},
		{1<<14 + 1, 350},
		{1 << 16, 350},
		{1<<16 + 1, 366},
		{1 << 24, 413},
	}
	for _, c := range cases {
		got, err := bandLength(c.n)
		if err != nil {
			t.Fatalf("bandLength(%d): %v", c.n, err)
		}
		if got != c.want {
			t.Fatalf("bandLength(%d) = %d, want %d", c.n, got, c.want)
		}
	}
	if _, err := bandLength(1<<24 + 1); err == nil {
		t.Fatal("expected error beyond the tuned table's range")
	}
}

func TestDecodeUnknownKeyDoesNotPanic(t *testing.T) {
	pairs := testPairs(10)
	enc, err := EncodeWithRetry(pairs, nil)
	if err != nil {
		t.Fatalf("EncodeWithRetry: %v", err)
	}
	// An unknown key must still decode to *some* value without error;
	// whether it happens to land in-range is a probabilistic, not
	// deterministic, property, so this only checks it doesn't panic
	// and produces a stable value across repeated calls.
	a := enc.Decode("99||1")
	b := enc.Decode("99||1")
	if a != b {
		t.Fatal("Decode not deterministic for the same key")
	}
}
