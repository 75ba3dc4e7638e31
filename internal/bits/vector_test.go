//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package bits

import "testing"

func TestSetGetClear(t *testing.T) {
	v := NewVector(13)
	if v.Len() != 13 {
		t.Fatalf("Len() = %d, want 13", v.Len())
	}
	for i := 0; i < 13; i++ {
		if v.Get(i) != 0 {
			t.Fatalf("bit %d not zero-initialized", i)
		}
	}
	v.Set(0)
	v.Set(12)
	v.Set(7)
	for _, i := range []int{0, 12, 7} {
		if v.Get(i) != 1 {
			t.Fatalf("bit %d not set", i)
		}
	}
	v.Clear(7)
	if v.Get(7) != 0 {
		t.Fatal("bit 7 not cleared")
	}
	if v.Get(0) != 1 || v.Get(12) != 1 {
		t.Fatal("clearing one bit disturbed others")
	}
}

func TestFromBitsRoundTrip(t *testing.T) {
	vals := []byte{1, 0, 1, 1, 0, 0, 1, 0, 1}
	v := FromBits(vals)
	for i, want := range vals {
		if v.Get(i) != want {
			t.Fatalf("bit %d = %d, want %d", i, v.Get(i), want)
		}
	}
	packed, err := FromPacked(v.Bytes(), v.Len())
	if err != nil {
		t.Fatalf("FromPacked: %v", err)
	}
	for i, want := range vals {
		if packed.Get(i) != want {
			t.Fatalf("round-tripped bit %d = %d, want %d", i, packed.Get(i), want)
		}
	}
}

func TestFromPackedLengthMismatch(t *testing.T) {
	if _, err := FromPacked([]byte{0, 0}, 20); err == nil {
		t.Fatal("expected error on packed-length mismatch")
	}
}

func TestHammingDistance(t *testing.T) {
	a := FromBits([]byte{1, 1, 0, 0, 1, 0, 1, 1})
	b := FromBits([]byte{1, 0, 0, 1, 1, 0, 0, 1})
	dist, err := HammingDistance(a, b)
	if err != nil {
		t.Fatalf("HammingDistance: %v", err)
	}
	if dist != 3 {
		t.Fatalf("HammingDistance = %d, want 3", dist)
	}

	c := NewVector(4)
	if _, err := HammingDistance(a, c); err == nil {
		t.Fatal("expected length-mismatch error")
	}
}

func TestXor(t *testing.T) {
	a := FromBits([]byte{1, 1, 0, 1})
	b := FromBits([]byte{1, 0, 0, 0})
	x, err := Xor(a, b)
	if err != nil {
		t.Fatalf("Xor: %v", err)
	}
	want := []byte{0, 1, 0, 1}
	for i, w := range want {
		if x.Get(i) != w {
			t.Fatalf("bit %d = %d, want %d", i, x.Get(i), w)
		}
	}
}

func TestProject(t *testing.T) {
	v := FromBits([]byte{0, 1, 1, 0, 1, 0, 0, 1})
	got := v.Project([]int{1, 4, 7, 0})
	want := []byte{1, 1, 1, 0}
	for i, w := range want {
		if got[i] != w {
			t.Fatalf("projected[%d] = %d, want %d", i, got[i], w)
		}
	}
}

func TestBits(t *testing.T) {
	vals := []byte{1, 0, 1, 0, 0, 1, 1, 1, 0}
	v := FromBits(vals)
	got := v.Bits()
	if len(got) != len(vals) {
		t.Fatalf("Bits() length = %d, want %d", len(got), len(vals))
	}
	for i, w := range vals {
		if got[i] != w {
			t.Fatalf("Bits()[%d] = %d, want %d", i, got[i], w)
		}
	}
}
