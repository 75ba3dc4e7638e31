//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package params

import "testing"

func TestDefaultValidates(t *testing.T) {
	p := Default(128, 10, 32, 256, 256)
	if err := p.Validate(); err != nil {
		t.Fatalf("Default(...).Validate() = %v, want nil", err)
	}
}

func TestKFormula(t *testing.T) {
	p := Default(128, 10, 32, 256, 256)
	if got, want := p.K(), 12; got != want {
		t.Fatalf("K() = %d, want %d", got, want)
	}
}

func TestValidateRejectsBadDelta(t *testing.T) {
	p := Default(128, 10, 32, 256, 256)
	p.Delta = p.D
	if err := p.Validate(); err == nil {
		t.Fatal("expected error when delta >= d")
	}
	p.Delta = -1
	if err := p.Validate(); err == nil {
		t.Fatal("expected error when delta < 0")
	}
}

func TestValidateRejectsNonPositiveSizes(t *testing.T) {
	for _, p := range []Params{
		func() Params { p := Default(128, 10, 32, 256, 256); p.D = 0; return p }(),
		func() Params { p := Default(128, 10, 32, 256, 256); p.L = 0; return p }(),
		func() Params { p := Default(128, 10, 32, 256, 256); p.N = 0; return p }(),
		func() Params { p := Default(128, 10, 32, 256, 256); p.M = 0; return p }(),
		func() Params { p := Default(128, 10, 32, 256, 256); p.BatchSize = 0; return p }(),
	} {
		if err := p.Validate(); err == nil {
			t.Fatalf("expected validation error for %+v", p)
		}
	}
}

func TestValidateRejectsUndersizedModulus(t *testing.T) {
	p := Default(128, 10, 32, 256, 256)
	p.PlaintextModulus = uint64(p.D)
	if err := p.Validate(); err == nil {
		t.Fatal("expected error when plaintext modulus too small")
	}
}

func TestValidateRejectsOversizedBlindBits(t *testing.T) {
	p := Default(128, 10, 32, 256, 256)
	p.BlindBits = 40
	if err := p.Validate(); err == nil {
		t.Fatal("expected error when blind bits overflow the wire's i32 M field")
	}
}

func TestMismatchErrorMessage(t *testing.T) {
	err := &MismatchError{Field: "N", Want: 256, Got: 128}
	if err.Error() == "" {
		t.Fatal("expected non-empty error message")
	}
}

func TestDigestStableAcrossCalls(t *testing.T) {
	p := Default(128, 10, 32, 256, 256)
	if p.Digest() != p.Digest() {
		t.Fatal("Digest() not stable across calls for the same Params value")
	}
	q := Default(128, 10, 32, 257, 256)
	if p.Digest() == q.Digest() {
		t.Fatal("Digest() should differ when N differs")
	}
}
