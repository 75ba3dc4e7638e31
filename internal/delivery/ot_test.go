//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package delivery

import (
	"crypto/rand"
	"testing"

	"github.com/acprk/FuzzyPSI-hamming/internal/bits"
	"github.com/acprk/FuzzyPSI-hamming/ot"
	"github.com/acprk/FuzzyPSI-hamming/p2p"
)

func runDeliver(t *testing.T, q *bits.Vector, match bool) *bits.Vector {
	t.Helper()
	senderConn, receiverConn := p2p.Pipe()

	senderCOT := ot.NewCOT(ot.NewCO(), rand.Reader)
	receiverCOT := ot.NewCOT(ot.NewCO(), rand.Reader)

	errs := make(chan error, 2)
	done := make(chan *bits.Vector, 1)

	go func() {
		if err := senderCOT.InitSender(senderConn); err != nil {
			errs <- err
			return
		}
		if err := SenderDeliver(senderCOT, q); err != nil {
			errs <- err
			return
		}
		errs <- nil
	}()

	if err := receiverCOT.InitReceiver(receiverConn); err != nil {
		t.Fatalf("InitReceiver: %v", err)
	}
	v, err := ReceiverDeliver(receiverCOT, q.Len(), match)
	if err != nil {
		t.Fatalf("ReceiverDeliver: %v", err)
	}
	done <- v

	if err := <-errs; err != nil {
		t.Fatalf("sender side: %v", err)
	}
	return <-done
}

func TestDeliverMatchReturnsQueryVector(t *testing.T) {
	q := bits.FromBits([]byte{1, 0, 1, 1, 0, 0, 1, 0, 1, 1, 0, 1, 0, 0, 1, 1, 1, 0, 0, 1})
	got := runDeliver(t, q, true)
	for i := 0; i < q.Len(); i++ {
		if got.Get(i) != q.Get(i) {
			t.Fatalf("bit %d: got %d, want %d (expected delivered vector to equal q on match)", i, got.Get(i), q.Get(i))
		}
	}
}

func TestDeliverNoMatchReturnsDummy(t *testing.T) {
	q := bits.FromBits([]byte{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1})
	got := runDeliver(t, q, false)
	for i := 0; i < q.Len(); i++ {
		if got.Get(i) != 0 {
			t.Fatalf("bit %d: got %d, want 0 (expected all-zero dummy on no-match)", i, got.Get(i))
		}
	}
}

func TestNumLabels(t *testing.T) {
	cases := []struct {
		d    int
		want int
	}{
		{1, 1},
		{128, 1},
		{129, 2},
		{256, 2},
		{257, 3},
	}
	for _, c := range cases {
		if got := numLabels(c.d); got != c.want {
			t.Fatalf("numLabels(%d) = %d, want %d", c.d, got, c.want)
		}
	}
}

func TestVectorLabelRoundTrip(t *testing.T) {
	v := bits.FromBits([]byte{1, 0, 1, 1, 0, 0, 1, 0, 1, 1, 0, 1, 0, 0, 1, 1, 1})
	labels := vectorToLabels(v, v.Len())
	back, err := labelsToVector(labels, v.Len())
	if err != nil {
		t.Fatalf("labelsToVector: %v", err)
	}
	for i := 0; i < v.Len(); i++ {
		if back.Get(i) != v.Get(i) {
			t.Fatalf("bit %d: got %d, want %d", i, back.Get(i), v.Get(i))
		}
	}
}
