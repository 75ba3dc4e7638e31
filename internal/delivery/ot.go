//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package delivery

import (
	"github.com/acprk/FuzzyPSI-hamming/internal/bits"
	"github.com/acprk/FuzzyPSI-hamming/internal/ferrors"
	"github.com/acprk/FuzzyPSI-hamming/ot"
)

// numLabels reports how many 128-bit OT labels a d-bit vector packs
// into.
func numLabels(d int) int {
	bytes := (d + 7) / 8
	return (bytes + 15) / 16
}

func vectorToLabels(v *bits.Vector, n int) []ot.Label {
	data := v.Bytes()
	padded := make([]byte, numLabels(n)*16)
	copy(padded, data)
	labels := make([]ot.Label, numLabels(n))
	for i := range labels {
		labels[i].SetBytes(padded[i*16 : (i+1)*16])
	}
	return labels
}

func labelsToVector(labels []ot.Label, n int) (*bits.Vector, error) {
	var buf ot.LabelData
	data := make([]byte, 0, len(labels)*16)
	for _, l := range labels {
		data = append(data, l.Bytes(&buf)...)
	}
	packedLen := (n + 7) / 8
	return bits.FromPacked(data[:packedLen], n)
}

// SenderDeliver runs the Sender's half of spec.md §4.4's 1-of-2 OT:
// it offers an all-zero dummy branch and the query vector q as the
// two OT messages, one pair of messages per 128-bit label the
// d-bit vector spans. The Receiver's choice bit (the PEqT-aggregated
// match flag) determines which branch it decodes; the Sender never
// learns which branch was taken.
func SenderDeliver(cot *ot.COT, q *bits.Vector) error {
	dummy := bits.NewVector(q.Len())
	dummyLabels := vectorToLabels(dummy, q.Len())
	qLabels := vectorToLabels(q, q.Len())

	wires := make([]ot.Wire, len(qLabels))
	for i := range wires {
		wires[i] = ot.Wire{L0: dummyLabels[i], L1: qLabels[i]}
	}
	if err := cot.Send(wires); err != nil {
		return ferrors.New(ferrors.ChannelError, "delivery.SenderDeliver", err)
	}
	return nil
}

// ReceiverDeliver runs the Receiver's half: it supplies the same
// choice bit (the aggregated match flag both sides computed in
// PEqT) for every label and decodes the delivered branch back into a
// d-bit vector. When match is false the decoded vector is the
// all-zero dummy and the caller should discard it rather than add it
// to the result set.
func ReceiverDeliver(cot *ot.COT, d int, match bool) (*bits.Vector, error) {
	n := numLabels(d)
	flags := make([]bool, n)
	for i := range flags {
		flags[i] = match
	}
	result := make([]ot.Label, n)
	if err := cot.Receive(flags, result); err != nil {
		return nil, ferrors.New(ferrors.ChannelError, "delivery.ReceiverDeliver", err)
	}
	v, err := labelsToVector(result, d)
	if err != nil {
		return nil, ferrors.New(ferrors.ProtocolAbort, "delivery.ReceiverDeliver", err)
	}
	return v, nil
}
