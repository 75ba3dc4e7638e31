//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Command fpsi-receiver runs the Receiver side of the fuzzy private
// set intersection protocol: it listens for the Sender, loads its own
// set of binary vectors, and at the end of the session reports how
// many of the Sender's vectors lay within the configured Hamming distance
// of some vector it holds.
package main

import (
	"crypto/rand"
	"flag"
	"fmt"
	"log"
	"math/big"
	"os"

	"github.com/acprk/FuzzyPSI-hamming/env"
	"github.com/acprk/FuzzyPSI-hamming/internal/bits"
	"github.com/acprk/FuzzyPSI-hamming/internal/params"
	"github.com/acprk/FuzzyPSI-hamming/internal/session"
	"github.com/acprk/FuzzyPSI-hamming/internal/stats"
	"github.com/acprk/FuzzyPSI-hamming/p2p"
)

func main() {
	d := flag.Int("d", 128, "bit dimension of every vector")
	delta := flag.Int("delta", 10, "Hamming distance threshold")
	l := flag.Int("l", 32, "number of E-LSH fingerprints per vector")
	n := flag.Int("n", 256, "size of the Receiver's set W")
	m := flag.Int("m", 256, "size of the Sender's set Q")
	addr := flag.String("addr", ":12345", "listen address")
	statsPath := flag.String("stats", "", "append a phase-timing report to this file")
	flag.Parse()

	p := params.Default(*d, *delta, *l, *n, *m)
	if err := p.Validate(); err != nil {
		log.Fatalf("fpsi-receiver: %v", err)
	}

	w := make([]*bits.Vector, p.N)
	for i := range w {
		w[i] = randomVector(p.D)
	}

	nc, err := p2p.Listen(*addr)
	if err != nil {
		log.Fatalf("fpsi-receiver: %v", err)
	}
	defer nc.Close()

	var timing *stats.Timing
	if *statsPath != "" {
		timing = stats.NewTiming()
	}

	result, err := session.RunReceiver(nc, session.ReceiverConfig{
		Params: p,
		W:      w,
		Timing: timing,
	}, &env.Config{Rand: rand.Reader})
	if err != nil {
		fmt.Fprintf(os.Stderr, "fpsi-receiver: session failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("fpsi-receiver: session %s: %d of %d Sender vectors matched\n", result.SessionID, len(result.Matches), p.M)

	if timing != nil {
		timing.Print(result.IOStats)
		if err := stats.AppendReport(*statsPath, "receiver", timing, result.IOStats); err != nil {
			fmt.Fprintf(os.Stderr, "fpsi-receiver: %v\n", err)
		}
	}
}

// randomVector draws a uniformly random d-bit vector, standing in for
// a real data-loading path (out of scope per spec.md §1: "random
// test-data generation" is an external collaborator).
func randomVector(d int) *bits.Vector {
	v := bits.NewVector(d)
	max := big.NewInt(2)
	for i := 0; i < d; i++ {
		bit, err := rand.Int(rand.Reader, max)
		if err != nil {
			log.Fatalf("fpsi-receiver: random vector: %v", err)
		}
		if bit.Sign() != 0 {
			v.Set(i)
		}
	}
	return v
}
