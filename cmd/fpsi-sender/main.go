//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Command fpsi-sender runs the Sender side of the fuzzy private set
// intersection protocol: it dials the Receiver, loads its own set of
// query vectors, and at the end of the session reports how many of
// them the protocol judged to be within the configured Hamming
// distance of some Receiver vector.
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
	addr := flag.String("addr", "127.0.0.1:12345", "Receiver address")
	statsPath := flag.String("stats", "", "append a phase-timing report to this file")
	flag.Parse()

	p := params.Default(*d, *delta, *l, *n, *m)
	if err := p.Validate(); err != nil {
		log.Fatalf("fpsi-sender: %v", err)
	}

	q := make([]*bits.Vector, p.M)
	for i := range q {
		q[i] = randomVector(p.D)
	}

	nc, err := p2p.Dial(*addr)
	if err != nil {
		log.Fatalf("fpsi-sender: %v", err)
	}
	defer nc.Close()

	var timing *stats.Timing
	if *statsPath != "" {
		timing = stats.NewTiming()
	}

	result, err := session.RunSender(nc, session.SenderConfig{
		Params: p,
		Q:      q,
		Timing: timing,
	}, &env.Config{Rand: rand.Reader})
	if err != nil {
		fmt.Fprintf(os.Stderr, "fpsi-sender: session failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("fpsi-sender: session %s: %d of %d query vectors matched\n", result.SessionID, len(result.Matched), p.M)

	if timing != nil {
		timing.Print(result.IOStats)
		if err := stats.AppendReport(*statsPath, "sender", timing, result.IOStats); err != nil {
			fmt.Fprintf(os.Stderr, "fpsi-sender: %v\n", err)
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
			log.Fatalf("fpsi-sender: random vector: %v", err)
		}
		if bit.Sign() != 0 {
			v.Set(i)
		}
	}
	return v
}
