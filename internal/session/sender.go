//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package session

import (
	"fmt"
	"log"
	"net"

	"github.com/acprk/FuzzyPSI-hamming/env"
	"github.com/acprk/FuzzyPSI-hamming/internal/bits"
	"github.com/acprk/FuzzyPSI-hamming/internal/delivery"
	"github.com/acprk/FuzzyPSI-hamming/internal/ferrors"
	"github.com/acprk/FuzzyPSI-hamming/internal/offline"
	"github.com/acprk/FuzzyPSI-hamming/internal/params"
	"github.com/acprk/FuzzyPSI-hamming/internal/query"
	"github.com/acprk/FuzzyPSI-hamming/internal/stats"
	"github.com/acprk/FuzzyPSI-hamming/p2p"
)

// SenderConfig bundles a Sender run's inputs.
type SenderConfig struct {
	Params params.Params
	Q      []*bits.Vector

	OfflineDeadline PhaseDeadline
	QueryDeadline   PhaseDeadline

	Timing *stats.Timing
}

// SenderResult reports which of the Sender's own queries the protocol
// judged to be in the intersection. The Sender learns only this
// aggregated bit per query (never which of the N Receiver vectors, if
// any, it matched); the Receiver is the party that ends up holding
// the actual matching vectors (spec.md §1).
type SenderResult struct {
	Matched   []int
	IOStats   p2p.IOStats
	SessionID string
}

// RunSender drives the Sender's full session, mirroring RunReceiver's
// phase sequence from the other side of the wire.
func RunSender(nc net.Conn, cfg SenderConfig, envCfg *env.Config) (*SenderResult, error) {
	sessionID := newSessionID()
	log.Printf("session %s: sender starting, m=%d", sessionID, cfg.Params.M)

	if envCfg == nil {
		envCfg = &env.Config{}
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, ferrors.New(ferrors.ConfigMismatch, "session.RunSender", err)
	}
	if len(cfg.Q) != cfg.Params.M {
		return nil, ferrors.New(ferrors.ConfigMismatch, "session.RunSender",
			&params.MismatchError{Field: "len(Q)", Want: cfg.Params.M, Got: len(cfg.Q)})
	}

	fp, err := newFingerprinter(cfg.Params)
	if err != nil {
		return nil, err
	}
	heCtx, err := newHEContext(cfg.Params)
	if err != nil {
		return nil, err
	}

	conn := p2p.NewConn(nc)
	defer conn.Close()

	if err := applyDeadline(nc, cfg.OfflineDeadline); err != nil {
		return nil, ferrors.New(ferrors.ChannelError, "session.RunSender", err)
	}
	off, err := offline.Receive(conn, cfg.Params, heCtx)
	if err != nil {
		return nil, err
	}
	if cfg.Timing != nil {
		cfg.Timing.Sample("Offline", nil)
	}

	senderState, err := query.NewSenderState(cfg.Params, fp, off, heCtx)
	if err != nil {
		return nil, err
	}
	cot := newCOT(envCfg)
	if err := cot.InitSender(conn); err != nil {
		return nil, ferrors.New(ferrors.CryptoSetup, "session.RunSender", err)
	}

	result := &SenderResult{}
	for j, qj := range cfg.Q {
		if err := applyDeadline(nc, cfg.QueryDeadline); err != nil {
			return nil, ferrors.New(ferrors.ChannelError, "session.RunSender", err)
		}

		flags, err := senderState.RunQuery(conn, qj)
		if err != nil {
			return nil, err
		}
		match, err := delivery.SenderPEqT(conn, flags)
		if err != nil {
			return nil, err
		}
		if err := delivery.SenderDeliver(cot, qj); err != nil {
			return nil, err
		}
		if match {
			result.Matched = append(result.Matched, j)
		}
	}
	if cfg.Timing != nil {
		cfg.Timing.Sample("Queries", []string{fmt.Sprintf("m=%d", cfg.Params.M)})
	}
	result.IOStats = conn.Stats
	result.SessionID = sessionID
	log.Printf("session %s: sender done, %d of %d queries matched", sessionID, len(result.Matched), len(cfg.Q))

	return result, nil
}
