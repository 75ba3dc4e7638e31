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
	"github.com/acprk/FuzzyPSI-hamming/internal/he"
	"github.com/acprk/FuzzyPSI-hamming/internal/offline"
	"github.com/acprk/FuzzyPSI-hamming/internal/params"
	"github.com/acprk/FuzzyPSI-hamming/internal/query"
	"github.com/acprk/FuzzyPSI-hamming/internal/stats"
	"github.com/acprk/FuzzyPSI-hamming/p2p"
)

// ReceiverConfig bundles a Receiver run's inputs.
type ReceiverConfig struct {
	Params params.Params
	W      []*bits.Vector

	// OfflineDeadline and QueryDeadline bound the offline exchange and
	// each individual query's round trip, respectively. Zero disables
	// the corresponding deadline.
	OfflineDeadline PhaseDeadline
	QueryDeadline   PhaseDeadline

	// Timing, if non-nil, receives a sample for the offline phase and
	// one for the whole query loop; the caller renders it (with the
	// returned IOStats) after the session ends.
	Timing *stats.Timing
}

// ReceiverResult is what a Receiver run produces: the subset of the
// Sender's queries that the protocol placed in the intersection,
// delivered via OT one vector at a time.
type ReceiverResult struct {
	Matches   []*bits.Vector
	IOStats   p2p.IOStats
	SessionID string
}

// RunReceiver drives the Receiver's full session over an already
// connected socket: offline packaging, then one Start->FP_0->...->
// FP_{L-1}->Aggregate->Deliver->End cycle per query the Sender holds
// (cfg.Params.M of them, known identically to both sides without any
// wire exchange per spec.md §6). Any error here is session-fatal; the
// caller is expected to close the socket and exit non-zero.
func RunReceiver(nc net.Conn, cfg ReceiverConfig, envCfg *env.Config) (*ReceiverResult, error) {
	sessionID := newSessionID()
	log.Printf("session %s: receiver starting, n=%d m=%d", sessionID, cfg.Params.N, cfg.Params.M)

	if envCfg == nil {
		envCfg = &env.Config{}
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, ferrors.New(ferrors.ConfigMismatch, "session.RunReceiver", err)
	}
	if len(cfg.W) != cfg.Params.N {
		return nil, ferrors.New(ferrors.ConfigMismatch, "session.RunReceiver",
			&params.MismatchError{Field: "len(W)", Want: cfg.Params.N, Got: len(cfg.W)})
	}

	fp, err := newFingerprinter(cfg.Params)
	if err != nil {
		return nil, err
	}
	heCtx, err := newHEContext(cfg.Params)
	if err != nil {
		return nil, err
	}

	kp := heCtx.GenerateKeyPair()
	dec := heCtx.NewDecryptor(kp.Secret)
	enc := heCtx.NewEncryptor(kp.Public)
	pkBytes, err := he.MarshalPublicKey(kp.Public)
	if err != nil {
		return nil, ferrors.New(ferrors.CryptoSetup, "session.RunReceiver", err)
	}

	conn := p2p.NewConn(nc)
	defer conn.Close()

	if err := applyDeadline(nc, cfg.OfflineDeadline); err != nil {
		return nil, ferrors.New(ferrors.ChannelError, "session.RunReceiver", err)
	}
	if _, err := offline.Send(conn, cfg.Params, fp, cfg.W, heCtx, enc, pkBytes, envCfg); err != nil {
		return nil, err
	}
	if cfg.Timing != nil {
		cfg.Timing.Sample("Offline", nil)
	}

	qState := query.NewReceiverState(cfg.Params, heCtx, dec, enc)
	cot := newCOT(envCfg)
	if err := cot.InitReceiver(conn); err != nil {
		return nil, ferrors.New(ferrors.CryptoSetup, "session.RunReceiver", err)
	}

	result := &ReceiverResult{}
	for j := 0; j < cfg.Params.M; j++ {
		if err := applyDeadline(nc, cfg.QueryDeadline); err != nil {
			return nil, ferrors.New(ferrors.ChannelError, "session.RunReceiver", err)
		}

		flags, err := qState.RespondQuery(conn, cfg.Params.L)
		if err != nil {
			return nil, err
		}
		match, err := delivery.ReceiverPEqT(conn, flags)
		if err != nil {
			return nil, err
		}
		v, err := delivery.ReceiverDeliver(cot, cfg.Params.D, match)
		if err != nil {
			return nil, err
		}
		if match {
			result.Matches = append(result.Matches, v)
		}
	}
	if cfg.Timing != nil {
		cfg.Timing.Sample("Queries", []string{fmt.Sprintf("m=%d", cfg.Params.M)})
	}
	result.IOStats = conn.Stats
	result.SessionID = sessionID
	log.Printf("session %s: receiver done, %d matches", sessionID, len(result.Matches))

	return result, nil
}
