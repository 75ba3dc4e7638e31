//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

package p2p

import (
	"fmt"
	"log"
	"net"
)

// Listen opens a listening socket on addr and blocks for a single
// inbound connection, matching the Receiver's role in the protocol:
// it listens once, accepts the Sender, and returns the raw socket.
// The listener is closed as soon as the connection is accepted; the
// protocol is strictly two-party and never serves a second session on
// the same socket. Callers that need deadline control (package
// session) wrap the returned net.Conn themselves; callers that don't
// can pass it straight to NewConn.
func Listen(addr string) (net.Conn, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("p2p: listen on %s: %w", addr, err)
	}
	defer listener.Close()

	log.Printf("p2p: listening on %s\n", addr)
	nc, err := listener.Accept()
	if err != nil {
		return nil, fmt.Errorf("p2p: accept: %w", err)
	}
	log.Printf("p2p: accepted connection from %s\n", nc.RemoteAddr())

	return nc, nil
}

// Dial connects to addr, matching the Sender's role: it dials once
// and returns the raw socket. Unlike the teacher's original
// multi-peer Network, there is no retry loop here: a connection
// failure is reported to the caller immediately, since a two-party
// session has no peer set to reconcile against.
func Dial(addr string) (net.Conn, error) {
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("p2p: dial %s: %w", addr, err)
	}
	log.Printf("p2p: connected to %s\n", addr)

	return nc, nil
}
