//
// io.go
//
// Copyright (c) 2023 Markku Rossi
//
// All rights reserved.

package ot

import (
	"math/big"
)

// IO defines an I/O interface to communicate between peers. p2p.Conn
// implements it directly (see the assertion in p2p/protocol.go), so
// the OT setup and every batch transfer in this package ride the same
// framed connection internal/offline and internal/query already use
// for the rest of the session — no separate OT transport.
type IO interface {
	// SendData sends binary data.
	SendData(val []byte) error

	// SendUint32 sends an uint32 value.
	SendUint32(val int) error

	// Flush flushed any pending data in the connection.
	Flush() error

	// ReceiveData receives binary data.
	ReceiveData() ([]byte, error)

	// ReceiveUint32 receives an uint32 value.
	ReceiveUint32() (int, error)

	// SendLabel sends a wire label, using data as scratch space.
	SendLabel(val Label, data *LabelData) error

	// ReceiveLabel receives a wire label into val, using data as
	// scratch space.
	ReceiveLabel(val *Label, data *LabelData) error
}

// SendString sends a string value.
func SendString(io IO, str string) error {
	return io.SendData([]byte(str))
}

// ReceiveString receives a string value.
func ReceiveString(io IO) (string, error) {
	data, err := io.ReceiveData()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReceiveBigInt receives a bit.Int from the connection.
func ReceiveBigInt(io IO) (*big.Int, error) {
	data, err := io.ReceiveData()
	if err != nil {
		return nil, err
	}
	return big.NewInt(0).SetBytes(data), nil
}
