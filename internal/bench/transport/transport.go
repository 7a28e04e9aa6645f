// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package transport provides the point-to-point device layer the harness
// runs on: framed, connection-oriented pairs between two ranks, selected
// by transport name.
package transport

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnknownTransport is returned when the requested transport name does
// not match a registered device kind.
var ErrUnknownTransport = errors.New("transport: unknown transport")

// Device creates point-to-point pairs for one transport kind. A Device is
// owned by the Runner and outlives every pair it created.
type Device interface {
	// Name identifies the transport kind ("tcp", "unix").
	Name() string
	// NewPair returns a pair in the listening state. Its Addr can be
	// published for a peer to dial.
	NewPair() (Pair, error)
	// Close releases device-level resources. Pairs must be closed first.
	Close() error
}

// Pair is one point-to-point connection between two ranks. A pair starts
// listening; exactly one side calls Dial with the peer's published
// address while the other calls Accept. After that, Send and Recv move
// length-prefixed frames.
type Pair interface {
	// Addr is the address a peer can dial, valid from creation.
	Addr() string
	// Accept blocks until the peer connects.
	Accept(ctx context.Context) error
	// Dial connects to a peer pair's published address.
	Dial(ctx context.Context, addr string) error
	// Send writes one frame.
	Send(ctx context.Context, p []byte) error
	// Recv reads one frame.
	Recv(ctx context.Context) ([]byte, error)
	// SetSync records the synchronous/busy-poll mode flags. Stream pairs
	// are always synchronous; the flags exist for option parity with
	// transports that distinguish the modes.
	SetSync(sync, busyPoll bool)
	// Close is idempotent and safe before Accept/Dial.
	Close() error
}

// NewDevice resolves a transport by name. Fails with ErrUnknownTransport
// for anything unrecognized; the caller treats that as fatal.
func NewDevice(name string) (Device, error) {
	switch name {
	case "tcp":
		return newTCPDevice()
	case "unix":
		return newUnixDevice()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, name)
	}
}
