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

package transport

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewDevice_Unknown(t *testing.T) {
	_, err := NewDevice("ibverbs")
	if !errors.Is(err, ErrUnknownTransport) {
		t.Fatalf("expected ErrUnknownTransport, got %v", err)
	}
}

// connectLocal wires two pairs of the same device together: a listens, b dials.
func connectLocal(t *testing.T, dev Device) (Pair, Pair) {
	t.Helper()
	a, err := dev.NewPair()
	if err != nil {
		t.Fatalf("new pair a: %v", err)
	}
	b, err := dev.NewPair()
	if err != nil {
		t.Fatalf("new pair b: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	acceptErr := make(chan error, 1)
	go func() { acceptErr <- a.Accept(ctx) }()
	if err := b.Dial(ctx, a.Addr()); err != nil {
		t.Fatalf("dial: %v", err)
	}
	if err := <-acceptErr; err != nil {
		t.Fatalf("accept: %v", err)
	}
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
		_ = dev.Close()
	})
	return a, b
}

func testSendRecv(t *testing.T, name string) {
	dev, err := NewDevice(name)
	if err != nil {
		t.Fatalf("new device %q: %v", name, err)
	}
	a, b := connectLocal(t, dev)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	want := []byte{0xde, 0xad, 0xbe, 0xef}
	if err := a.Send(ctx, want); err != nil {
		t.Fatalf("send: %v", err)
	}
	got, err := b.Recv(ctx)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("frame mismatch: got %x want %x", got, want)
	}

	// Frames also flow the other way on the same connection.
	if err := b.Send(ctx, []byte{1}); err != nil {
		t.Fatalf("reverse send: %v", err)
	}
	if got, err = a.Recv(ctx); err != nil || len(got) != 1 || got[0] != 1 {
		t.Fatalf("reverse recv: got %v err %v", got, err)
	}
}

func TestTCPPair_SendRecv(t *testing.T)  { testSendRecv(t, "tcp") }
func TestUnixPair_SendRecv(t *testing.T) { testSendRecv(t, "unix") }

func TestPair_EmptyFrame(t *testing.T) {
	dev, err := NewDevice("tcp")
	if err != nil {
		t.Fatal(err)
	}
	a, b := connectLocal(t, dev)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Send(ctx, nil); err != nil {
		t.Fatalf("send empty: %v", err)
	}
	got, err := b.Recv(ctx)
	if err != nil {
		t.Fatalf("recv empty: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty frame, got %d bytes", len(got))
	}
}

func TestPair_AcceptCanceled(t *testing.T) {
	dev, err := NewDevice("tcp")
	if err != nil {
		t.Fatal(err)
	}
	p, err := dev.NewPair()
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = p.Close()
		_ = dev.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := p.Accept(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestPair_CloseIdempotent(t *testing.T) {
	dev, err := NewDevice("unix")
	if err != nil {
		t.Fatal(err)
	}
	p, err := dev.NewPair()
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := dev.Close(); err != nil {
		t.Fatalf("device close: %v", err)
	}
}
