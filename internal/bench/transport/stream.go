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
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// maxFrameSize bounds a single frame. Benchmark payloads are element
// buffers; anything beyond this indicates a corrupted length prefix.
const maxFrameSize = 1 << 30

// streamPair implements Pair over any stream-oriented net.Listener/Conn
// (TCP, unix sockets). Frames are a 4-byte big-endian length followed by
// the payload.
type streamPair struct {
	ln        net.Listener
	advertise string

	mu     sync.Mutex
	conn   net.Conn
	closed bool

	// Recorded mode flags; stream sockets are always synchronous.
	sync     bool
	busyPoll bool
}

func newStreamPair(ln net.Listener, advertise string) *streamPair {
	return &streamPair{ln: ln, advertise: advertise}
}

func (p *streamPair) Addr() string { return p.advertise }

func (p *streamPair) Accept(ctx context.Context) error {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := p.ln.Accept()
		ch <- result{conn, err}
	}()
	select {
	case <-ctx.Done():
		// Unblock the Accept call; the goroutine's eventual result is
		// discarded (a raced-in conn gets closed below).
		_ = p.ln.Close()
		go func() {
			if r := <-ch; r.conn != nil {
				_ = r.conn.Close()
			}
		}()
		return ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return fmt.Errorf("transport: accept: %w", r.err)
		}
		p.mu.Lock()
		p.conn = r.conn
		p.mu.Unlock()
		return nil
	}
}

func (p *streamPair) Dial(ctx context.Context, addr string) error {
	var d net.Dialer
	network := p.ln.Addr().Network()

	// The peer publishes its address only after it is listening, so a
	// refused connection is transient (e.g. a slow accept backlog); retry
	// with a short pause until the context gives up.
	var lastErr error
	for {
		conn, err := d.DialContext(ctx, network, addr)
		if err == nil {
			p.mu.Lock()
			p.conn = conn
			p.mu.Unlock()
			return nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return fmt.Errorf("transport: dial %s: %w (last: %v)", addr, ctx.Err(), lastErr)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (p *streamPair) connection() (net.Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil, errors.New("transport: pair not connected")
	}
	return p.conn, nil
}

func (p *streamPair) Send(ctx context.Context, frame []byte) error {
	conn, err := p.connection()
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	} else {
		_ = conn.SetWriteDeadline(time.Time{})
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(frame)))
	if _, err := conn.Write(hdr[:]); err != nil {
		return fmt.Errorf("transport: send header: %w", err)
	}
	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("transport: send payload: %w", err)
	}
	return nil
}

func (p *streamPair) Recv(ctx context.Context) ([]byte, error) {
	conn, err := p.connection()
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	} else {
		_ = conn.SetReadDeadline(time.Time{})
	}
	var hdr [4]byte
	if _, err := io.ReadFull(conn, hdr[:]); err != nil {
		return nil, fmt.Errorf("transport: recv header: %w", err)
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > maxFrameSize {
		return nil, fmt.Errorf("transport: frame of %d bytes exceeds limit", n)
	}
	frame := make([]byte, n)
	if _, err := io.ReadFull(conn, frame); err != nil {
		return nil, fmt.Errorf("transport: recv payload: %w", err)
	}
	return frame, nil
}

func (p *streamPair) SetSync(sync, busyPoll bool) {
	p.mu.Lock()
	p.sync = sync
	p.busyPoll = busyPoll
	p.mu.Unlock()
}

func (p *streamPair) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	var firstErr error
	if p.conn != nil {
		firstErr = p.conn.Close()
	}
	if err := p.ln.Close(); err != nil && firstErr == nil {
		// The listener may already be closed by a canceled Accept.
		if !errors.Is(err, net.ErrClosed) {
			firstErr = err
		}
	}
	return firstErr
}
