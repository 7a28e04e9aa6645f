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
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
)

// unixDevice provides pairs over unix domain sockets. All group members
// must share a filesystem, so this transport is for single-host runs.
type unixDevice struct {
	dir string
	seq atomic.Int64
}

func newUnixDevice() (Device, error) {
	dir, err := os.MkdirTemp("", "collbench-unix-*")
	if err != nil {
		return nil, fmt.Errorf("transport: unix socket dir: %w", err)
	}
	return &unixDevice{dir: dir}, nil
}

func (d *unixDevice) Name() string { return "unix" }

func (d *unixDevice) NewPair() (Pair, error) {
	path := filepath.Join(d.dir, fmt.Sprintf("pair-%d.sock", d.seq.Add(1)))
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("transport: unix listen: %w", err)
	}
	return newStreamPair(ln, path), nil
}

func (d *unixDevice) Close() error {
	return os.RemoveAll(d.dir)
}
