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

package rendezvous

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"collbench/internal/bench/transport"
)

// ErrNoRendezvous is returned when neither rendezvous strategy is
// configured. The harness cannot guess group membership.
var ErrNoRendezvous = errors.New("rendezvous: no rendezvous mechanism configured")

// Config selects and parameterizes exactly one rendezvous strategy,
// resolved once at startup.
type Config struct {
	// Store-based discovery: set RedisHost to enable. Rank and Size come
	// from the caller's configuration.
	RedisHost string
	RedisPort int
	Rank      int
	Size      int

	// Prefix namespaces one run's keys in a shared store. Every rank of a
	// run must use the same prefix.
	Prefix string

	// SharedPath overrides the address-exchange directory for
	// launcher-managed runs. Defaults to a path under os.TempDir derived
	// from Prefix.
	SharedPath string
}

// launcherEnvVars are the rank/size variable pairs set by common process
// launchers, checked in order.
var launcherEnvVars = [][2]string{
	{"OMPI_COMM_WORLD_RANK", "OMPI_COMM_WORLD_SIZE"},
	{"PMI_RANK", "PMI_SIZE"},
	{"SLURM_PROCID", "SLURM_NTASKS"},
}

// Rendezvous resolves the configured strategy into a ContextFactory:
// Redis-backed discovery when a store endpoint is configured, otherwise
// launcher-provided membership with file-based address exchange. Fails
// with ErrNoRendezvous when neither applies.
func Rendezvous(ctx context.Context, cfg Config, device transport.Device) (*ContextFactory, error) {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "collbench"
	}

	if cfg.RedisHost != "" {
		port := cfg.RedisPort
		if port == 0 {
			port = 6379
		}
		store := NewRedisStore(net.JoinHostPort(cfg.RedisHost, strconv.Itoa(port)))
		return NewContextFactory(NewPrefixStore(prefix, store), device, cfg.Rank, cfg.Size)
	}

	if rank, size, ok := launcherMembership(); ok {
		dir := cfg.SharedPath
		if dir == "" {
			dir = filepath.Join(os.TempDir(), "collbench-rendezvous-"+prefix)
		}
		store, err := NewFileStore(dir)
		if err != nil {
			return nil, err
		}
		return NewContextFactory(NewPrefixStore(prefix, store), device, rank, size)
	}

	return nil, ErrNoRendezvous
}

// launcherMembership reads rank and size from the environment set by an
// external process launcher (mpirun, srun and friends).
func launcherMembership() (rank, size int, ok bool) {
	for _, pair := range launcherEnvVars {
		rs, ss := os.Getenv(pair[0]), os.Getenv(pair[1])
		if rs == "" || ss == "" {
			continue
		}
		r, err1 := strconv.Atoi(rs)
		s, err2 := strconv.Atoi(ss)
		if err1 != nil || err2 != nil {
			continue
		}
		return r, s, true
	}
	return 0, 0, false
}

// String describes the strategy a Config would select, for logging.
func (c Config) String() string {
	if c.RedisHost != "" {
		return fmt.Sprintf("redis(%s:%d)", c.RedisHost, c.RedisPort)
	}
	if _, _, ok := launcherMembership(); ok {
		return "launcher"
	}
	return "none"
}
