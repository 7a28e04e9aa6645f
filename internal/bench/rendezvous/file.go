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
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// FileStore implements Store on a directory shared by all group members
// (launcher-managed runs on one host or a shared filesystem). One file
// per key; a rename makes the publish atomic so a reader never observes
// a partial value.
type FileStore struct {
	dir          string
	pollInterval time.Duration
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("rendezvous: file store dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir, pollInterval: 20 * time.Millisecond}, nil
}

func (f *FileStore) path(key string) string {
	// Keys contain '/' separators; escape them into a flat file name.
	return filepath.Join(f.dir, url.PathEscape(key))
}

func (f *FileStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("rendezvous: file store tmp: %w", err)
	}
	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rendezvous: file store write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rendezvous: file store close: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path(key)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rendezvous: file store publish %s: %w", key, err)
	}
	return nil
}

func (f *FileStore) Wait(ctx context.Context, key string) ([]byte, error) {
	path := f.path(key)
	for {
		value, err := os.ReadFile(path)
		if err == nil {
			return value, nil
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("rendezvous: file store read %s: %w", key, err)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("rendezvous: waiting for %s: %w", key, ctx.Err())
		case <-time.After(f.pollInterval):
		}
	}
}

// Close leaves the directory in place; it is owned by the launcher and
// shared with peer processes that may still be reading.
func (f *FileStore) Close() error { return nil }
