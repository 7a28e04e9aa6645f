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

package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Run is one persisted benchmark run: metadata plus all sweep-point
// records, appended to a JSON file so runs can be compared over time.
type Run struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Meta      Meta      `json:"meta"`
	Records   []Record  `json:"records"`
}

// FileStore is a Reporter that appends the completed run to a JSON file.
type FileStore struct {
	path string
	run  Run
}

func NewFileStore(path string) (*FileStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("report: create directory %s: %w", dir, err)
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Begin(meta Meta) {
	s.run = Run{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Meta:      meta,
	}
}

func (s *FileStore) Report(rec Record) {
	s.run.Records = append(s.run.Records, rec)
}

// Flush loads previous runs, appends this one and writes the file back.
func (s *FileStore) Flush() error {
	runs, err := s.LoadAll()
	if err != nil {
		return err
	}
	runs = append(runs, s.run)

	data, err := json.MarshalIndent(runs, "", "  ")
	if err != nil {
		return fmt.Errorf("report: marshal runs: %w", err)
	}
	return os.WriteFile(s.path, data, 0o644)
}

// LoadAll returns every persisted run, oldest first.
func (s *FileStore) LoadAll() ([]Run, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Run{}, nil
		}
		return nil, err
	}
	var runs []Run
	if len(data) == 0 {
		return []Run{}, nil
	}
	if err := json.Unmarshal(data, &runs); err != nil {
		return nil, fmt.Errorf("report: unmarshal runs: %w", err)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

// LoadLatest returns the most recent run, or nil when none exist.
func (s *FileStore) LoadLatest() (*Run, error) {
	runs, err := s.LoadAll()
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[len(runs)-1], nil
}
