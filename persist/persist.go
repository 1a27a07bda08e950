/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package persist saves and loads the per-run rank samples a harness run
// produces, the Go counterpart of JSSTest.py's pickle.dump(Sampling(...)).
// This is not a sketch serialization format — persisting a Sketch's own
// state is explicitly out of scope (see spec's Non-goals) — it only
// persists the harness's per-run rank lists so a benchmark run need not be
// repeated to re-plot or re-slice its results.
package persist

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"

	"github.com/domestomas/jagged-go/harness"
	"github.com/domestomas/jagged-go/jagged"
)

// Sample is one persisted harness run: every run's rank list, the common
// sketch configuration they were all built with, and the total count each
// run saw.
type Sample struct {
	Runs []SampleRun
	Info jagged.SketchInfo
	N    uint64
}

// SampleRun is a single sketch's rank list, flattened for gob encoding.
type SampleRun struct {
	Ranks []jagged.RankPoint
}

// FromResults converts harness run results into a persistable Sample.
func FromResults(results []harness.RunResult) Sample {
	s := Sample{Runs: make([]SampleRun, len(results))}
	for i, r := range results {
		s.Runs[i] = SampleRun{Ranks: r.Ranks}
		if i == 0 {
			s.Info = r.Info
			s.N = r.Info.N
		}
	}
	return s
}

// Results reconstructs the harness.RunResult slice a Sample was built
// from (Info is repeated onto every entry, since only the first run's
// Info was retained at save time — every run in a single harness.RunMany
// call shares the same configuration).
func (s Sample) Results() []harness.RunResult {
	out := make([]harness.RunResult, len(s.Runs))
	for i, r := range s.Runs {
		out[i] = harness.RunResult{Ranks: r.Ranks, Info: s.Info}
	}
	return out
}

const checksumSuffix = ".xxh64"

// Save gob-encodes s to dir/name and writes an xxhash checksum of the
// encoded bytes to dir/name.xxh64 alongside it, so a later Load can detect
// a truncated or corrupted file instead of silently misreading it.
func Save(dir, name string, s Sample) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("persist: creating %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("persist: %s already exists", path)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return fmt.Errorf("persist: encoding sample: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("persist: writing %s: %w", path, err)
	}

	sum := xxhash.Sum64(buf.Bytes())
	sumPath := path + checksumSuffix
	if err := os.WriteFile(sumPath, []byte(fmt.Sprintf("%x", sum)), 0o644); err != nil {
		return fmt.Errorf("persist: writing %s: %w", sumPath, err)
	}
	return nil
}

// Load reads and decodes dir/name, verifying it against the checksum
// Save wrote alongside it.
func Load(dir, name string) (Sample, error) {
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return Sample{}, fmt.Errorf("persist: reading %s: %w", path, err)
	}

	wantHex, err := os.ReadFile(path + checksumSuffix)
	if err != nil {
		return Sample{}, fmt.Errorf("persist: reading checksum for %s: %w", path, err)
	}
	got := fmt.Sprintf("%x", xxhash.Sum64(data))
	if got != string(wantHex) {
		return Sample{}, fmt.Errorf("persist: checksum mismatch for %s: file is corrupted", path)
	}

	var s Sample
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return Sample{}, fmt.Errorf("persist: decoding %s: %w", path, err)
	}
	return s, nil
}
