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

package persist

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domestomas/jagged-go/harness"
	"github.com/domestomas/jagged-go/stream"
)

func testResults(t *testing.T) []harness.RunResult {
	t.Helper()
	cfg := harness.Config{
		N:                  5_000,
		Order:              stream.Sorted,
		StreamSeed:         1,
		ImportantQuantiles: []float64{0},
		J:                  0,
		Epsilon:            0.1,
		Delta:              0.01,
	}
	results, err := harness.RunMany(context.Background(), cfg, 3)
	require.NoError(t, err)
	return results
}

func TestSaveLoad_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	results := testResults(t)
	sample := FromResults(results)

	require.NoError(t, Save(dir, "sample1", sample))
	loaded, err := Load(dir, "sample1")
	require.NoError(t, err)

	assert.Equal(t, sample.N, loaded.N)
	assert.Equal(t, sample.Info, loaded.Info)
	require.Len(t, loaded.Runs, len(sample.Runs))
	for i := range sample.Runs {
		assert.Equal(t, sample.Runs[i].Ranks, loaded.Runs[i].Ranks)
	}
}

func TestSave_RefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	sample := FromResults(testResults(t))
	require.NoError(t, Save(dir, "sample1", sample))
	assert.Error(t, Save(dir, "sample1", sample))
}

func TestLoad_DetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	sample := FromResults(testResults(t))
	require.NoError(t, Save(dir, "sample1", sample))

	path := dir + "/sample1"
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[0] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = Load(dir, "sample1")
	assert.Error(t, err)
}

func TestFromResults_Results_RoundTrip(t *testing.T) {
	results := testResults(t)
	sample := FromResults(results)
	back := sample.Results()
	require.Len(t, back, len(results))
	for i := range results {
		assert.Equal(t, results[i].Ranks, back[i].Ranks)
	}
}
