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

package stream

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertIsPermutationOf1ToN(t *testing.T, out []int64, n int64) {
	t.Helper()
	require.Len(t, out, int(n))
	sorted := append([]int64(nil), out...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for i, v := range sorted {
		assert.Equal(t, int64(i)+1, v)
	}
}

func TestMake_RejectsNonPositiveN(t *testing.T) {
	_, err := Make(Params{N: 0, Order: Sorted})
	assert.Error(t, err)
}

func TestMake_RejectsUnknownOrder(t *testing.T) {
	_, err := Make(Params{N: 10, Order: "bogus"})
	assert.Error(t, err)
}

func TestMake_SortedAndReversed(t *testing.T) {
	sortedOut, err := Make(Params{N: 100, Order: Sorted})
	require.NoError(t, err)
	assertIsPermutationOf1ToN(t, sortedOut, 100)
	for i := 1; i < len(sortedOut); i++ {
		assert.Less(t, sortedOut[i-1], sortedOut[i])
	}

	reversedOut, err := Make(Params{N: 100, Order: Reversed})
	require.NoError(t, err)
	assertIsPermutationOf1ToN(t, reversedOut, 100)
	for i := 1; i < len(reversedOut); i++ {
		assert.Greater(t, reversedOut[i-1], reversedOut[i])
	}
}

func TestMake_EveryOrderProducesOutput(t *testing.T) {
	for _, order := range Orders {
		out, err := Make(Params{N: 240, Order: order, P: 12, G: 20, S: 2, Seed: 1})
		require.NoError(t, err, "order=%s", order)
		assert.NotEmpty(t, out, "order=%s", order)
	}
}

func TestMake_RandomIsDeterministicGivenSeed(t *testing.T) {
	a, err := Make(Params{N: 500, Order: Random, Seed: 99})
	require.NoError(t, err)
	b, err := Make(Params{N: 500, Order: Random, Seed: 99})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assertIsPermutationOf1ToN(t, a, 500)
}

func TestMake_RandomWithExplicitRandOverridesSeed(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	out, err := Make(Params{N: 50, Order: Random, Rand: r, Seed: 999})
	require.NoError(t, err)
	assertIsPermutationOf1ToN(t, out, 50)
}
