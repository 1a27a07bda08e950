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

package jagged

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams(h, H int, improved bool) compactorParams {
	return compactorParams{
		h:                       h,
		H:                       H,
		epsilon:                 0.1,
		probabilityConstant:     2.0,
		j:                       0,
		importantLevels:         map[int]struct{}{},
		improvementForHighRanks: improved,
	}
}

func TestCompactor_SetCapacityAndSectionSize(t *testing.T) {
	c := newCompactor(0)
	p := testParams(0, 3, false)
	c.setCapacityAndSectionSize(p)
	assert.Greater(t, c.capacity, 0)
	assert.Greater(t, c.sectionSize, 0)
}

func TestCompactor_FullCompactionHalvesAndResetsSchedule(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	c := newCompactor(0)
	p := testParams(0, 3, false)
	c.setCapacityAndSectionSize(p)
	for i := int64(0); i < int64(c.capacity); i++ {
		c.append(i)
	}
	before := c.len()
	promoted := c.fullCompaction(p, rng)

	assert.Less(t, c.len(), before)
	assert.Equal(t, before, c.len()+2*len(promoted))
	assert.Equal(t, 0, c.state)
	assert.False(t, c.isFull())
}

func TestCompactor_NormalCompactionRequiresFull(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	c := newCompactor(0)
	p := testParams(0, 3, false)
	c.setCapacityAndSectionSize(p)
	c.append(1)
	assert.Panics(t, func() { c.normalCompaction(p, rng) })
}

func TestCompactor_CompactConservesWeightOfKeptAndPromoted(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, improved := range []bool{false, true} {
		c := newCompactor(0)
		p := testParams(0, 3, improved)
		c.setCapacityAndSectionSize(p)
		for i := int64(0); i < int64(c.capacity); i++ {
			c.append(i)
		}
		total := c.len()
		promoted := c.fullCompaction(p, rng)
		assert.Equal(t, total, c.len()+2*len(promoted), "improved=%v", improved)
	}
}

func TestCompactor_RankLECountsAtMostValue(t *testing.T) {
	c := newCompactor(0)
	c.items = []int64{1, 3, 5, 7}
	require.Equal(t, uint64(0), c.rankLE(0))
	require.Equal(t, uint64(2), c.rankLE(4))
	require.Equal(t, uint64(4), c.rankLE(100))
}
