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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrailingOnes(t *testing.T) {
	cases := []struct {
		n    uint64
		want int
	}{
		{0, 0},
		{1, 1},
		{2, 0},
		{3, 2},
		{7, 3},
		{11, 2},
		{0b1111, 4},
		{0b10111, 3},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, trailingOnes(c.n), "n=%b", c.n)
	}
}

func TestTrailingOnesSequence(t *testing.T) {
	want := []int{0, 1, 0, 2, 0, 1, 0, 3, 0, 1, 0, 2, 0, 1, 0, 4}
	got := make([]int, len(want))
	for n := range got {
		got[n] = trailingOnes(uint64(n))
	}
	assert.Equal(t, want, got)
}
