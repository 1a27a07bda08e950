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

func TestMinMaxAbsOf(t *testing.T) {
	assert.Equal(t, 3, minOf(3, 5))
	assert.Equal(t, 5, minOf(5, 3))
	assert.Equal(t, 5, maxOf(3, 5))
	assert.Equal(t, 5, maxOf(5, 3))
	assert.Equal(t, 3, absOf(-3))
	assert.Equal(t, 3, absOf(3))
	assert.Equal(t, 0.5, minOf(0.5, 1.5))
}
