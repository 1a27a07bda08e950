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

// Package stream generates finite integer sequences of about n items used
// to drive a jagged sketch under different adversarial and benign access
// patterns during testing and benchmarking.
package stream

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/twmb/murmur3"
)

// Order names one of the supported stream orderings.
type Order string

const (
	Sorted          Order = "sorted"
	Reversed        Order = "reversed"
	ZoomIn          Order = "zoomin"
	ZoomOut         Order = "zoomout"
	Sqrt            Order = "sqrt"
	Random          Order = "random"
	Adversarial     Order = "adv"
	Clustered       Order = "clustered"
	ClusteredZoomIn Order = "clustered-zoomin"
)

// Orders lists every supported order, in the same order the original
// streamMaker.py enumerated them.
var Orders = []Order{Sorted, Reversed, ZoomIn, ZoomOut, Sqrt, Random, Adversarial, Clustered, ClusteredZoomIn}

// Params configures a call to Make.
type Params struct {
	N     int64
	Order Order
	// P, G, S are extra parameters used only by the adv/clustered/
	// clustered-zoomin orders: P is the cluster size (or partition
	// count for adv), G is the gap between clusters, S is the stride
	// used to sample the gap.
	P, G, S int64
	// Rand drives the random order's shuffle. A nil Rand uses a source
	// seeded from Seed.
	Rand *rand.Rand
	// Seed seeds the random order's shuffle when Rand is nil: it is hashed
	// together with the order name via murmur3, so repeated CLI runs with
	// the same seed reproduce the same random stream. No other order
	// reads Rand or Seed.
	Seed int64
}

// Make materializes the int64 values of the requested order for n. Sorted,
// reversed and random return exactly n values; zoomin and zoomout return
// 2*(n/2) values (n-1 for odd n); sqrt returns t*(t+1)/2 values for
// t = floor(sqrt(2n)); adv, clustered and clustered-zoomin return counts
// that depend on P, G and S. Unlike
// the Python generator (a lazy coroutine), Make returns an owned slice:
// laziness there was a readability convenience, not a correctness
// requirement, and a harness sharing one stream across many goroutines
// needs an owned, read-only buffer anyway.
func Make(p Params) ([]int64, error) {
	if p.N <= 0 {
		return nil, fmt.Errorf("stream: n must be positive, got %d", p.N)
	}
	switch p.Order {
	case Sorted:
		return sorted(p.N), nil
	case Reversed:
		return reversed(p.N), nil
	case ZoomIn:
		return zoomIn(p.N), nil
	case ZoomOut:
		return zoomOut(p.N), nil
	case Sqrt:
		return sqrtOrder(p.N), nil
	case Random:
		return randomOrder(p.N, rngOf(p)), nil
	case Adversarial:
		return adversarial(p), nil
	case Clustered:
		return clustered(p, false), nil
	case ClusteredZoomIn:
		return clusteredZoomIn(p), nil
	default:
		return nil, fmt.Errorf("stream: unknown order %q", p.Order)
	}
}

func rngOf(p Params) *rand.Rand {
	if p.Rand != nil {
		return p.Rand
	}
	return rand.New(rand.NewSource(jitterSeed(p.Seed, p.Order)))
}

// jitterSeed derives a deterministic per-order seed from a base seed using
// murmur3, the same hash the teacher pack already uses for string and
// float hashing (common.ArrayOfDoublesOps.Hash).
func jitterSeed(seed int64, order Order) int64 {
	h := murmur3.SeedSum64(uint64(seed), []byte(order))
	return int64(h)
}

func sorted(n int64) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(i) + 1
	}
	return out
}

func reversed(n int64) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = n - int64(i)
	}
	return out
}

func zoomIn(n int64) []int64 {
	out := make([]int64, 0, n)
	for i := int64(1); i <= n/2; i++ {
		out = append(out, i, n-i+1)
	}
	return out
}

func zoomOut(n int64) []int64 {
	out := make([]int64, 0, n)
	half := n / 2
	for i := int64(0); i < half; i++ {
		out = append(out, half+i+1, half-i)
	}
	return out
}

func sqrtOrder(n int64) []int64 {
	t := int64(math.Sqrt(float64(2 * n)))
	out := make([]int64, 0, n)
	initialItem := int64(0)
	initialSkip := int64(1)
	for i := int64(0); i < t; i++ {
		item := initialItem
		skip := initialSkip
		for j := int64(0); j < t-i; j++ {
			out = append(out, item+1)
			item += skip
			skip++
		}
		initialSkip++
		initialItem += initialSkip
	}
	return out
}

func randomOrder(n int64, rng *rand.Rand) []int64 {
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(i) + 1
	}
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// adversarial ports streamMaker.py's 'adv' branch: p partitions of a
// descending run each, interleaved with an ascending "probe" sequence
// meant to stress a sketch's compaction schedule at a fixed partition
// index.
func adversarial(p Params) []int64 {
	n, part, g, s := p.N, p.P, p.G, p.S
	if part <= 0 {
		part = n
	}
	if s <= 0 {
		s = 1
	}
	m := ceilDiv(n, part)
	out := make([]int64, 0, n)
	for i := int64(0); i < part; i++ {
		from := s * (g + part + m*(part-i))
		to := s * (g + part + m*(part-i-1))
		for j := from; j > to; j -= s {
			out = append(out, j)
		}
		out = append(out, i)
		if i == part/2 {
			step := (g + part + m) // matches Python's s*(g+p+m)//10 stride below
			if step < 1 {
				step = 1
			}
			stride := s * step / 10
			if stride < 1 {
				stride = 1
			}
			for j := part; j < s*(g+part+m); j += stride {
				out = append(out, j)
			}
		}
	}
	return out
}

func clustered(p Params, zoomIn bool) []int64 {
	n, part, g, s := p.N, p.P, p.G, p.S
	if part <= 0 {
		part = n
	}
	if g <= 0 {
		g = 1
	}
	if s <= 0 {
		s = 1
	}
	m := ceilDiv(n, part)
	out := make([]int64, 0, n)
	for i := int64(0); i < m; i++ {
		for j := i * g; j < i*g+part; j++ {
			out = append(out, i*g+j/part)
		}
	}
	for i := int64(0); i < m; i++ {
		stride := g / s
		if stride < 1 {
			stride = 1
		}
		for j := i*g + part; j < (i+1)*g; j += stride {
			out = append(out, j)
		}
	}
	return out
}

func clusteredZoomIn(p Params) []int64 {
	n, part, g, s := p.N, p.P, p.G, p.S
	if part <= 0 {
		part = n
	}
	if g <= 0 {
		g = 1
	}
	if s <= 0 {
		s = 1
	}
	m := ceilDiv(n, part)
	out := make([]int64, 0, n)
	for i := int64(0); i < m; i++ {
		for j := i * g; j < i*g+part; j += 2 {
			out = append(out, i*g+j/part)
		}
	}
	for i := int64(0); i < m; i++ {
		stride := g / s
		if stride < 1 {
			stride = 1
		}
		for j := i*g + part; j < (i+1)*g; j += stride {
			out = append(out, j)
		}
	}
	for i := m - 1; i > 0; i-- {
		for j := i*g + part; j > i*g; j -= 2 {
			out = append(out, i*g+(j+1)/part)
		}
	}
	return out
}

func ceilDiv(a, b int64) int64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}
