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

// Package jagged implements a streaming relative-error quantile sketch: a
// stack of compactors in which the compactor at level h represents items
// with weight 2^h. A random, scheduled compaction pushes half of a full
// compactor's items up to the next level, and an optional "important
// quantiles" mechanism boosts accuracy around caller-chosen quantiles by
// shrinking the capacity penalty of the levels that hold them.
//
// A Sketch is not safe for concurrent use: Update, queries, and the
// internal compress/grow machinery all read and mutate the same state, and
// the caller is expected to serialize all operations on one Sketch. Build
// independent Sketches (see package harness) to parallelize across a
// stream.
package jagged

import (
	"math"
	"math/rand"
	"sort"
	"time"
)

// RankPoint is one entry of a sketch's cumulative rank list: an item and
// the total weight of all retained items less than or equal to it.
type RankPoint struct {
	Item      int64
	CumWeight uint64
}

// CdfPoint is one entry of a sketch's empirical CDF: an item and the
// fraction of the stream's weight at or below it.
type CdfPoint struct {
	Item int64
	Cdf  float64
}

// CompactorStats is a read-only snapshot of one compactor level, exposed
// for harnesses and diagnostics.
type CompactorStats struct {
	Level          int
	Len            int
	Capacity       int
	SectionSize    int
	NumCompactions int
}

// SketchInfo bundles the read-only sketch-level accessors the external
// harness and CLI need, mirroring the "sketch_info" summary the original
// driver printed per run.
type SketchInfo struct {
	N                  uint64
	H                  int
	J                  float64
	Epsilon            float64
	ImportantQuantiles []float64
	TotalCapacity      uint64
	MaxLevelCapacity   uint64
}

// Sketch is the jagged relative-error quantile sketch.
type Sketch struct {
	epsilon                 float64
	delta                   float64
	probabilityConstant     float64
	importantQuantiles      map[float64]struct{}
	j                       float64
	improvementForHighRanks bool

	n        uint64
	size     uint64 // maintained for both variants; only the improved variant's Update reads it to decide when to compress
	capacity uint64 // sum of per-compactor capacities; recomputed whenever capacities change (grow only)

	importantLevels map[int]struct{}
	compactors      []*compactor

	rng *rand.Rand
}

// Option configures a Sketch at construction time.
type Option func(*sketchOptions)

type sketchOptions struct {
	rng     *rand.Rand
	seed    int64
	seedSet bool
}

// WithSeed seeds the sketch's internal random source deterministically,
// making compaction parity reproducible across runs — needed by tests and
// by the harness when it wants repeatable benchmark scenarios.
func WithSeed(seed int64) Option {
	return func(o *sketchOptions) {
		o.seed = seed
		o.seedSet = true
	}
}

// WithRand installs a caller-supplied random source, taking precedence
// over WithSeed.
func WithRand(r *rand.Rand) Option {
	return func(o *sketchOptions) {
		o.rng = r
	}
}

// NewSketch constructs an empty Sketch.
//
// epsilon is the relative-error target and must be in (0, 1]. delta is the
// failure probability and must be in (0, 0.5]. importantQuantiles is the
// set of quantiles to boost accuracy around; it may be empty only when j
// is zero. j is the importance weight: j == 0 means every level is treated
// equally regardless of importantQuantiles.
func NewSketch(epsilon, delta float64, importantQuantiles []float64, j float64, improvementForHighRanks bool, opts ...Option) (*Sketch, error) {
	if epsilon <= 0 || epsilon > 1 {
		return nil, errf("jagged: epsilon must be in (0, 1], got %v", epsilon)
	}
	if delta <= 0 || delta > 0.5 {
		return nil, errf("jagged: delta must be in (0, 0.5], got %v", delta)
	}
	if j < 0 {
		return nil, errf("jagged: j must be non-negative, got %v", j)
	}

	qset := make(map[float64]struct{}, len(importantQuantiles))
	for _, q := range importantQuantiles {
		if q < 0 || q > 1 {
			return nil, errf("jagged: important quantiles must be in [0, 1], got %v", q)
		}
		qset[q] = struct{}{}
	}
	if j != 0 && len(qset) == 0 {
		return nil, errf("jagged: important_quantiles must be non-empty when j != 0")
	}

	o := &sketchOptions{}
	for _, opt := range opts {
		opt(o)
	}
	rng := o.rng
	if rng == nil {
		seed := o.seed
		if !o.seedSet {
			seed = time.Now().UnixNano()
		}
		rng = rand.New(rand.NewSource(seed))
	}

	s := &Sketch{
		epsilon:                 epsilon,
		delta:                   delta,
		probabilityConstant:     math.Sqrt(math.Log(1 / delta)),
		importantQuantiles:      qset,
		j:                       j,
		improvementForHighRanks: improvementForHighRanks,
		importantLevels:         make(map[int]struct{}),
		rng:                     rng,
	}
	s.appendCompactor()
	return s, nil
}

// H returns the current number of compactor levels.
func (s *Sketch) H() int { return len(s.compactors) }

// N returns the number of items inserted so far.
func (s *Sketch) N() uint64 { return s.n }

// Epsilon returns the configured relative-error target.
func (s *Sketch) Epsilon() float64 { return s.epsilon }

// J returns the configured importance weight.
func (s *Sketch) J() float64 { return s.j }

// ImportantQuantiles returns the configured important quantiles, sorted.
func (s *Sketch) ImportantQuantiles() []float64 {
	qs := make([]float64, 0, len(s.importantQuantiles))
	for q := range s.importantQuantiles {
		qs = append(qs, q)
	}
	sort.Float64s(qs)
	return qs
}

// TotalCapacity returns the sum of every compactor's current capacity.
func (s *Sketch) TotalCapacity() uint64 {
	var total uint64
	for _, c := range s.compactors {
		total += uint64(c.capacity)
	}
	return total
}

// MaxLevelCapacity returns the largest single compactor's current
// capacity.
func (s *Sketch) MaxLevelCapacity() uint64 {
	var m uint64
	for _, c := range s.compactors {
		m = maxOf(m, uint64(c.capacity))
	}
	return m
}

// Compactors returns a read-only snapshot of every compactor level.
func (s *Sketch) Compactors() []CompactorStats {
	out := make([]CompactorStats, len(s.compactors))
	for i, c := range s.compactors {
		out[i] = CompactorStats{
			Level:          c.h,
			Len:            c.len(),
			Capacity:       c.capacity,
			SectionSize:    c.sectionSize,
			NumCompactions: c.numCompactions,
		}
	}
	return out
}

// Info bundles the sketch-level read-only accessors.
func (s *Sketch) Info() SketchInfo {
	return SketchInfo{
		N:                  s.n,
		H:                  s.H(),
		J:                  s.j,
		Epsilon:            s.epsilon,
		ImportantQuantiles: s.ImportantQuantiles(),
		TotalCapacity:      s.TotalCapacity(),
		MaxLevelCapacity:   s.MaxLevelCapacity(),
	}
}

// Update inserts item into the sketch.
func (s *Sketch) Update(item int64) {
	s.compactors[0].append(item)
	s.n++

	if s.improvementForHighRanks {
		s.size++
		if s.size >= s.capacity {
			s.compressImproved()
		}
		invariant(s.size < s.capacity, "size >= capacity after update")
		return
	}

	s.size++
	if s.compactors[0].isFull() {
		s.compressSimple()
	}
}

// compressSimple mirrors jaggedSketchSimple.py's compress: scan low to
// high, stop at the first compactor that is not full.
func (s *Sketch) compressSimple() {
	for h := 0; h < s.H(); h++ {
		c := s.compactors[h]
		if !c.isFull() {
			return
		}
		if h+1 == s.H() {
			s.grow()
			return
		}
		s.promote(h)
	}
}

// compressImproved mirrors jaggedSketchImproved.py's compress: scan low to
// high, compacting every full compactor encountered, returning early only
// once size has dropped back under capacity (lazy propagation).
func (s *Sketch) compressImproved() {
	for h := 0; h < s.H(); h++ {
		c := s.compactors[h]
		if !c.isFull() {
			continue
		}
		if h+1 == s.H() {
			s.grow()
			return
		}
		s.promote(h)
		if s.size < s.capacity {
			return
		}
	}
}

// promote runs a normal compaction on compactors[h] and appends the
// promoted items to compactors[h+1], keeping size bookkeeping in sync.
func (s *Sketch) promote(h int) {
	c := s.compactors[h]
	promoted := c.normalCompaction(s.compactorParams(h), s.rng)
	s.size -= uint64(len(promoted))
	s.compactors[h+1].items = append(s.compactors[h+1].items, promoted...)
}

// grow adds a new top compactor, cascades a full compaction through every
// existing level, and recomputes important levels and every compactor's
// capacity now that H has changed.
func (s *Sketch) grow() {
	s.appendCompactor()
	for h := 0; h < s.H()-1; h++ {
		s.fullyPromote(h)
	}
	for s.compactors[len(s.compactors)-1].isFull() {
		last := len(s.compactors) - 1
		s.appendCompactor()
		s.fullyPromote(last)
	}

	s.updateImportantLevels()
	s.recomputeAllCapacities()
}

func (s *Sketch) fullyPromote(h int) {
	c := s.compactors[h]
	promoted := c.fullCompaction(s.compactorParams(h), s.rng)
	s.size -= uint64(len(promoted))
	s.compactors[h+1].items = append(s.compactors[h+1].items, promoted...)
}

func (s *Sketch) appendCompactor() {
	c := newCompactor(len(s.compactors))
	s.compactors = append(s.compactors, c)
	c.setCapacityAndSectionSize(s.compactorParams(c.h))
	s.capacity += uint64(c.capacity)
}

func (s *Sketch) recomputeAllCapacities() {
	s.capacity = 0
	for _, c := range s.compactors {
		c.setCapacityAndSectionSize(s.compactorParams(c.h))
		s.capacity += uint64(c.capacity)
	}
}

func (s *Sketch) compactorParams(h int) compactorParams {
	return compactorParams{
		h:                       h,
		H:                       s.H(),
		epsilon:                 s.epsilon,
		probabilityConstant:     s.probabilityConstant,
		j:                       s.j,
		importantLevels:         s.importantLevels,
		improvementForHighRanks: s.improvementForHighRanks,
	}
}

// updateImportantLevels recomputes which compactor levels are "important".
// It must only be called from grow: the improved variant's definition
// binary-searches over each compactor's smallest item, which requires
// every level to be sorted, a property that only holds right after a
// full-compaction cascade.
func (s *Sketch) updateImportantLevels() {
	if s.improvementForHighRanks {
		s.updateImportantLevelsImproved()
	} else {
		s.updateImportantLevelsSimple()
	}
}

func (s *Sketch) updateImportantLevelsSimple() {
	levels := make(map[int]struct{}, len(s.importantQuantiles))
	H := float64(s.H())
	minJ := math.Min(1, s.j)
	for q := range s.importantQuantiles {
		r := math.Max(1, math.Ceil(q*float64(s.n)))
		inner := 8 * s.epsilon * r / (s.probabilityConstant * math.Pow(H, 0.5+minJ))
		l := int(math.Max(0, math.Floor(math.Log2(inner))))
		levels[l] = struct{}{}
	}
	s.importantLevels = levels
}

func (s *Sketch) updateImportantLevelsImproved() {
	levels := make(map[int]struct{}, len(s.importantQuantiles))
	for q := range s.importantQuantiles {
		x := s.quantileUnchecked(q)
		i, j := 0, s.H()-1
		for i < j-1 {
			m := (i + j) / 2
			levelMin := s.compactors[m].items[0]
			if x >= levelMin {
				i = m
			} else {
				j = m
			}
		}
		levels[i] = struct{}{}
	}
	s.importantLevels = levels
}

// Ranks merges every compactor's items, weighted by 2^h, into a sorted
// cumulative-rank list. Returns nil for an empty sketch.
func (s *Sketch) Ranks() []RankPoint {
	if s.n == 0 {
		return nil
	}
	type weighted struct {
		item   int64
		weight uint64
	}
	total := 0
	for _, c := range s.compactors {
		total += c.len()
	}
	all := make([]weighted, 0, total)
	for h, c := range s.compactors {
		w := uint64(1) << uint(h)
		for _, item := range c.items {
			all = append(all, weighted{item, w})
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].item < all[j].item })

	out := make([]RankPoint, len(all))
	var cum uint64
	for i, w := range all {
		cum += w.weight
		out[i] = RankPoint{Item: w.item, CumWeight: cum}
	}
	return out
}

// Cdf returns Ranks() with each cumulative weight normalized by the total.
func (s *Sketch) Cdf() []CdfPoint {
	ranks := s.Ranks()
	if len(ranks) == 0 {
		return nil
	}
	total := float64(ranks[len(ranks)-1].CumWeight)
	out := make([]CdfPoint, len(ranks))
	for i, r := range ranks {
		out[i] = CdfPoint{Item: r.Item, Cdf: float64(r.CumWeight) / total}
	}
	return out
}

// Rank returns the approximate number of inserted items <= value, weighted
// by level.
func (s *Sketch) Rank(value int64) uint64 {
	var total uint64
	for h, c := range s.compactors {
		total += c.rankLE(value) << uint(h)
	}
	return total
}

// Quantile returns an input item whose rank approximates q*N. q must be in
// [0, 1]. Quantile on an empty sketch returns an error.
func (s *Sketch) Quantile(q float64) (int64, error) {
	if q < 0 || q > 1 {
		return 0, errf("jagged: quantile: q must be in [0, 1], got %v", q)
	}
	if s.n == 0 {
		return 0, errf("jagged: quantile: empty sketch")
	}
	return s.quantileUnchecked(q), nil
}

func (s *Sketch) quantileUnchecked(q float64) int64 {
	desiredRank := q * float64(s.n)
	ranks := s.Ranks()
	i, j := 0, len(ranks)
	for i < j {
		m := (i + j) / 2
		if desiredRank > float64(ranks[m].CumWeight) {
			i = m + 1
		} else {
			j = m
		}
	}
	return ranks[i].Item
}
