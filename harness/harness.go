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

// Package harness builds many independent jagged sketches over a shared
// stream and aggregates their rank errors into percentile curves, the Go
// counterpart of the original JSSTest.py driver's multiprocessing pool and
// Sampling class. Where the Python original shared a stream across worker
// processes via multiprocessing.shared_memory, goroutines already share
// the process heap, so the shared buffer here is just a plain read-only
// []int64.
package harness

import (
	"context"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/domestomas/jagged-go/jagged"
	"github.com/domestomas/jagged-go/stream"
)

// Config describes one sketch-building scenario to repeat many times.
type Config struct {
	N                       int64
	Order                   stream.Order
	StreamP, StreamG, StreamS int64
	StreamSeed              int64

	ImportantQuantiles      []float64
	J                       float64
	Epsilon                 float64
	Delta                   float64
	ImprovementForHighRanks bool
}

// RunResult is one sketch's output after consuming the full shared stream.
type RunResult struct {
	Ranks []jagged.RankPoint
	Info  jagged.SketchInfo
}

// RunMany materializes cfg's stream once, then builds `repeat` independent
// sketches over it concurrently, returning each one's Ranks() and Info().
func RunMany(ctx context.Context, cfg Config, repeat int) ([]RunResult, error) {
	data, err := stream.Make(stream.Params{
		N:     cfg.N,
		Order: cfg.Order,
		P:     cfg.StreamP,
		G:     cfg.StreamG,
		S:     cfg.StreamS,
		Seed:  cfg.StreamSeed,
	})
	if err != nil {
		return nil, err
	}

	results := make([]RunResult, repeat)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < repeat; i++ {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sk, err := jagged.NewSketch(
				cfg.Epsilon, cfg.Delta, cfg.ImportantQuantiles, cfg.J, cfg.ImprovementForHighRanks,
				jagged.WithSeed(cfg.StreamSeed+int64(i)+1),
			)
			if err != nil {
				return err
			}
			for _, item := range data {
				sk.Update(item)
			}
			results[i] = RunResult{Ranks: sk.Ranks(), Info: sk.Info()}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// PercentileCurve is the 68th/95th/99th percentile and mean/median rank
// error, sampled at a set of points spread across the observed item range.
type PercentileCurve struct {
	SamplePoints []int64
	P68, P95, P99 []float64
	Avg, Median   []float64
}

// Aggregate reduces many runs' rank lists into a PercentileCurve, the Go
// counterpart of Sampling.choose_sample_points / Sampling.prepare_data.
func Aggregate(results []RunResult) PercentileCurve {
	repeat := len(results)
	if repeat == 0 {
		return PercentileCurve{}
	}

	samplePoints := chooseSamplePoints(results, repeat)
	curve := PercentileCurve{SamplePoints: samplePoints}

	currentIndex := make([]int, repeat)
	p68idx := 68 * repeat / 100
	p95idx := 95 * repeat / 100
	p99idx := 99 * repeat / 100

	for _, point := range samplePoints {
		errs := make([]float64, repeat)
		sum := 0.0
		for i, r := range results {
			run := r.Ranks
			curr := currentIndex[i]
			for curr < len(run) && run[curr].Item <= point {
				curr++
			}
			currentIndex[i] = curr
			e := float64(run[curr-1].CumWeight) - float64(point)
			errs[i] = e
			sum += e
		}

		sortedErrs := append([]float64(nil), errs...)
		sort.Float64s(sortedErrs)
		curve.Median = append(curve.Median, sortedErrs[len(sortedErrs)/2])
		curve.Avg = append(curve.Avg, sum/float64(repeat))

		abs := make([]float64, len(errs))
		for i, e := range errs {
			abs[i] = math.Abs(e)
		}
		sort.Float64s(abs)
		curve.P68 = append(curve.P68, abs[p68idx])
		curve.P95 = append(curve.P95, abs[p95idx])
		curve.P99 = append(curve.P99, abs[p99idx])
	}
	return curve
}

func chooseSamplePoints(results []RunResult, repeat int) []int64 {
	var allPoints []int64
	for _, r := range results {
		for _, rp := range r.Ranks {
			allPoints = append(allPoints, rp.Item)
		}
	}
	sort.Slice(allPoints, func(i, j int) bool { return allPoints[i] < allPoints[j] })

	numSamples := len(allPoints)/repeat - 1
	if numSamples <= 0 {
		return nil
	}
	points := make([]int64, 0, numSamples)
	for i := 0; i < numSamples; i++ {
		idx := i*repeat + 1
		if idx >= len(allPoints) {
			break
		}
		points = append(points, allPoints[idx])
	}
	return points
}
