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

// Command jagged drives the jagged sketch the way the original JSSTest.py
// driver did: build it (or repeat building it) over a generated stream,
// print its summary, and, when it was built more than once, persist every
// run's rank list for later analysis.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/domestomas/jagged-go/harness"
	"github.com/domestomas/jagged-go/jagged"
	"github.com/domestomas/jagged-go/persist"
	"github.com/domestomas/jagged-go/stream"
)

// floatSlice implements flag.Value so -q can be passed more than once.
type floatSlice []float64

func (f *floatSlice) String() string {
	if f == nil {
		return ""
	}
	parts := make([]string, len(*f))
	for i, v := range *f {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

func (f *floatSlice) Set(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid quantile %q: %w", s, err)
	}
	*f = append(*f, v)
	return nil
}

// scenario bundles every run parameter, loadable from a YAML file via
// -scenario so repeated benchmark configurations don't need to be re-typed
// as flags each time.
type scenario struct {
	N        int64     `yaml:"n"`
	Order    string    `yaml:"order"`
	Repeat   int       `yaml:"repeat"`
	Info     string    `yaml:"info"`
	Q        []float64 `yaml:"q"`
	J        float64   `yaml:"j"`
	Epsilon  float64   `yaml:"epsilon"`
	Space    float64   `yaml:"space"`
	Improved bool      `yaml:"improved"`
}

func loadScenario(path string) (scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return scenario{}, err
	}
	var sc scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return scenario{}, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	return sc, nil
}

// mergeScenario layers flag values over a loaded scenario: a flag the user
// passed explicitly (tracked in explicit) always wins; otherwise a
// non-zero value already present in the loaded scenario wins; otherwise
// the flag's default (already baked into flags) is used.
func mergeScenario(loaded, flags scenario, explicit map[string]bool) scenario {
	pickInt64 := func(name string, loadedVal, flagVal int64) int64 {
		if explicit[name] || loadedVal == 0 {
			return flagVal
		}
		return loadedVal
	}
	pickInt := func(name string, loadedVal, flagVal int) int {
		if explicit[name] || loadedVal == 0 {
			return flagVal
		}
		return loadedVal
	}
	pickFloat := func(name string, loadedVal, flagVal float64) float64 {
		if explicit[name] || loadedVal == 0 {
			return flagVal
		}
		return loadedVal
	}
	pickString := func(name string, loadedVal, flagVal string) string {
		if explicit[name] || loadedVal == "" {
			return flagVal
		}
		return loadedVal
	}

	out := scenario{
		N:       pickInt64("n", loaded.N, flags.N),
		Order:   pickString("order", loaded.Order, flags.Order),
		Repeat:  pickInt("repeat", loaded.Repeat, flags.Repeat),
		Info:    pickString("info", loaded.Info, flags.Info),
		J:       pickFloat("j", loaded.J, flags.J),
		Epsilon: pickFloat("epsilon", loaded.Epsilon, flags.Epsilon),
		Space:   pickFloat("space", loaded.Space, flags.Space),
	}
	if explicit["improved"] || !loaded.Improved {
		out.Improved = flags.Improved
	} else {
		out.Improved = loaded.Improved
	}
	if len(flags.Q) > 0 {
		out.Q = flags.Q
	} else {
		out.Q = loaded.Q
	}
	return out
}

func main() {
	n := flag.Int64("n", 1_000_000, "the approximate number of generated elements")
	order := flag.String("order", "random", "the order of the streamed integers")
	repeat := flag.Int("repeat", 1000, "the number of times to repeat building the sketch")
	info := flag.String("info", "", "additional info to include in the sample filename")
	j := flag.Float64("j", 0.5, "the constant J from theory")
	epsilon := flag.Float64("epsilon", 0, "relative error target (0 triggers bisection against -space)")
	space := flag.Float64("space", 10020, "total capacity target used when -epsilon is 0")
	improved := flag.Bool("improved", true, "use the improved capacity formula and offset/shift refinement")
	scenarioPath := flag.String("scenario", "", "optional YAML scenario file providing defaults for the flags above")
	var qFlag floatSlice
	flag.Var(&qFlag, "q", "an important quantile (repeatable); default {0} when omitted")
	flag.Parse()

	explicit := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	cfg := scenario{
		N: *n, Order: *order, Repeat: *repeat, Info: *info,
		Q: []float64(qFlag), J: *j, Epsilon: *epsilon, Space: *space, Improved: *improved,
	}

	if *scenarioPath != "" {
		loaded, err := loadScenario(*scenarioPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error loading scenario: %v\n", err)
			os.Exit(1)
		}
		cfg = mergeScenario(loaded, cfg, explicit)
	}
	if len(cfg.Q) == 0 {
		cfg.Q = []float64{0}
	}

	epsilonValue := cfg.Epsilon
	if epsilonValue == 0 {
		fmt.Fprintf(os.Stderr, "bisecting epsilon for target capacity %.0f...\n", cfg.Space)
		var err error
		epsilonValue, err = bisectEpsilon(cfg.N, cfg.Q, cfg.J, cfg.Improved, cfg.Space)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "chosen epsilon: %v\n", epsilonValue)
	}

	hc := harness.Config{
		N:                       cfg.N,
		Order:                   stream.Order(cfg.Order),
		ImportantQuantiles:      cfg.Q,
		J:                       cfg.J,
		Epsilon:                 epsilonValue,
		Delta:                   0.01,
		ImprovementForHighRanks: cfg.Improved,
	}

	start := time.Now()
	results, err := harness.RunMany(context.Background(), hc, cfg.Repeat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running sketches: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "ran %d sketches over %d items in %v\n", cfg.Repeat, cfg.N, time.Since(start))

	info0 := results[0].Info
	fmt.Fprintf(os.Stderr, "N=%d H=%d J=%v epsilon=%v Q=%v totalCapacity=%d maxLevelCapacity=%d\n",
		info0.N, info0.H, info0.J, info0.Epsilon, info0.ImportantQuantiles, info0.TotalCapacity, info0.MaxLevelCapacity)

	if cfg.Repeat <= 1 {
		return
	}

	curve := harness.Aggregate(results)
	sample := persist.FromResults(results)

	variant := "simple"
	if cfg.Improved {
		variant = "improved"
	}
	if cfg.Info != "" {
		variant = cfg.Info + "_" + variant
	}
	filename := fmt.Sprintf("js_%dmil_%s_q%s_J%v_eps%v_%s",
		cfg.N/1_000_000, cfg.Order, joinFloats(cfg.Q), cfg.J, epsilonValue, variant)

	if err := persist.Save("samples", filename, sample); err != nil {
		fmt.Fprintf(os.Stderr, "error saving sample: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "saved samples/%s (%d sample points)\n", filename, len(curve.SamplePoints))
}

// bisectEpsilon searches epsilon in [0.001, 0.1] for a sketch whose total
// capacity, built over a sorted stream of n items, lands within 10 of
// space, exactly as JSSTest.py's bisect() does.
func bisectEpsilon(n int64, q []float64, j float64, improved bool, space float64) (float64, error) {
	data, err := stream.Make(stream.Params{N: n, Order: stream.Sorted})
	if err != nil {
		return 0, err
	}

	small, big := 0.001, 0.1
	var cap float64
	avg := (small + big) / 2
	for big-small > 1e-5 && math.Abs(cap-space) > 10 {
		avg = round6((small + big) / 2)
		sk, err := jagged.NewSketch(avg, 0.01, q, j, improved)
		if err != nil {
			return 0, err
		}
		for _, item := range data {
			sk.Update(item)
		}
		cap = float64(sk.TotalCapacity())
		if cap > space {
			small = avg
		} else {
			big = avg
		}
	}
	return avg, nil
}

func round6(f float64) float64 {
	return math.Round(f*1e6) / 1e6
}

func joinFloats(fs []float64) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strings.Join(parts, "")
}
