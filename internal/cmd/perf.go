package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

const defaultPerfThreshold = 0.30

// trackedBenchmarks are the hot paths compared between two `go test -bench`
// outputs, with the units that must not regress.
var trackedBenchmarks = map[string][]string{
	"BenchmarkCheckAndRecordSingleKey":            {"ns/op", "allocs/op"},
	"BenchmarkCheckAndRecordDistinctKeysParallel": {"ns/op"},
	"BenchmarkCheckAllParallel":                   {"ns/op"},
	"BenchmarkMetricsIncParallel":                 {"ns/op"},
}

var (
	perfBaseline  string
	perfCandidate string
	perfThreshold float64
)

var errPerfRegression = errors.New("performance regression threshold exceeded")

type sampleSet map[string]map[string][]float64

type perfRow struct {
	Benchmark string
	Unit      string
	Baseline  float64
	Candidate float64
	Delta     float64
}

var perfCmd = &cobra.Command{
	Use:   "perf",
	Short: "Compare two benchmark runs and fail on regressions",
	RunE: func(cmd *cobra.Command, args []string) error {
		if perfBaseline == "" || perfCandidate == "" {
			return errors.New("--baseline and --candidate are required")
		}
		if perfThreshold < 0 {
			return errors.New("--threshold must be >= 0")
		}

		baseline, err := parseBenchmarkFile(perfBaseline)
		if err != nil {
			return fmt.Errorf("parse baseline: %w", err)
		}
		candidate, err := parseBenchmarkFile(perfCandidate)
		if err != nil {
			return fmt.Errorf("parse candidate: %w", err)
		}

		rows, failures := compareBenchmarks(baseline, candidate, perfThreshold)

		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"Benchmark", "Unit", "Baseline", "Candidate", "Delta"})
		for _, r := range rows {
			t.AppendRow(table.Row{r.Benchmark, r.Unit,
				fmt.Sprintf("%.3f", r.Baseline),
				fmt.Sprintf("%.3f", r.Candidate),
				fmt.Sprintf("%+0.2f%%", r.Delta*100)})
		}
		t.Render()

		if len(failures) > 0 {
			for _, f := range failures {
				fmt.Fprintf(cmd.ErrOrStderr(), "  - %s\n", f)
			}
			return errPerfRegression
		}
		return nil
	},
}

func compareBenchmarks(baseline, candidate sampleSet, threshold float64) ([]perfRow, []string) {
	names := make([]string, 0, len(trackedBenchmarks))
	for name := range trackedBenchmarks {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		rows     []perfRow
		failures []string
	)
	for _, name := range names {
		for _, unit := range trackedBenchmarks[name] {
			base := baseline[name][unit]
			cand := candidate[name][unit]
			if len(base) == 0 || len(cand) == 0 {
				failures = append(failures, fmt.Sprintf("missing samples for %s %s", name, unit))
				continue
			}

			baseMedian := median(base)
			candMedian := median(cand)
			if baseMedian <= 0 {
				// allocs/op of zero can only regress upward.
				if candMedian > 0 {
					failures = append(failures, fmt.Sprintf("%s %s went from 0 to %.0f", name, unit, candMedian))
				}
				rows = append(rows, perfRow{Benchmark: name, Unit: unit, Baseline: baseMedian, Candidate: candMedian})
				continue
			}

			delta := (candMedian - baseMedian) / baseMedian
			rows = append(rows, perfRow{Benchmark: name, Unit: unit, Baseline: baseMedian, Candidate: candMedian, Delta: delta})
			if delta > threshold {
				failures = append(failures, fmt.Sprintf("%s %s regressed by %+0.2f%% (limit %+0.2f%%)", name, unit, delta*100, threshold*100))
			}
		}
	}
	return rows, failures
}

func parseBenchmarkFile(path string) (sampleSet, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return parseBenchmarks(file)
}

func parseBenchmarks(r io.Reader) (sampleSet, error) {
	samples := sampleSet{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "Benchmark") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}

		name := normalizeBenchmarkName(fields[0])
		if _, ok := trackedBenchmarks[name]; !ok {
			continue
		}
		if _, ok := samples[name]; !ok {
			samples[name] = map[string][]float64{}
		}

		for i := 2; i+1 < len(fields); i += 2 {
			value, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				continue
			}
			unit := fields[i+1]
			samples[name][unit] = append(samples[name][unit], value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}

// normalizeBenchmarkName strips the -GOMAXPROCS suffix.
func normalizeBenchmarkName(raw string) string {
	if idx := strings.LastIndexByte(raw, '-'); idx > 0 {
		if _, err := strconv.Atoi(raw[idx+1:]); err == nil {
			return raw[:idx]
		}
	}
	return raw
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	copied := make([]float64, len(values))
	copy(copied, values)
	sort.Float64s(copied)

	mid := len(copied) / 2
	if len(copied)%2 == 1 {
		return copied[mid]
	}
	return (copied[mid-1] + copied[mid]) / 2
}

func init() {
	perfCmd.Flags().StringVar(&perfBaseline, "baseline", "", "path to baseline benchmark output")
	perfCmd.Flags().StringVar(&perfCandidate, "candidate", "", "path to candidate benchmark output")
	perfCmd.Flags().Float64Var(&perfThreshold, "threshold", defaultPerfThreshold, "maximum allowed regression ratio (0.30 = +30%)")
}
