package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baselineBench = `goos: linux
goarch: amd64
pkg: github.com/MrEthical07/goGuard
BenchmarkCheckAndRecordSingleKey-8              	 2000000	       600 ns/op	      96 B/op	       2 allocs/op
BenchmarkCheckAndRecordSingleKey-8              	 2000000	       640 ns/op	      96 B/op	       2 allocs/op
BenchmarkCheckAndRecordSingleKey-8              	 2000000	       620 ns/op	      96 B/op	       2 allocs/op
BenchmarkCheckAndRecordDistinctKeysParallel-8   	 5000000	       200 ns/op
BenchmarkCheckAllParallel-8                     	 3000000	       400 ns/op
BenchmarkMetricsIncParallel-8                   	90000000	        12 ns/op
BenchmarkUntracked-8                            	90000000	         1 ns/op
PASS
`

func TestParseBenchmarks(t *testing.T) {
	samples, err := parseBenchmarks(strings.NewReader(baselineBench))
	require.NoError(t, err)

	assert.Equal(t, []float64{600, 640, 620}, samples["BenchmarkCheckAndRecordSingleKey"]["ns/op"])
	assert.Equal(t, []float64{2, 2, 2}, samples["BenchmarkCheckAndRecordSingleKey"]["allocs/op"])
	assert.NotContains(t, samples, "BenchmarkUntracked")
}

func TestCompareBenchmarksWithinThreshold(t *testing.T) {
	baseline, err := parseBenchmarks(strings.NewReader(baselineBench))
	require.NoError(t, err)
	candidate, err := parseBenchmarks(strings.NewReader(strings.ReplaceAll(baselineBench, "200 ns/op", "240 ns/op")))
	require.NoError(t, err)

	rows, failures := compareBenchmarks(baseline, candidate, 0.30)
	assert.Empty(t, failures)
	assert.Len(t, rows, 5)

	for _, r := range rows {
		if r.Benchmark == "BenchmarkCheckAndRecordDistinctKeysParallel" {
			assert.InDelta(t, 0.20, r.Delta, 1e-9)
		}
	}
}

func TestCompareBenchmarksFlagsRegression(t *testing.T) {
	baseline, err := parseBenchmarks(strings.NewReader(baselineBench))
	require.NoError(t, err)
	candidate, err := parseBenchmarks(strings.NewReader(strings.ReplaceAll(baselineBench, "400 ns/op", "800 ns/op")))
	require.NoError(t, err)

	_, failures := compareBenchmarks(baseline, candidate, 0.30)
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0], "BenchmarkCheckAllParallel ns/op regressed")
}

func TestCompareBenchmarksMissingSamples(t *testing.T) {
	baseline, err := parseBenchmarks(strings.NewReader(baselineBench))
	require.NoError(t, err)

	_, failures := compareBenchmarks(baseline, sampleSet{}, 0.30)
	assert.Len(t, failures, 5)
}

func TestNormalizeBenchmarkName(t *testing.T) {
	assert.Equal(t, "BenchmarkCheckAllParallel", normalizeBenchmarkName("BenchmarkCheckAllParallel-16"))
	assert.Equal(t, "BenchmarkCheckAllParallel", normalizeBenchmarkName("BenchmarkCheckAllParallel"))
	assert.Equal(t, "BenchmarkX-fast", normalizeBenchmarkName("BenchmarkX-fast"))
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 0.0, median(nil))
	assert.Equal(t, 2.0, median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, median([]float64{4, 1, 3, 2}))
}
