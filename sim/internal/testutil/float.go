// Package testutil provides shared float assertions for the hrt-sim test
// packages. It must not import sim/ so that in-package sim tests can use it.
package testutil

import (
	"math"
	"testing"
)

// AssertRelClose compares two float64 values with relative tolerance.
func AssertRelClose(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if math.IsNaN(diff) || diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// AssertNonDecreasing fails if any value is smaller than its predecessor by
// more than absTol.
func AssertNonDecreasing(t *testing.T, name string, vals []float64, absTol float64) {
	t.Helper()
	for i := 1; i < len(vals); i++ {
		if vals[i] < vals[i-1]-absTol {
			t.Errorf("%s: value[%d]=%v < value[%d]=%v", name, i, vals[i], i-1, vals[i-1])
			return
		}
	}
}

// AssertAllFinite fails on the first NaN or Inf in vals.
func AssertAllFinite(t *testing.T, name string, vals []float64) {
	t.Helper()
	for i, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("%s: value[%d] is not finite: %v", name, i, v)
			return
		}
	}
}
