package sim

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/interp"
)

// Series selects one of the concentration curves of a SimulationResult.
type Series int

const (
	SeriesCombined Series = iota // pg/mL
	SeriesE2                     // pg/mL
	SeriesCPA                    // ng/mL
)

func (r *SimulationResult) values(s Series) []float64 {
	switch s {
	case SeriesE2:
		return r.ConcPGmLE2
	case SeriesCPA:
		return r.ConcNGmLCPA
	}
	return r.ConcPGmL
}

// SeriesInterpolator linearly interpolates a sampled curve. Queries outside
// the sampled range return the nearest endpoint value and exact sample times
// return the stored sample.
type SeriesInterpolator struct {
	pl     interp.PiecewiseLinear
	single float64
	n      int
}

// NewSeriesInterpolator fits xs to ys. It returns nil when the series is
// empty, the lengths differ, or xs is not strictly increasing.
func NewSeriesInterpolator(xs, ys []float64) *SeriesInterpolator {
	n := len(xs)
	if n == 0 || len(ys) != n || !strictlyIncreasing(xs) {
		return nil
	}
	si := &SeriesInterpolator{n: n}
	if n == 1 {
		si.single = ys[0]
		return si
	}
	// Fit panics on unsorted knots; strictlyIncreasing has ruled that out.
	_ = si.pl.Fit(xs, ys)
	return si
}

// strictlyIncreasing also rejects NaN knots, which compare false.
func strictlyIncreasing(xs []float64) bool {
	for i := range xs {
		if math.IsNaN(xs[i]) || (i > 0 && !(xs[i] > xs[i-1])) {
			return false
		}
	}
	return true
}

// At returns the interpolated value at x. NaN input yields NaN.
func (si *SeriesInterpolator) At(x float64) float64 {
	if math.IsNaN(x) {
		return math.NaN()
	}
	if si.n == 1 {
		return si.single
	}
	return si.pl.Predict(x)
}

// Interpolator returns an interpolator over one of the result's curves, or nil
// when the result is nil, empty, or its TimeH is not strictly increasing.
func (r *SimulationResult) Interpolator(s Series) *SeriesInterpolator {
	if r == nil {
		return nil
	}
	return NewSeriesInterpolator(r.TimeH, r.values(s))
}

// interpolateSeries answers a single query by binary search over TimeH without
// building an interpolator. On a well-formed result it matches
// SeriesInterpolator.At; a malformed TimeH yields a neighboring sample.
func interpolateSeries(r *SimulationResult, s Series, hour float64) (float64, bool) {
	if r == nil || math.IsNaN(hour) {
		return 0, false
	}
	xs, ys := r.TimeH, r.values(s)
	n := len(xs)
	if n == 0 || len(ys) != n {
		return 0, false
	}
	if hour <= xs[0] {
		return ys[0], true
	}
	if hour >= xs[n-1] {
		return ys[n-1], true
	}
	i := sort.SearchFloat64s(xs, hour)
	if i == n {
		return ys[n-1], true
	}
	if i == 0 || xs[i] == hour {
		return ys[i], true
	}
	x0, x1 := xs[i-1], xs[i]
	if !(x1 > x0) || !(hour >= x0 && hour <= x1) {
		return ys[i], true
	}
	return ys[i-1] + (ys[i]-ys[i-1])/(x1-x0)*(hour-x0), true
}

// InterpolateConcentration returns the combined concentration (pg/mL) at hour.
// The boolean is false when there is no data.
func InterpolateConcentration(r *SimulationResult, hour float64) (float64, bool) {
	return interpolateSeries(r, SeriesCombined, hour)
}

// InterpolateConcentrationE2 returns the E2 concentration (pg/mL) at hour.
func InterpolateConcentrationE2(r *SimulationResult, hour float64) (float64, bool) {
	return interpolateSeries(r, SeriesE2, hour)
}

// InterpolateConcentrationCPA returns the CPA concentration (ng/mL) at hour.
func InterpolateConcentrationCPA(r *SimulationResult, hour float64) (float64, bool) {
	return interpolateSeries(r, SeriesCPA, hour)
}

// nearestSample returns the value of the grid point closest to hour.
func (r *SimulationResult) nearestSample(s Series, hour float64) (float64, bool) {
	if r == nil || len(r.TimeH) == 0 || math.IsNaN(hour) {
		return 0, false
	}
	vals := r.values(s)
	i := sort.SearchFloat64s(r.TimeH, hour)
	switch {
	case i == 0:
		return vals[0], true
	case i == len(r.TimeH):
		return vals[i-1], true
	case hour-r.TimeH[i-1] <= r.TimeH[i]-hour:
		return vals[i-1], true
	}
	return vals[i], true
}
