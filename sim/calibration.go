package sim

import (
	"math"
	"sort"

	"github.com/sirupsen/logrus"
)

// Calibration ratio bounds and the smallest prediction worth calibrating against.
const (
	MinCalibrationRatio = 0.1
	MaxCalibrationRatio = 10.0
	minPredictedPGmL    = 0.01
)

// CalibrationPoint is one usable lab draw.
type CalibrationPoint struct {
	LabID     string
	TimeH     float64
	Observed  float64 // pg/mL
	Predicted float64 // pg/mL
	Ratio     float64 // clamped observed/predicted
}

// CalibrationFunc maps an hour to the E2 correction ratio at that time.
type CalibrationFunc func(hour float64) float64

// Calibration is a time-varying E2 correction built from lab draws.
type Calibration struct {
	points []CalibrationPoint // sorted by time
	interp *SeriesInterpolator
}

// NewCalibration compares each lab draw with the predicted E2 concentration
// at the draw time. Draws with a prediction at or below 0.01 pg/mL or a
// non-positive observation are discarded.
func NewCalibration(r *SimulationResult, labs []LabResult) *Calibration {
	c := &Calibration{}
	if r == nil {
		return c
	}
	e2 := r.Interpolator(SeriesE2)
	for _, lab := range labs {
		observed := lab.PgML()
		predicted, ok := math.NaN(), false
		if e2 != nil && !math.IsNaN(lab.TimeH) {
			predicted, ok = e2.At(lab.TimeH), true
		}
		if !ok || math.IsNaN(predicted) {
			predicted, ok = r.nearestSample(SeriesE2, lab.TimeH)
		}
		if !ok || !(predicted > minPredictedPGmL) || !(observed > 0) || math.IsInf(observed, 0) {
			logrus.Debugf("calibration: discarding lab %q at %.2fh (observed=%v predicted=%v)",
				lab.ID, lab.TimeH, observed, predicted)
			continue
		}
		c.points = append(c.points, CalibrationPoint{
			LabID:     lab.ID,
			TimeH:     lab.TimeH,
			Observed:  observed,
			Predicted: predicted,
			Ratio:     clampRatio(observed / predicted),
		})
	}
	sort.SliceStable(c.points, func(i, j int) bool { return c.points[i].TimeH < c.points[j].TimeH })

	if len(c.points) >= 2 {
		xs, ys := mergeCoincident(c.points)
		c.interp = NewSeriesInterpolator(xs, ys)
	}
	return c
}

// mergeCoincident averages the ratios of draws taken at the same time so the
// interpolation knots are strictly increasing.
func mergeCoincident(points []CalibrationPoint) (xs, ys []float64) {
	for i := 0; i < len(points); {
		j, sum := i, 0.0
		for ; j < len(points) && points[j].TimeH == points[i].TimeH; j++ {
			sum += points[j].Ratio
		}
		xs = append(xs, points[i].TimeH)
		ys = append(ys, sum/float64(j-i))
		i = j
	}
	return xs, ys
}

// Points returns the usable draws in time order.
func (c *Calibration) Points() []CalibrationPoint {
	out := make([]CalibrationPoint, len(c.points))
	copy(out, c.points)
	return out
}

// Ratio returns the correction ratio at hour: 1 with no usable draws, the
// single ratio with one, and a clamped piecewise-linear interpolation otherwise.
func (c *Calibration) Ratio(hour float64) float64 {
	switch len(c.points) {
	case 0:
		return 1
	case 1:
		return c.points[0].Ratio
	}
	if c.interp == nil {
		return c.points[0].Ratio
	}
	v := c.interp.At(hour)
	if math.IsNaN(v) {
		return 1
	}
	return clampRatio(v)
}

// CreateCalibrationInterpolator returns the E2 correction ratio as a function of time.
func CreateCalibrationInterpolator(r *SimulationResult, labs []LabResult) CalibrationFunc {
	return NewCalibration(r, labs).Ratio
}

// ApplyCalibration returns the E2 series scaled by ratio at each grid time.
// CPA has no lab assay in this model and is never calibrated.
func ApplyCalibration(r *SimulationResult, ratio CalibrationFunc) []float64 {
	if r == nil {
		return nil
	}
	out := make([]float64, len(r.ConcPGmLE2))
	for i, v := range r.ConcPGmLE2 {
		out[i] = v * ratio(r.TimeH[i])
	}
	return out
}

func clampRatio(v float64) float64 {
	return math.Min(MaxCalibrationRatio, math.Max(MinCalibrationRatio, v))
}
