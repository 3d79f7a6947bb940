// Package report summarizes simulated curves and compares them with lab draws.
// This package depends only on sim/ result types and holds no state.
package report

import (
	"math"

	"gonum.org/v1/gonum/integrate"

	"github.com/hrt-sim/hrt-sim/sim"
)

// SeriesStats describes one concentration series inside a window.
type SeriesStats struct {
	Peak        float64 `json:"peak"`
	PeakTimeH   float64 `json:"peak_time_h"`
	Trough      float64 `json:"trough"`
	TroughTimeH float64 `json:"trough_time_h"`
	Mean        float64 `json:"mean"` // time-weighted
}

// CurveSummary aggregates the E2 (pg/mL) and CPA (ng/mL) series of a result.
type CurveSummary struct {
	FromH   float64     `json:"from_h"`
	ToH     float64     `json:"to_h"`
	Samples int         `json:"samples"`
	E2      SeriesStats `json:"e2_pg_ml"`
	CPA     SeriesStats `json:"cpa_ng_ml"`
	AUC     float64     `json:"auc_pg_h_ml"` // whole-curve AUC of the combined series
}

// Summarize computes stats over grid points in [fromH, toH]. An empty or
// inverted window selects the whole series. Safe for a nil result (returns
// zero-value fields).
func Summarize(r *sim.SimulationResult, fromH, toH float64) *CurveSummary {
	summary := &CurveSummary{}
	if r == nil || len(r.TimeH) == 0 {
		return summary
	}
	lo, hi := 0, len(r.TimeH)
	if fromH < toH {
		lo, hi = window(r.TimeH, fromH, toH)
	}
	summary.AUC = r.AUC
	if lo >= hi {
		summary.FromH, summary.ToH = fromH, toH
		return summary
	}
	times := r.TimeH[lo:hi]
	summary.FromH, summary.ToH = times[0], times[len(times)-1]
	summary.Samples = len(times)
	summary.E2 = seriesStats(times, r.ConcPGmLE2[lo:hi])
	summary.CPA = seriesStats(times, r.ConcNGmLCPA[lo:hi])
	return summary
}

// window returns the index range of times inside [from, to].
func window(times []float64, from, to float64) (int, int) {
	lo := len(times)
	for i, t := range times {
		if t >= from {
			lo = i
			break
		}
	}
	hi := lo
	for hi < len(times) && times[hi] <= to {
		hi++
	}
	return lo, hi
}

func seriesStats(times, vals []float64) SeriesStats {
	st := SeriesStats{Peak: math.Inf(-1), Trough: math.Inf(1)}
	for i, v := range vals {
		if v > st.Peak {
			st.Peak, st.PeakTimeH = v, times[i]
		}
		if v < st.Trough {
			st.Trough, st.TroughTimeH = v, times[i]
		}
	}
	if len(vals) == 1 {
		st.Mean = vals[0]
		return st
	}
	if span := times[len(times)-1] - times[0]; span > 0 {
		st.Mean = integrate.Trapezoidal(times, vals) / span
	}
	return st
}
