package report

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/hrt-sim/hrt-sim/sim"
)

// ErrNoUsableLabs is returned when no lab draw can be compared with the curve.
var ErrNoUsableLabs = errors.New("no usable lab results")

// LabComparison holds one lab draw against the uncalibrated prediction.
type LabComparison struct {
	LabID     string  `json:"lab_id"`
	TimeH     float64 `json:"time_h"`
	Observed  float64 `json:"observed_pg_ml"`
	Predicted float64 `json:"predicted_pg_ml"`
	Ratio     float64 `json:"ratio"` // clamped observed/predicted
}

// FitReport holds the statistical comparison between lab draws and the E2 curve.
type FitReport struct {
	Points        []LabComparison `json:"points"`
	Discarded     int             `json:"discarded"`
	MAPE          float64         `json:"mape"`
	BiasDirection string          `json:"bias_direction"` // "over-predict", "under-predict", "neutral"
	PearsonR      float64         `json:"pearson_r"`      // 0 with fewer than 3 draws
	Quality       string          `json:"quality"`        // "excellent", "good", "fair", "poor"
}

// CompareLabs pairs each usable lab draw with the predicted E2 level. Draws
// are filtered exactly as sim.NewCalibration filters them.
func CompareLabs(r *sim.SimulationResult, labs []sim.LabResult) (*FitReport, error) {
	points := sim.NewCalibration(r, labs).Points()
	if len(points) == 0 {
		return nil, ErrNoUsableLabs
	}

	rep := &FitReport{Discarded: len(labs) - len(points)}
	observed := make([]float64, len(points))
	predicted := make([]float64, len(points))
	mapeSum, biasSum := 0.0, 0.0
	for i, p := range points {
		rep.Points = append(rep.Points, LabComparison{
			LabID:     p.LabID,
			TimeH:     p.TimeH,
			Observed:  p.Observed,
			Predicted: p.Predicted,
			Ratio:     p.Ratio,
		})
		observed[i], predicted[i] = p.Observed, p.Predicted
		mapeSum += math.Abs(p.Predicted-p.Observed) / p.Observed
		biasSum += p.Predicted - p.Observed
	}
	rep.MAPE = mapeSum / float64(len(points))
	switch {
	case biasSum > 0:
		rep.BiasDirection = "over-predict"
	case biasSum < 0:
		rep.BiasDirection = "under-predict"
	default:
		rep.BiasDirection = "neutral"
	}

	// Pearson r (requires N >= 3)
	if len(points) >= 3 {
		if r := stat.Correlation(observed, predicted, nil); !math.IsNaN(r) {
			rep.PearsonR = r
		}
	}
	rep.Quality = qualityRating(rep.MAPE, rep.PearsonR, len(points))
	return rep, nil
}

// qualityRating grades the fit. With fewer than 3 draws correlation is
// undefined and only MAPE is used.
func qualityRating(mape, pearsonR float64, n int) string {
	if n < 3 {
		pearsonR = 1
	}
	if mape < 0.10 && pearsonR > 0.95 {
		return "excellent"
	}
	if mape < 0.20 && pearsonR > 0.85 {
		return "good"
	}
	if mape < 0.35 && pearsonR > 0.70 {
		return "fair"
	}
	return "poor"
}
