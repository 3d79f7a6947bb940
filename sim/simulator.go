// sim/simulator.go
package sim

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
)

// Volumes of distribution in L/kg.
const (
	vdPerKGE2  = 2.0
	vdPerKGCPA = 14.0
)

var (
	// ErrNoEvents is returned when there is nothing to simulate.
	ErrNoEvents = errors.New("no dose events")
	// ErrInvalidWeight is returned for a non-positive or non-finite body weight.
	ErrInvalidWeight = errors.New("body weight must be a positive finite number")
	// ErrInvalidEvent is returned for an event whose time or dose is NaN or infinite.
	ErrInvalidEvent = errors.New("dose event time and dose must be finite")
)

// SimulationResult is a freshly computed concentration curve. All slices share
// the indexing of TimeH, which is strictly increasing.
type SimulationResult struct {
	TimeH       []float64
	ConcPGmL    []float64 // E2 pg/mL + CPA expressed in pg/mL; display and AUC only
	ConcPGmLE2  []float64 // pg/mL
	ConcNGmLCPA []float64 // ng/mL
	AUC         float64   // trapezoidal integral of ConcPGmL, pg·h/mL
}

// Engine runs simulations on a fixed grid configuration. It holds no mutable
// state and can be shared between goroutines.
type Engine struct {
	cfg EngineConfig
}

// NewEngine validates cfg and returns an engine using it.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	return &Engine{cfg: cfg}, nil
}

// Config returns the engine's grid configuration.
func (e *Engine) Config() EngineConfig { return e.cfg }

var defaultEngine = &Engine{cfg: DefaultEngineConfig()}

// RunSimulation simulates events for a body of weightKG on the default grid.
func RunSimulation(events []DoseEvent, weightKG float64) (*SimulationResult, error) {
	return defaultEngine.Run(events, weightKG)
}

// Run superposes every event's amount curve over the grid
// [first-PreWindowH, last+PostWindowH] sampled evenly and merged with the
// exact event times, then converts pool amounts to plasma concentrations.
func (e *Engine) Run(events []DoseEvent, weightKG float64) (*SimulationResult, error) {
	if len(events) == 0 {
		return nil, ErrNoEvents
	}
	if !(weightKG > 0) || math.IsInf(weightKG, 0) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidWeight, weightKG)
	}
	for i, ev := range events {
		if !isFinite(ev.TimeH) || !isFinite(ev.DoseMG) {
			return nil, fmt.Errorf("%w: events[%d] (id %q) timeH=%v doseMG=%v",
				ErrInvalidEvent, i, ev.ID, ev.TimeH, ev.DoseMG)
		}
	}

	sorted := SortEvents(events)
	wear := WearDurations(sorted)
	models := make([]EventModel, 0, len(sorted))
	for i, ev := range sorted {
		if m := NewEventModel(ev, wear[i]); m != nil {
			models = append(models, m)
		}
	}

	grid := e.timeGrid(sorted)
	res := &SimulationResult{
		TimeH:       grid,
		ConcPGmL:    make([]float64, len(grid)),
		ConcPGmLE2:  make([]float64, len(grid)),
		ConcNGmLCPA: make([]float64, len(grid)),
	}
	e2Scale := 1e9 / (vdPerKGE2 * weightKG * 1000)
	cpaScale := 1e6 / (vdPerKGCPA * weightKG * 1000)
	for i, t := range grid {
		var amountE2, amountCPA float64
		for _, m := range models {
			if m.CPA() {
				amountCPA += m.Amount(t)
			} else {
				amountE2 += m.Amount(t)
			}
		}
		res.ConcPGmLE2[i] = amountE2 * e2Scale
		res.ConcNGmLCPA[i] = amountCPA * cpaScale
		res.ConcPGmL[i] = res.ConcPGmLE2[i] + res.ConcNGmLCPA[i]*1000
	}
	if len(grid) >= 2 {
		res.AUC = integrate.Trapezoidal(grid, res.ConcPGmL)
	}

	logrus.Debugf("simulated %d events (%d curves) over %d grid points, AUC=%.3f",
		len(sorted), len(models), len(grid), res.AUC)
	return res, nil
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// timeGrid returns the evenly spaced samples unioned with the event times,
// sorted and without duplicates.
func (e *Engine) timeGrid(sorted []DoseEvent) []float64 {
	start := sorted[0].TimeH - e.cfg.PreWindowH
	end := sorted[len(sorted)-1].TimeH + e.cfg.PostWindowH
	grid := floats.Span(make([]float64, e.cfg.Samples, e.cfg.Samples+len(sorted)), start, end)
	grid[e.cfg.Samples-1] = end
	for _, ev := range sorted {
		grid = append(grid, ev.TimeH)
	}
	sort.Float64s(grid)

	n := 0
	for i, t := range grid {
		if i > 0 && t == grid[n-1] {
			continue
		}
		grid[n] = t
		n++
	}
	return grid[:n]
}
