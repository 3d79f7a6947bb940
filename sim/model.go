package sim

import (
	"math"
	"sort"
)

// rateEpsilon is the distance below which two rate constants are treated as equal.
const rateEpsilon = 1e-9

// EventModel gives the amount of drug (mg, before dividing by the volume of
// distribution) that one event contributes at an absolute time.
type EventModel interface {
	Amount(timeH float64) float64
	// CPA reports whether the amount belongs to the CPA pool.
	CPA() bool
}

// oneCompartment returns the central amount after first-order absorption ka
// and first-order elimination ke, tau hours after the dose.
func oneCompartment(tau, dose, F, ka, ke float64) float64 {
	if tau < 0 || dose <= 0 || ka <= 0 || ke <= 0 {
		return 0
	}
	if math.Abs(ka-ke) < rateEpsilon {
		return dose * F * ka * tau * math.Exp(-ke*tau)
	}
	return dose * F * ka / (ka - ke) * (math.Exp(-ke*tau) - math.Exp(-ka*tau))
}

// threeCompartment returns the amount in the last compartment of the chain
// depot -k1-> ester -k2-> analyte -k3-> out.
//
// Near-equal rate constants yield 0 rather than the limiting form. This is
// pinned by TestThreeCompartment_NearEqualRates_ReturnsZero.
func threeCompartment(tau, dose, F, k1, k2, k3 float64) float64 {
	if tau < 0 || dose <= 0 || k1 <= 0 || k2 <= 0 || k3 <= 0 {
		return 0
	}
	if math.Abs(k1-k2) < rateEpsilon || math.Abs(k1-k3) < rateEpsilon || math.Abs(k2-k3) < rateEpsilon {
		return 0
	}
	sum := math.Exp(-k1*tau)/((k1-k2)*(k1-k3)) +
		math.Exp(-k2*tau)/((k2-k1)*(k2-k3)) +
		math.Exp(-k3*tau)/((k3-k1)*(k3-k2))
	return dose * F * k1 * k2 * sum
}

// depotModel is a two-part depot: the fast and slow fractions each run
// through their own k1, sharing k2 and k3.
type depotModel struct {
	t0, dose float64
	p        PKParams
	cpa      bool
}

func (m depotModel) Amount(t float64) float64 {
	tau := t - m.t0
	if tau < 0 {
		return 0
	}
	fast := m.dose * m.p.FracFast
	slow := m.dose * (1 - m.p.FracFast)
	return threeCompartment(tau, fast, m.p.F, m.p.K1Fast, m.p.K2, m.p.K3) +
		threeCompartment(tau, slow, m.p.F, m.p.K1Slow, m.p.K2, m.p.K3)
}

func (m depotModel) CPA() bool { return m.cpa }

// absorptionModel is single-pathway first-order absorption.
type absorptionModel struct {
	t0, dose float64
	p        PKParams
	cpa      bool
}

func (m absorptionModel) Amount(t float64) float64 {
	return oneCompartment(t-m.t0, m.dose, m.p.F, m.p.K1Fast, m.p.K3)
}

func (m absorptionModel) CPA() bool { return m.cpa }

// sublingualModel splits the dose between the mucosal and swallowed pathways.
// Esters with a hydrolysis step use depot kinetics on both branches.
type sublingualModel struct {
	t0, dose float64
	p        PKParams
	cpa      bool
}

func (m sublingualModel) Amount(t float64) float64 {
	tau := t - m.t0
	if tau < 0 {
		return 0
	}
	fast := m.dose * m.p.FracFast
	slow := m.dose * (1 - m.p.FracFast)
	if m.p.K2 > 0 {
		return threeCompartment(tau, fast, m.p.FFast, m.p.K1Fast, m.p.K2, m.p.K3) +
			threeCompartment(tau, slow, m.p.FSlow, m.p.K1Slow, m.p.K2, m.p.K3)
	}
	return oneCompartment(tau, fast, m.p.FFast, m.p.K1Fast, m.p.K3) +
		oneCompartment(tau, slow, m.p.FSlow, m.p.K1Slow, m.p.K3)
}

func (m sublingualModel) CPA() bool { return m.cpa }

// patchModel covers both patch modes. During wear the amount follows either
// zero-order infusion (RateMGh > 0) or first-order absorption of the full dose;
// after removal the amount at removal decays with K3.
type patchModel struct {
	t0, dose float64
	wearH    float64 // +Inf when never removed
	p        PKParams
	cpa      bool
}

func (m patchModel) worn(tau float64) float64 {
	if m.p.RateMGh > 0 {
		if m.p.K3 <= 0 {
			return 0
		}
		return m.p.RateMGh / m.p.K3 * (1 - math.Exp(-m.p.K3*tau))
	}
	return oneCompartment(tau, m.dose, m.p.F, m.p.K1Fast, m.p.K3)
}

func (m patchModel) Amount(t float64) float64 {
	tau := t - m.t0
	if tau < 0 || m.dose <= 0 {
		return 0
	}
	if tau <= m.wearH {
		return m.worn(tau)
	}
	return m.worn(m.wearH) * math.Exp(-m.p.K3*(tau-m.wearH))
}

func (m patchModel) CPA() bool { return m.cpa }

// NewEventModel builds the model for one event. wearH is only consulted for
// patch applications; pass math.Inf(1) when the patch is never removed.
// Returns nil for patch removals, which contribute no curve.
func NewEventModel(ev DoseEvent, wearH float64) EventModel {
	p := ResolveParams(ev)
	cpa := ev.Ester.IsCPA()
	switch ev.Route {
	case RoutePatchRemove:
		return nil
	case RouteInjection:
		return depotModel{t0: ev.TimeH, dose: ev.DoseMG, p: p, cpa: cpa}
	case RouteSublingual:
		return sublingualModel{t0: ev.TimeH, dose: ev.DoseMG, p: p, cpa: cpa}
	case RoutePatchApply:
		return patchModel{t0: ev.TimeH, dose: ev.DoseMG, wearH: wearH, p: p, cpa: cpa}
	}
	return absorptionModel{t0: ev.TimeH, dose: ev.DoseMG, p: p, cpa: cpa}
}

// WearDurations returns, for every patch application in the time-sorted
// events, the hours until the first patch removal strictly after it. Other
// events and never-removed patches map to +Inf.
func WearDurations(sorted []DoseEvent) []float64 {
	var removals []float64
	for _, ev := range sorted {
		if ev.Route == RoutePatchRemove {
			removals = append(removals, ev.TimeH)
		}
	}
	out := make([]float64, len(sorted))
	for i, ev := range sorted {
		out[i] = math.Inf(1)
		if ev.Route != RoutePatchApply {
			continue
		}
		j := sort.Search(len(removals), func(k int) bool { return removals[k] > ev.TimeH })
		if j < len(removals) {
			out[i] = removals[j] - ev.TimeH
		}
	}
	return out
}

// SortEvents returns a time-ordered copy; events at the same time keep their input order.
func SortEvents(events []DoseEvent) []DoseEvent {
	sorted := make([]DoseEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].TimeH < sorted[j].TimeH })
	return sorted
}
