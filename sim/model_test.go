package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrt-sim/hrt-sim/sim/internal/testutil"
)

func TestEventModel_ZeroBeforeOwnTimestamp(t *testing.T) {
	// GIVEN every route/ester/extras combination dosed at t=10h
	for _, r := range allRoutes() {
		for _, e := range allEsters() {
			for _, ex := range extrasVariants() {
				ev := DoseEvent{Route: r, Ester: e, DoseMG: 4, TimeH: 10, Extras: ex}
				m := NewEventModel(ev, 48)
				if r == RoutePatchRemove {
					assert.Nil(t, m)
					continue
				}
				require.NotNil(t, m)
				// THEN nothing is in the body before the dose
				for _, q := range []float64{-1000, 0, 9, 9.999999} {
					if got := m.Amount(q); got != 0 {
						t.Errorf("route=%v ester=%v t=%v: amount=%v, want 0", r, e, q, got)
					}
				}
				// AND the amount is finite and non-negative afterwards
				for _, q := range []float64{10, 10.5, 12, 34, 200, 5000} {
					got := m.Amount(q)
					if math.IsNaN(got) || math.IsInf(got, 0) || got < -1e-12 {
						t.Errorf("route=%v ester=%v t=%v: amount=%v", r, e, q, got)
					}
				}
			}
		}
	}
}

func TestEventModel_NonPositiveDose_Zero(t *testing.T) {
	for _, r := range allRoutes() {
		for _, dose := range []float64{0, -3} {
			m := NewEventModel(DoseEvent{Route: r, Ester: EsterE2, DoseMG: dose,
				Extras: PatchExtras{ReleaseRateUGPerDay: 100}}, math.Inf(1))
			if m == nil {
				continue
			}
			assert.Zero(t, m.Amount(5), "route %v dose %v", r, dose)
		}
	}
}

func TestEventModel_Gel_ClosedForm(t *testing.T) {
	// GIVEN 3 mg E2 gel at t=0
	m := NewEventModel(DoseEvent{Route: RouteGel, Ester: EsterE2, DoseMG: 3}, math.Inf(1))

	// WHEN evaluated 24h later
	got := m.Amount(24)

	// THEN it matches the one-compartment solution
	want := 3 * 0.05 * 0.022 / (0.022 - 0.41) * (math.Exp(-0.41*24) - math.Exp(-0.022*24))
	testutil.AssertRelClose(t, "gel amount", want, got, 1e-9)
}

func TestOneCompartment_DegenerateRates(t *testing.T) {
	got := oneCompartment(5, 2, 0.5, 0.3, 0.3+1e-12)
	want := 2 * 0.5 * 0.3 * 5 * math.Exp(-(0.3+1e-12)*5)
	testutil.AssertRelClose(t, "degenerate", want, got, 1e-12)
}

func TestOneCompartment_NonPositiveRates_Zero(t *testing.T) {
	assert.Zero(t, oneCompartment(5, 1, 1, 0, 0.4))
	assert.Zero(t, oneCompartment(5, 1, 1, 0.3, 0))
	assert.Zero(t, oneCompartment(5, 1, 1, -1, 0.4))
}

// TestThreeCompartment_NearEqualRates_ReturnsZero pins the current behavior of
// the depot solver: rate constants closer than 1e-9 contribute nothing instead
// of the limiting polynomial-times-exponential form.
func TestThreeCompartment_NearEqualRates_ReturnsZero(t *testing.T) {
	tests := []struct {
		name       string
		k1, k2, k3 float64
	}{
		{"k1 = k2", 0.07, 0.07, 0.41},
		{"k1 ~ k3", 0.41 + 5e-10, 0.07, 0.41},
		{"k2 ~ k3", 0.02, 0.041, 0.041 - 1e-10},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Zero(t, threeCompartment(24, 5, 0.1, tc.k1, tc.k2, tc.k3))
		})
	}
}

func TestThreeCompartment_StartsAtZero(t *testing.T) {
	got := threeCompartment(0, 5, 0.1, 0.0216, 0.07, 0.041)
	assert.InDelta(t, 0, got, 1e-12)
}

func TestThreeCompartment_IntegralEqualsDoseFOverK3(t *testing.T) {
	// GIVEN a depot chain with distinct constants
	dose, F, k1, k2, k3 := 5.0, 0.06, 0.0216, 0.07, 0.041

	// WHEN integrated far past the terminal phase with a fine trapezoid
	const dt = 0.05
	area := 0.0
	prev := threeCompartment(0, dose, F, k1, k2, k3)
	for tau := dt; tau <= 2000; tau += dt {
		cur := threeCompartment(tau, dose, F, k1, k2, k3)
		area += (prev + cur) / 2 * dt
		prev = cur
	}

	// THEN the area is dose·F/k3
	testutil.AssertRelClose(t, "depot AUC", dose*F/k3, area, 1e-4)
}

func TestPatchModel_ZeroOrder_ConvergesToSteadyState(t *testing.T) {
	// GIVEN a 200 µg/day patch that is never removed
	ev := DoseEvent{Route: RoutePatchApply, Ester: EsterE2, DoseMG: 1,
		Extras: PatchExtras{ReleaseRateUGPerDay: 200}}
	m := NewEventModel(ev, math.Inf(1))
	rate := 200.0 / 24000.0
	steady := rate / 0.41

	// WHEN sampled over time
	var vals []float64
	for tau := 0.0; tau <= 100; tau += 0.5 {
		vals = append(vals, m.Amount(tau))
	}

	// THEN the amount rises monotonically towards rate/k3
	testutil.AssertNonDecreasing(t, "zero-order patch", vals, 0)
	for _, v := range vals {
		assert.LessOrEqual(t, v, steady)
	}
	testutil.AssertRelClose(t, "steady state", steady, m.Amount(1000), 1e-12)
	assert.Less(t, steady-m.Amount(10), steady-m.Amount(5))
}

func TestPatchModel_DecaysAfterRemoval(t *testing.T) {
	tests := []struct {
		name   string
		extras Extras
	}{
		{"zero-order", PatchExtras{ReleaseRateUGPerDay: 100}},
		{"first-order", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ev := DoseEvent{Route: RoutePatchApply, Ester: EsterE2, DoseMG: 4, TimeH: 100, Extras: tc.extras}
			m := NewEventModel(ev, 72)
			atRemoval := m.Amount(172)
			require.Greater(t, atRemoval, 0.0)
			testutil.AssertRelClose(t, "post-removal", atRemoval*math.Exp(-0.41*10), m.Amount(182), 1e-12)
		})
	}
}

func TestWearDurations(t *testing.T) {
	// GIVEN a patch applied at 0 and removed at 84h, a second patch applied at 84h
	// that is never removed, and a removal co-timed with the first application
	events := SortEvents([]DoseEvent{
		{ID: "apply-1", Route: RoutePatchApply, TimeH: 0, DoseMG: 1},
		{ID: "remove-0", Route: RoutePatchRemove, TimeH: 0},
		{ID: "oral", Route: RouteOral, TimeH: 12, DoseMG: 2},
		{ID: "remove-1", Route: RoutePatchRemove, TimeH: 84},
		{ID: "apply-2", Route: RoutePatchApply, TimeH: 84, DoseMG: 1},
	})

	wear := WearDurations(events)

	byID := map[string]float64{}
	for i, ev := range events {
		byID[ev.ID] = wear[i]
	}
	assert.Equal(t, 84.0, byID["apply-1"], "removal must be strictly after the application")
	assert.True(t, math.IsInf(byID["apply-2"], 1))
	assert.True(t, math.IsInf(byID["oral"], 1))
	assert.True(t, math.IsInf(byID["remove-1"], 1))
}

func TestSortEvents_StableAndNonMutating(t *testing.T) {
	in := []DoseEvent{{ID: "b", TimeH: 5}, {ID: "a", TimeH: 1}, {ID: "c", TimeH: 5}}
	out := SortEvents(in)
	assert.Equal(t, []string{"a", "b", "c"}, []string{out[0].ID, out[1].ID, out[2].ID})
	assert.Equal(t, "b", in[0].ID)
}
