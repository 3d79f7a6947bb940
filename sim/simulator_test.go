package sim

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrt-sim/hrt-sim/sim/internal/testutil"
)

func TestRunSimulation_NoEvents_ReturnsErrNoEvents(t *testing.T) {
	res, err := RunSimulation(nil, 70)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrNoEvents)
}

func TestRunSimulation_InvalidWeight(t *testing.T) {
	events := []DoseEvent{{Route: RouteOral, Ester: EsterE2, DoseMG: 2}}
	for _, w := range []float64{0, -70, math.NaN(), math.Inf(1)} {
		res, err := RunSimulation(events, w)
		assert.Nil(t, res, "weight %v", w)
		assert.ErrorIs(t, err, ErrInvalidWeight, "weight %v", w)
	}
}

func TestRunSimulation_NonFiniteEvent_ReturnsErrInvalidEvent(t *testing.T) {
	tests := []struct {
		name string
		ev   DoseEvent
	}{
		{"+Inf time", DoseEvent{Route: RouteOral, Ester: EsterE2, DoseMG: 1, TimeH: math.Inf(1)}},
		{"-Inf time", DoseEvent{Route: RouteOral, Ester: EsterE2, DoseMG: 1, TimeH: math.Inf(-1)}},
		{"NaN time", DoseEvent{Route: RouteOral, Ester: EsterE2, DoseMG: 1, TimeH: math.NaN()}},
		{"NaN dose", DoseEvent{Route: RouteInjection, Ester: EsterEV, DoseMG: math.NaN(), TimeH: 5}},
		{"Inf dose", DoseEvent{Route: RouteGel, Ester: EsterE2, DoseMG: math.Inf(1), TimeH: 5}},
		{"NaN time on removal", DoseEvent{Route: RoutePatchRemove, Ester: EsterE2, TimeH: math.NaN()}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// GIVEN one valid event plus one with a non-finite field
			events := []DoseEvent{{Route: RouteOral, Ester: EsterE2, DoseMG: 2, TimeH: 0}, tc.ev}

			// WHEN simulated
			res, err := RunSimulation(events, 70)

			// THEN the run is rejected instead of producing a NaN curve
			assert.Nil(t, res)
			assert.ErrorIs(t, err, ErrInvalidEvent)
		})
	}
}

func TestRunSimulation_NegativeDoseStillFinite(t *testing.T) {
	res, err := RunSimulation([]DoseEvent{{Route: RouteOral, Ester: EsterE2, DoseMG: -1, TimeH: 3}}, 70)
	require.NoError(t, err)
	testutil.AssertAllFinite(t, "E2", res.ConcPGmLE2)
	assert.Zero(t, res.AUC)
}

func TestRunSimulation_GridCoversWindowAndEventTimes(t *testing.T) {
	// GIVEN events at times that do not fall on the even grid
	events := []DoseEvent{
		{Route: RouteOral, Ester: EsterE2, DoseMG: 2, TimeH: 100.123},
		{Route: RouteInjection, Ester: EsterEV, DoseMG: 5, TimeH: 3.7},
		{Route: RoutePatchRemove, Ester: EsterE2, TimeH: 50.5},
	}

	res, err := RunSimulation(events, 70)
	require.NoError(t, err)

	// THEN the grid spans [first-24h, last+14d]
	assert.InDelta(t, 3.7-24, res.TimeH[0], 1e-12)
	assert.InDelta(t, 100.123+14*24, res.TimeH[len(res.TimeH)-1], 1e-12)
	// AND contains every event time exactly
	for _, ev := range events {
		assert.Contains(t, res.TimeH, ev.TimeH)
	}
	// AND is strictly increasing with at least the default sample count
	assert.GreaterOrEqual(t, len(res.TimeH), DefaultSamples)
	for i := 1; i < len(res.TimeH); i++ {
		require.Greater(t, res.TimeH[i], res.TimeH[i-1], "index %d", i)
	}
	assert.Len(t, res.ConcPGmL, len(res.TimeH))
	assert.Len(t, res.ConcPGmLE2, len(res.TimeH))
	assert.Len(t, res.ConcNGmLCPA, len(res.TimeH))
}

func TestEngine_GelExample_ConcentrationAt24h(t *testing.T) {
	// GIVEN a 1-hour grid so that t=24h is sampled exactly
	eng, err := NewEngine(EngineConfig{Samples: 361, PreWindowH: 24, PostWindowH: 336})
	require.NoError(t, err)
	events := []DoseEvent{{Route: RouteGel, Ester: EsterE2, DoseMG: 3, TimeH: 0}}

	// WHEN simulated for a 70 kg body
	res, err := eng.Run(events, 70)
	require.NoError(t, err)

	// THEN the E2 concentration at 24h matches the closed form
	amount := 3 * 0.05 * 0.022 / (0.022 - 0.41) * (math.Exp(-0.41*24) - math.Exp(-0.022*24))
	want := amount * 1e9 / (2.0 * 70 * 1000)
	got, ok := InterpolateConcentrationE2(res, 24)
	require.True(t, ok)
	testutil.AssertRelClose(t, "gel conc at 24h", want, got, 1e-6)
}

func TestRunSimulation_SingleDoseAUC_MatchesClosedForm(t *testing.T) {
	// GIVEN one oral E2 dose, far from the window edges in elimination terms
	const dose, weight = 2.0, 70.0
	res, err := RunSimulation([]DoseEvent{{Route: RouteOral, Ester: EsterE2, DoseMG: dose}}, weight)
	require.NoError(t, err)

	// THEN AUC equals dose·F/k3 converted to concentration units
	want := dose * 0.03 / 0.41 * 1e9 / (2.0 * weight * 1000)
	testutil.AssertRelClose(t, "AUC", want, res.AUC, 0.01)
}

func TestRunSimulation_CPAPool_SeparateUnits(t *testing.T) {
	// GIVEN only an oral CPA dose
	res, err := RunSimulation([]DoseEvent{{Route: RouteOral, Ester: EsterCPA, DoseMG: 12.5, TimeH: 10}}, 60)
	require.NoError(t, err)

	// THEN the E2 pool stays empty and the combined series is CPA in pg/mL
	peak := 0.0
	for i := range res.TimeH {
		assert.Zero(t, res.ConcPGmLE2[i])
		assert.Equal(t, res.ConcNGmLCPA[i]*1000, res.ConcPGmL[i])
		peak = math.Max(peak, res.ConcNGmLCPA[i])
	}
	assert.Greater(t, peak, 0.0)

	// AND the CPA amount is converted with Vd 14 L/kg into ng/mL
	m := NewEventModel(DoseEvent{Route: RouteOral, Ester: EsterCPA, DoseMG: 12.5, TimeH: 10}, math.Inf(1))
	for i, tH := range res.TimeH {
		if tH < 14 {
			continue
		}
		testutil.AssertRelClose(t, "CPA conc", m.Amount(tH)*1e6/(14.0*60*1000), res.ConcNGmLCPA[i], 1e-12)
		break
	}
}

func TestRunSimulation_SuperposesEvents(t *testing.T) {
	// GIVEN an injection, a sublingual dose and a patch with its removal
	events := []DoseEvent{
		{Route: RouteInjection, Ester: EsterEV, DoseMG: 5, TimeH: 0},
		{Route: RouteSublingual, Ester: EsterE2, DoseMG: 2, TimeH: 30},
		{Route: RoutePatchApply, Ester: EsterE2, DoseMG: 1, TimeH: 12, Extras: PatchExtras{ReleaseRateUGPerDay: 100}},
		{Route: RoutePatchRemove, Ester: EsterE2, TimeH: 96},
	}
	res, err := RunSimulation(events, 80)
	require.NoError(t, err)

	models := []EventModel{
		NewEventModel(events[0], math.Inf(1)),
		NewEventModel(events[1], math.Inf(1)),
		NewEventModel(events[2], 84),
	}
	scale := 1e9 / (2.0 * 80 * 1000)
	for i, tH := range res.TimeH {
		sum := 0.0
		for _, m := range models {
			sum += m.Amount(tH)
		}
		assert.InDelta(t, sum*scale, res.ConcPGmLE2[i], 1e-9*math.Max(1, sum*scale), "t=%v", tH)
	}
}

func TestRunSimulation_OrderIndependentAndNonMutating(t *testing.T) {
	events := []DoseEvent{
		{ID: "c", Route: RouteGel, Ester: EsterE2, DoseMG: 3, TimeH: 48},
		{ID: "a", Route: RouteInjection, Ester: EsterEC, DoseMG: 4, TimeH: 0},
		{ID: "b", Route: RouteOral, Ester: EsterEV, DoseMG: 2, TimeH: 24},
	}
	reversed := []DoseEvent{events[2], events[1], events[0]}

	r1, err := RunSimulation(events, 65)
	require.NoError(t, err)
	r2, err := RunSimulation(reversed, 65)
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
	assert.Equal(t, "c", events[0].ID, "input slice must not be reordered")
}

func TestRunSimulation_ConcurrentCallsAgree(t *testing.T) {
	events := []DoseEvent{
		{Route: RouteInjection, Ester: EsterEV, DoseMG: 5, TimeH: 0},
		{Route: RouteInjection, Ester: EsterEV, DoseMG: 5, TimeH: 168},
	}
	want, err := RunSimulation(events, 70)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*SimulationResult, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = RunSimulation(events, 70)
		}(i)
	}
	wg.Wait()
	for _, got := range results {
		assert.Equal(t, want, got)
	}
}

func TestRunSimulation_PatchRemovalEndsRise(t *testing.T) {
	events := []DoseEvent{
		{Route: RoutePatchApply, Ester: EsterE2, DoseMG: 1, TimeH: 0, Extras: PatchExtras{ReleaseRateUGPerDay: 100}},
		{Route: RoutePatchRemove, Ester: EsterE2, TimeH: 84},
	}
	res, err := RunSimulation(events, 70)
	require.NoError(t, err)

	atRemoval, _ := InterpolateConcentrationE2(res, 84)
	later, _ := InterpolateConcentrationE2(res, 96)
	muchLater, _ := InterpolateConcentrationE2(res, 200)
	assert.Greater(t, atRemoval, later)
	assert.Greater(t, later, muchLater)
	testutil.AssertAllFinite(t, "E2", res.ConcPGmLE2)
}

func TestRunSimulation_NeverProducesNaN(t *testing.T) {
	var events []DoseEvent
	for i, r := range allRoutes() {
		for j, e := range allEsters() {
			for k, ex := range extrasVariants() {
				events = append(events, DoseEvent{Route: r, Ester: e, DoseMG: 1, Extras: ex,
					TimeH: float64(i*100 + j*10 + k)})
			}
		}
	}
	res, err := RunSimulation(events, 70)
	require.NoError(t, err)
	testutil.AssertAllFinite(t, "combined", res.ConcPGmL)
	testutil.AssertAllFinite(t, "E2", res.ConcPGmLE2)
	testutil.AssertAllFinite(t, "CPA", res.ConcNGmLCPA)
	assert.False(t, math.IsNaN(res.AUC))
}

func TestNewEngine_InvalidConfig(t *testing.T) {
	_, err := NewEngine(EngineConfig{Samples: 1})
	assert.Error(t, err)
}
