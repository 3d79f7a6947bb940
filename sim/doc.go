// Package sim provides the pharmacokinetic simulation engine for hrt-sim.
//
// # Reading Guide
//
// Start with these files to understand the engine:
//   - event.go: DoseEvent, LabResult and the closed Route/Ester enums
//   - params.go: ParameterResolver mapping an event to rate constants and bioavailability
//   - model.go: closed-form per-event amount models (depot, absorption, sublingual, patch)
//   - simulator.go: superposition over the time grid, Vd conversion and AUC
//
// # Pools and units
//
// Estradiol-class esters accumulate in the E2 pool (pg/mL, Vd 2.0 L/kg) and
// cyproterone acetate in the CPA pool (ng/mL, Vd 14.0 L/kg). The combined
// series adds CPA converted to pg/mL and is meant for display and AUC only.
//
// # Numeric policy
//
// The resolver, solvers, interpolators and calibration never return errors.
// Near-singular rate constants contribute 0, unresolvable modifiers fall back
// to per-route defaults and calibration ratios are clamped to [0.1, 10].
// Only Engine.Run rejects input (no events, invalid weight).
//
// Every exported function is a pure function of its arguments, so results can
// be computed concurrently without coordination.
package sim
