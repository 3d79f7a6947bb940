package sim

import (
	"github.com/sirupsen/logrus"
)

// Elimination and absorption rate constants, all per hour.
const (
	kClearE2        = 0.41  // E2 plasma clearance
	kClearInjection = 0.041 // terminal constant of the injected depot chain
	kAbsSublingual  = 1.8   // mucosal fast pathway
	kAbsOralE2      = 0.32
	kAbsOralEV      = 0.05
	kAbsGel         = 0.022
	kAbsPatch       = 0.0075 // first-order patch release when no rate is given

	oralBioavailability  = 0.03
	patchBioavailability = 1.0

	// CPA is modelled orally on its own constants and never scaled by molecular weight.
	cpaBioavailability = 0.7
	cpaKAbs            = 1.0
	cpaKClear          = 0.017

	// Fallbacks for esters without a depot entry (E2, CPA).
	defaultFracFast  = 0.5
	defaultK1Fast    = 0.1
	defaultK1Slow    = 0.01
	defaultK2        = 0.05
	defaultFormation = 0.08
)

type esterInfo struct {
	Name string
	MW   float64 // g/mol
}

var esters = [...]esterInfo{
	EsterE2:  {"Estradiol", 272.38},
	EsterEB:  {"Estradiol Benzoate", 376.50},
	EsterEV:  {"Estradiol Valerate", 356.50},
	EsterEC:  {"Estradiol Cypionate", 396.58},
	EsterEN:  {"Estradiol Enanthate", 384.56},
	EsterCPA: {"Cyproterone Acetate", 416.94},
}

// EsterName returns the display name of an ester.
func EsterName(e Ester) string {
	if e < 0 || int(e) >= len(esters) {
		return e.String()
	}
	return esters[e].Name
}

// MolecularWeight returns the ester's molecular weight in g/mol, or E2's for unknown values.
func MolecularWeight(e Ester) float64 {
	if e < 0 || int(e) >= len(esters) {
		return esters[EsterE2].MW
	}
	return esters[e].MW
}

// ToE2Factor is the mass of E2 delivered per unit mass of ester, MW(E2)/MW(ester).
// CPA is not an estradiol pro-drug and returns 1.
func ToE2Factor(e Ester) float64 {
	if e == EsterCPA {
		return 1
	}
	return esters[EsterE2].MW / MolecularWeight(e)
}

// depotParams describes the two-part injected depot for one ester.
type depotParams struct {
	FracFast  float64
	K1Fast    float64
	K1Slow    float64
	K2        float64 // ester hydrolysis
	Formation float64 // fraction of ester converted to circulating E2
}

func depotFor(e Ester) depotParams {
	switch e {
	case EsterEB:
		return depotParams{FracFast: 0.90, K1Fast: 0.144, K1Slow: 0.114, K2: 0.090, Formation: 0.1092}
	case EsterEV:
		return depotParams{FracFast: 0.40, K1Fast: 0.0216, K1Slow: 0.0138, K2: 0.070, Formation: 0.0623}
	case EsterEC:
		return depotParams{FracFast: 0.229164549, K1Fast: 0.005035046, K1Slow: 0.004510574, K2: 0.045, Formation: 0.1173}
	case EsterEN:
		return depotParams{FracFast: 0.05, K1Fast: 0.0010, K1Slow: 0.0050, K2: 0.015, Formation: 0.12}
	case EsterE2, EsterCPA:
		return depotParams{FracFast: defaultFracFast, K1Fast: defaultK1Fast, K1Slow: defaultK1Slow, K2: defaultK2, Formation: defaultFormation}
	}
	logrus.Debugf("no depot parameters for %v; using defaults", e)
	return depotParams{FracFast: defaultFracFast, K1Fast: defaultK1Fast, K1Slow: defaultK1Slow, K2: defaultK2, Formation: defaultFormation}
}

// oralKAbs is the gut absorption constant for a swallowed ester.
func oralKAbs(e Ester) float64 {
	if e == EsterEV {
		return kAbsOralEV
	}
	return kAbsOralE2
}

// sublingualK2 is the hydrolysis constant used by sublingual kinetics. Only EV
// carries a hydrolysis step there; everything else is absorbed as free E2.
func sublingualK2(e Ester) float64 {
	if e == EsterEV {
		return depotFor(EsterEV).K2
	}
	return 0
}

// PKParams are the rate constants and bioavailabilities of one event.
// Rates are per hour. K3 is the elimination constant of the measured analyte.
type PKParams struct {
	FracFast float64
	K1Fast   float64
	K1Slow   float64
	K2       float64
	K3       float64
	F        float64 // effective bioavailability, E2-equivalent where applicable
	FFast    float64
	FSlow    float64
	RateMGh  float64 // zero-order input rate; 0 unless a patch release rate is set
}

// BioavailabilityMultiplier returns the fraction of a dose that reaches the
// measured pool, including the molecular-weight conversion for E2 esters.
// ResolveParams embeds exactly this value as PKParams.F.
func BioavailabilityMultiplier(route Route, ester Ester, extras Extras) float64 {
	if ester == EsterCPA && route == RouteOral {
		return cpaBioavailability
	}
	toE2 := ToE2Factor(ester)
	switch route {
	case RouteInjection:
		return depotFor(ester).Formation * toE2
	case RouteSublingual:
		theta := sublingualTheta(extras)
		return (theta + (1-theta)*oralBioavailability) * toE2
	case RouteGel:
		return gelSiteBioavailability(extras) * toE2
	case RoutePatchApply:
		return patchBioavailability * toE2
	case RoutePatchRemove:
		return 0
	case RouteOral:
		return oralBioavailability * toE2
	}
	logrus.Debugf("no bioavailability for route %v; using oral", route)
	return oralBioavailability * toE2
}

// ResolveParams maps an event to its PK parameters. It never fails: values
// that cannot be resolved fall back to non-zero defaults.
func ResolveParams(ev DoseEvent) PKParams {
	F := BioavailabilityMultiplier(ev.Route, ev.Ester, ev.Extras)
	switch ev.Route {
	case RouteInjection:
		d := depotFor(ev.Ester)
		return PKParams{
			FracFast: d.FracFast, K1Fast: d.K1Fast, K1Slow: d.K1Slow,
			K2: d.K2, K3: kClearInjection,
			F: F, FFast: F, FSlow: F,
		}
	case RouteSublingual:
		toE2 := ToE2Factor(ev.Ester)
		return PKParams{
			FracFast: sublingualTheta(ev.Extras),
			K1Fast:   kAbsSublingual,
			K1Slow:   oralKAbs(ev.Ester),
			K2:       sublingualK2(ev.Ester),
			K3:       kClearE2,
			F:        F,
			FFast:    toE2,
			FSlow:    oralBioavailability * toE2,
		}
	case RouteGel:
		return PKParams{FracFast: 1, K1Fast: kAbsGel, K3: kClearE2, F: F, FFast: F}
	case RoutePatchApply:
		if rate := patchReleaseRate(ev.Extras); rate > 0 {
			return PKParams{K3: kClearE2, F: F, RateMGh: rate / 24000 * F}
		}
		return PKParams{FracFast: 1, K1Fast: kAbsPatch, K3: kClearE2, F: F, FFast: F}
	case RoutePatchRemove:
		return PKParams{}
	case RouteOral:
		if ev.Ester == EsterCPA {
			return PKParams{FracFast: 1, K1Fast: cpaKAbs, K3: cpaKClear, F: F, FFast: F}
		}
		return PKParams{FracFast: 1, K1Fast: oralKAbs(ev.Ester), K3: kClearE2, F: F, FFast: F}
	}
	return PKParams{FracFast: 1, K1Fast: kAbsOralE2, K3: kClearE2, F: F, FFast: F}
}
