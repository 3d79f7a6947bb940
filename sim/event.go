package sim

import (
	"fmt"
	"strings"
)

// Route is the administration route of a dosing event.
type Route int

const (
	RouteInjection Route = iota
	RoutePatchApply
	RoutePatchRemove
	RouteGel
	RouteOral
	RouteSublingual
)

var routeNames = [...]string{
	RouteInjection:   "injection",
	RoutePatchApply:  "patchApply",
	RoutePatchRemove: "patchRemove",
	RouteGel:         "gel",
	RouteOral:        "oral",
	RouteSublingual:  "sublingual",
}

func (r Route) String() string {
	if r < 0 || int(r) >= len(routeNames) {
		return fmt.Sprintf("Route(%d)", int(r))
	}
	return routeNames[r]
}

// ParseRoute maps a wire name (case-insensitive) to a Route.
func ParseRoute(name string) (Route, error) {
	for i, n := range routeNames {
		if strings.EqualFold(n, name) {
			return Route(i), nil
		}
	}
	return 0, fmt.Errorf("unknown route %q; valid: %s", name, strings.Join(routeNames[:], ", "))
}

func (r Route) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Route) UnmarshalText(text []byte) error {
	parsed, err := ParseRoute(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Ester identifies the compound administered. E2 is unesterified estradiol;
// CPA is cyproterone acetate, tracked in its own pool.
type Ester int

const (
	EsterE2 Ester = iota
	EsterEB
	EsterEV
	EsterEC
	EsterEN
	EsterCPA
)

var esterNames = [...]string{
	EsterE2:  "E2",
	EsterEB:  "EB",
	EsterEV:  "EV",
	EsterEC:  "EC",
	EsterEN:  "EN",
	EsterCPA: "CPA",
}

func (e Ester) String() string {
	if e < 0 || int(e) >= len(esterNames) {
		return fmt.Sprintf("Ester(%d)", int(e))
	}
	return esterNames[e]
}

// ParseEster maps a wire name (case-insensitive) to an Ester.
func ParseEster(name string) (Ester, error) {
	for i, n := range esterNames {
		if strings.EqualFold(n, name) {
			return Ester(i), nil
		}
	}
	return 0, fmt.Errorf("unknown ester %q; valid: %s", name, strings.Join(esterNames[:], ", "))
}

func (e Ester) MarshalText() ([]byte, error) { return []byte(e.String()), nil }

func (e *Ester) UnmarshalText(text []byte) error {
	parsed, err := ParseEster(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// IsCPA reports whether the ester is accumulated in the CPA pool rather than the E2 pool.
func (e Ester) IsCPA() bool { return e == EsterCPA }

// DoseEvent is one administration. DoseMG is compound mass, not E2-equivalent.
// Events are treated as immutable once handed to the engine.
type DoseEvent struct {
	ID     string
	Route  Route
	TimeH  float64 // hours since epoch
	DoseMG float64
	Ester  Ester
	Extras Extras // may be nil
}

// ConcentrationUnit is the unit a lab value was reported in.
type ConcentrationUnit int

const (
	UnitPgML ConcentrationUnit = iota
	UnitPmolL
)

// pmolPerPg converts E2 pmol/L to pg/mL (divide by this).
const pmolPerPg = 3.671

func (u ConcentrationUnit) String() string {
	switch u {
	case UnitPgML:
		return "pg/ml"
	case UnitPmolL:
		return "pmol/l"
	}
	return fmt.Sprintf("ConcentrationUnit(%d)", int(u))
}

// ParseUnit accepts "pg/ml" or "pmol/l" in any case.
func ParseUnit(name string) (ConcentrationUnit, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "pg/ml":
		return UnitPgML, nil
	case "pmol/l":
		return UnitPmolL, nil
	}
	return 0, fmt.Errorf("unknown concentration unit %q; valid: pg/ml, pmol/l", name)
}

// LabResult is a measured E2 concentration from a blood draw.
type LabResult struct {
	ID        string
	TimeH     float64
	ConcValue float64
	Unit      ConcentrationUnit
}

// PgML returns the lab value converted to pg/mL.
func (l LabResult) PgML() float64 {
	if l.Unit == UnitPmolL {
		return l.ConcValue / pmolPerPg
	}
	return l.ConcValue
}
