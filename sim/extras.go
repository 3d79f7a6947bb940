package sim

import (
	"math"
	"strconv"
)

// Extras carries route-specific modifiers of a DoseEvent. Exactly one concrete
// type applies per route; an Extras value of the wrong type for a route is ignored.
type Extras interface {
	isExtras()
}

// InjectionExtras records the vial concentration. It is informational only.
type InjectionExtras struct {
	ConcentrationMGmL float64
}

// PatchExtras configures a transdermal patch. A positive ReleaseRateUGPerDay
// selects zero-order release.
type PatchExtras struct {
	AreaCM2             float64
	ReleaseRateUGPerDay float64
}

// GelExtras selects the application site.
type GelExtras struct {
	Site GelSite
}

// SublingualExtras selects the fast-pathway fraction. Theta, when set, wins over Tier.
type SublingualExtras struct {
	Theta *float64
	Tier  *SublingualTier
}

func (InjectionExtras) isExtras()  {}
func (PatchExtras) isExtras()      {}
func (GelExtras) isExtras()        {}
func (SublingualExtras) isExtras() {}

// GelSite is an index into the fixed application site list.
type GelSite int

const (
	GelSiteArm GelSite = iota
	GelSiteThigh
	GelSiteScrotal
)

// gelSites is the explicit site order that wire indices refer to.
var gelSites = [...]struct {
	name            string
	bioavailability float64
}{
	GelSiteArm:     {"arm", 0.05},
	GelSiteThigh:   {"thigh", 0.05},
	GelSiteScrotal: {"scrotal", 0.40},
}

func (s GelSite) valid() bool { return s >= 0 && int(s) < len(gelSites) }

func (s GelSite) String() string {
	if !s.valid() {
		return "GelSite(" + strconv.Itoa(int(s)) + ")"
	}
	return gelSites[s].name
}

// SublingualTier is a preset hold discipline for sublingual tablets.
type SublingualTier int

const (
	TierQuick SublingualTier = iota
	TierCasual
	TierStandard
	TierStrict
)

// TierPreset describes a sublingual tier: the fast-pathway fraction and the
// suggested hold time in minutes.
type TierPreset struct {
	Name    string
	Theta   float64
	HoldMin float64
}

var tierPresets = [...]TierPreset{
	TierQuick:    {Name: "quick", Theta: 0.01, HoldMin: 2},
	TierCasual:   {Name: "casual", Theta: 0.04, HoldMin: 5},
	TierStandard: {Name: "standard", Theta: 0.11, HoldMin: 10},
	TierStrict:   {Name: "strict", Theta: 0.18, HoldMin: 15},
}

// DefaultSublingualTier applies when neither theta nor a valid tier is given.
const DefaultSublingualTier = TierStandard

// Preset returns the tier's preset, or the default tier's preset when t is out of range.
func (t SublingualTier) Preset() TierPreset {
	if t < 0 || int(t) >= len(tierPresets) {
		return tierPresets[DefaultSublingualTier]
	}
	return tierPresets[t]
}

func (t SublingualTier) String() string { return t.Preset().Name }

// TierPresets lists all sublingual tiers in index order.
func TierPresets() []TierPreset {
	out := make([]TierPreset, len(tierPresets))
	copy(out, tierPresets[:])
	return out
}

// Wire keys of the sparse extras bag.
const (
	ExtraConcentrationMGmL   = "concentrationMGmL"
	ExtraAreaCM2             = "areaCM2"
	ExtraReleaseRateUGPerDay = "releaseRateUGPerDay"
	ExtraSublingualTheta     = "sublingualTheta"
	ExtraSublingualTier      = "sublingualTier"
	ExtraGelSite             = "gelSite"
)

// ParseExtras converts the sparse wire bag into the tagged union for route.
// Values that are missing, of the wrong type, or non-finite are dropped; the
// resolver then falls back to its per-route defaults. Returns nil for routes
// without modifiers or when nothing usable was found.
func ParseExtras(route Route, raw map[string]any) Extras {
	if len(raw) == 0 {
		return nil
	}
	switch route {
	case RouteInjection:
		if v, ok := finiteNumber(raw[ExtraConcentrationMGmL]); ok {
			return InjectionExtras{ConcentrationMGmL: v}
		}
	case RoutePatchApply:
		area, hasArea := finiteNumber(raw[ExtraAreaCM2])
		rate, hasRate := finiteNumber(raw[ExtraReleaseRateUGPerDay])
		if hasArea || hasRate {
			return PatchExtras{AreaCM2: area, ReleaseRateUGPerDay: rate}
		}
	case RouteGel:
		if v, ok := finiteNumber(raw[ExtraGelSite]); ok {
			return GelExtras{Site: GelSite(int(v))}
		}
	case RouteSublingual:
		var ex SublingualExtras
		if v, ok := finiteNumber(raw[ExtraSublingualTheta]); ok {
			ex.Theta = &v
		}
		if v, ok := finiteNumber(raw[ExtraSublingualTier]); ok {
			tier := SublingualTier(int(v))
			ex.Tier = &tier
		}
		if ex.Theta != nil || ex.Tier != nil {
			return ex
		}
	}
	return nil
}

func finiteNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint64:
		f = float64(n)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// sublingualTheta resolves the fast-pathway fraction for a sublingual dose.
func sublingualTheta(ex Extras) float64 {
	sl, ok := ex.(SublingualExtras)
	if !ok {
		return DefaultSublingualTier.Preset().Theta
	}
	if sl.Theta != nil && !math.IsNaN(*sl.Theta) {
		return math.Min(1, math.Max(0, *sl.Theta))
	}
	if sl.Tier != nil {
		return sl.Tier.Preset().Theta
	}
	return DefaultSublingualTier.Preset().Theta
}

func gelSiteBioavailability(ex Extras) float64 {
	if g, ok := ex.(GelExtras); ok && g.Site.valid() {
		return gelSites[g.Site].bioavailability
	}
	return gelSites[GelSiteArm].bioavailability
}

func patchReleaseRate(ex Extras) float64 {
	if p, ok := ex.(PatchExtras); ok && p.ReleaseRateUGPerDay > 0 && !math.IsInf(p.ReleaseRateUGPerDay, 0) {
		return p.ReleaseRateUGPerDay
	}
	return 0
}
