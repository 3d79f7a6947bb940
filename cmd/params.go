package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/hrt-sim/hrt-sim/sim"
)

// paramsOptions describes one hypothetical dose for `hrt-sim params`.
type paramsOptions struct {
	route       string
	ester       string
	theta       *float64 // nil unless --theta was given
	tier        string
	releaseRate float64
	gelSite     string
}

// paramsOutput is the JSON document printed by `hrt-sim params`.
type paramsOutput struct {
	Route           sim.Route    `json:"route"`
	Ester           sim.Ester    `json:"ester"`
	EsterName       string       `json:"ester_name"`
	MolecularWeight float64      `json:"molecular_weight"`
	ToE2Factor      float64      `json:"to_e2_factor"`
	Params          sim.PKParams `json:"params"`
}

var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "Print the resolved PK parameters for a route and ester",
	Run: func(cmd *cobra.Command, args []string) {
		opts, err := paramsOptionsFromFlags(cmd.Flags())
		if err != nil {
			logrus.Fatalf("Invalid flags: %v", err)
		}
		if err := printParams(opts, os.Stdout); err != nil {
			logrus.Fatalf("Resolving parameters failed: %v", err)
		}
	},
}

// paramsOptionsFromFlags resolves the params flags through viper. Theta is only
// set when given as a flag or as HRTSIM_THETA.
func paramsOptionsFromFlags(flags *pflag.FlagSet) (paramsOptions, error) {
	v := newViper(flags)
	opts := paramsOptions{
		route:       v.GetString("route"),
		ester:       v.GetString("ester"),
		tier:        v.GetString("tier"),
		releaseRate: v.GetFloat64("release-rate"),
		gelSite:     v.GetString("gel-site"),
	}
	if opts.route == "" {
		return opts, fmt.Errorf("route not provided (--route or %s_ROUTE)", envPrefix)
	}
	if v.IsSet("theta") {
		theta, err := strconv.ParseFloat(strings.TrimSpace(v.GetString("theta")), 64)
		if err != nil {
			return opts, fmt.Errorf("invalid theta %q", v.GetString("theta"))
		}
		opts.theta = &theta
	}
	return opts, nil
}

func printParams(opts paramsOptions, out io.Writer) error {
	ev, err := paramsEvent(opts)
	if err != nil {
		return err
	}
	output := paramsOutput{
		Route:           ev.Route,
		Ester:           ev.Ester,
		EsterName:       sim.EsterName(ev.Ester),
		MolecularWeight: sim.MolecularWeight(ev.Ester),
		ToE2Factor:      sim.ToE2Factor(ev.Ester),
		Params:          sim.ResolveParams(ev),
	}
	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling parameters: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}

// paramsEvent builds a 1 mg event at t=0 carrying the extras the flags describe.
// Flags that do not apply to the route are ignored.
func paramsEvent(opts paramsOptions) (sim.DoseEvent, error) {
	route, err := sim.ParseRoute(opts.route)
	if err != nil {
		return sim.DoseEvent{}, err
	}
	ester, err := sim.ParseEster(opts.ester)
	if err != nil {
		return sim.DoseEvent{}, err
	}
	ev := sim.DoseEvent{Route: route, Ester: ester, DoseMG: 1}

	switch route {
	case sim.RouteSublingual:
		ex := sim.SublingualExtras{Theta: opts.theta}
		if opts.tier != "" {
			tier, err := parseTier(opts.tier)
			if err != nil {
				return ev, err
			}
			ex.Tier = &tier
		}
		if ex.Theta != nil || ex.Tier != nil {
			ev.Extras = ex
		}
	case sim.RouteGel:
		if opts.gelSite != "" {
			site, err := parseGelSite(opts.gelSite)
			if err != nil {
				return ev, err
			}
			ev.Extras = sim.GelExtras{Site: site}
		}
	case sim.RoutePatchApply:
		if opts.releaseRate > 0 {
			ev.Extras = sim.PatchExtras{ReleaseRateUGPerDay: opts.releaseRate}
		}
	}
	return ev, nil
}

// parseTier accepts a tier name (quick, casual, standard, strict) or its index.
func parseTier(s string) (sim.SublingualTier, error) {
	for i, p := range sim.TierPresets() {
		if strings.EqualFold(s, p.Name) {
			return sim.SublingualTier(i), nil
		}
	}
	if i, err := strconv.Atoi(s); err == nil && i >= 0 && i < len(sim.TierPresets()) {
		return sim.SublingualTier(i), nil
	}
	return 0, fmt.Errorf("unknown sublingual tier %q", s)
}

// parseGelSite accepts a site name (arm, thigh, scrotal) or its index.
func parseGelSite(s string) (sim.GelSite, error) {
	for site := sim.GelSiteArm; site <= sim.GelSiteScrotal; site++ {
		if strings.EqualFold(s, site.String()) || s == strconv.Itoa(int(site)) {
			return site, nil
		}
	}
	return 0, fmt.Errorf("unknown gel site %q", s)
}

// addParamsFlags registers the flags of the params command.
func addParamsFlags(fs *pflag.FlagSet) {
	fs.String("route", "", "Route (injection, patchApply, patchRemove, gel, oral, sublingual)")
	fs.String("ester", "E2", "Ester (E2, EB, EV, EC, EN, CPA)")
	fs.Float64("theta", 0, "Sublingual fast-pathway fraction in [0,1]")
	fs.String("tier", "", "Sublingual tier (quick, casual, standard, strict)")
	fs.Float64("release-rate", 0, "Patch release rate in µg/day (0 = first-order patch)")
	fs.String("gel-site", "", "Gel application site (arm, thigh, scrotal)")
}

func init() {
	addParamsFlags(paramsCmd.Flags())
	rootCmd.AddCommand(paramsCmd)
}
