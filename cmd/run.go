package cmd

import (
	"encoding/csv"
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
	"github.com/hrt-sim/hrt-sim/sim/report"
	"github.com/hrt-sim/hrt-sim/sim/schedule"
)

// runOptions collects the resolved inputs of `hrt-sim run`.
type runOptions struct {
	input          string
	password       string
	configPath     string
	configRequired bool      // --config was given explicitly
	weightKG       float64   // 0 = take it from the schedule or defaults.yaml
	seriesOut      string    // CSV path, empty = none
	at             []float64 // hours to report point concentrations at
	fromH, toH     float64   // summary window, empty = whole curve
	calibrated     bool      // scale E2 by the lab calibration ratio
}

// runCmd simulates a schedule file and prints a curve summary
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Simulate a dose schedule",
	Run: func(cmd *cobra.Command, args []string) {
		opts, err := runOptionsFromFlags(cmd.Flags())
		if err != nil {
			logrus.Fatalf("Invalid flags: %v", err)
		}
		if opts.input == "" {
			logrus.Fatalf("Schedule file not provided (--input or %s_INPUT)", envPrefix)
		}
		if err := runSimulation(opts, os.Stdout); err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
	},
}

// runOptionsFromFlags resolves the run flags through viper so that every flag
// can also be given as an HRTSIM_* environment variable.
func runOptionsFromFlags(flags *pflag.FlagSet) (runOptions, error) {
	v := newViper(flags)
	at, err := flags.GetFloat64Slice("at")
	if !flags.Changed("at") {
		// The env value, or the flag default printed as "[]".
		at, err = parseHours(v.GetString("at"))
	}
	if err != nil {
		return runOptions{}, fmt.Errorf("--at: %w", err)
	}
	return runOptions{
		input:          v.GetString("input"),
		password:       v.GetString("password"),
		configPath:     v.GetString("config"),
		configRequired: flags.Changed("config"),
		weightKG:       v.GetFloat64("weight"),
		seriesOut:      v.GetString("series-out"),
		at:             at,
		fromH:          v.GetFloat64("from"),
		toH:            v.GetFloat64("to"),
		calibrated:     v.GetBool("calibrated"),
	}, nil
}

// parseHours reads a comma-separated hour list such as "12,24". Surrounding
// brackets are ignored.
func parseHours(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	var hours []float64
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		h, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid hour %q", field)
		}
		hours = append(hours, h)
	}
	return hours, nil
}

// simulation is a loaded schedule together with its simulated curve.
type simulation struct {
	sched    *schedule.Schedule
	result   *sim.SimulationResult
	weightKG float64
}

// simulateSchedule loads the schedule and defaults and runs the engine.
func simulateSchedule(opts runOptions) (*simulation, error) {
	cfg, err := loadDefaultsConfig(opts.configPath, opts.configRequired)
	if err != nil {
		return nil, err
	}
	sched, err := schedule.Load(opts.input, opts.password)
	if err != nil {
		return nil, err
	}
	weight := resolveWeight(opts.weightKG, sched.WeightKG, cfg.DefaultWeightKG)

	engine, err := sim.NewEngine(cfg.Engine)
	if err != nil {
		return nil, err
	}
	logrus.Infof("Simulating %d events for %.1f kg (%d grid samples)", len(sched.Events), weight, cfg.Engine.Samples)
	res, err := engine.Run(sched.Events, weight)
	if err != nil {
		return nil, err
	}
	return &simulation{sched: sched, result: res, weightKG: weight}, nil
}

// resolveWeight picks the flag value, then the schedule's weight, then the configured default.
func resolveWeight(flagKG, scheduleKG, defaultKG float64) float64 {
	switch {
	case flagKG > 0:
		return flagKG
	case scheduleKG > 0:
		return scheduleKG
	}
	return defaultKG
}

func runSimulation(opts runOptions, out io.Writer) error {
	run, err := simulateSchedule(opts)
	if err != nil {
		return err
	}
	sched, res := run.sched, run.result

	var calibratedE2 []float64
	ratio := sim.CalibrationFunc(func(float64) float64 { return 1 })
	if opts.calibrated {
		if len(sched.Labs) == 0 {
			logrus.Warn("--calibrated given but the schedule has no lab results")
		}
		ratio = sim.CreateCalibrationInterpolator(res, sched.Labs)
		calibratedE2 = sim.ApplyCalibration(res, ratio)
	}

	summary := report.Summarize(res, opts.fromH, opts.toH)
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling summary: %w", err)
	}
	fmt.Fprintln(out, "=== Simulation Summary ===")
	fmt.Fprintln(out, string(data))

	if len(opts.at) > 0 {
		fmt.Fprintln(out, "=== Concentrations ===")
		for _, h := range opts.at {
			e2, _ := sim.InterpolateConcentrationE2(res, h)
			cpa, _ := sim.InterpolateConcentrationCPA(res, h)
			line := fmt.Sprintf("t=%.2fh  E2=%.2f pg/mL  CPA=%.3f ng/mL", h, e2, cpa)
			if opts.calibrated {
				line += fmt.Sprintf("  E2(calibrated)=%.2f pg/mL", e2*ratio(h))
			}
			fmt.Fprintln(out, line)
		}
	}

	if opts.seriesOut != "" {
		f, err := os.Create(opts.seriesOut)
		if err != nil {
			return fmt.Errorf("creating series file: %w", err)
		}
		defer f.Close()
		if err := writeSeriesCSV(f, res, calibratedE2); err != nil {
			return err
		}
		logrus.Infof("Wrote %d samples to %s", len(res.TimeH), opts.seriesOut)
	}
	return nil
}

// writeSeriesCSV writes one row per grid point. The calibrated column is only
// present when calibrated is non-nil.
func writeSeriesCSV(w io.Writer, res *sim.SimulationResult, calibrated []float64) error {
	cw := csv.NewWriter(w)
	header := []string{"time_h", "e2_pg_ml", "cpa_ng_ml", "combined_pg_ml"}
	if calibrated != nil {
		header = append(header, "e2_calibrated_pg_ml")
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing series header: %w", err)
	}
	for i, t := range res.TimeH {
		row := []string{
			formatFloat(t),
			formatFloat(res.ConcPGmLE2[i]),
			formatFloat(res.ConcNGmLCPA[i]),
			formatFloat(res.ConcPGmL[i]),
		}
		if calibrated != nil {
			row = append(row, formatFloat(calibrated[i]))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing series row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// addRunFlags registers the flags shared by run and its tests.
func addRunFlags(fs *pflag.FlagSet) {
	fs.String("input", "", "Schedule file (.json export or .yaml)")
	fs.String("password", "", "Password for encrypted exports")
	fs.String("config", "defaults.yaml", "Path to defaults.yaml")
	fs.Float64("weight", 0, "Body weight in kg (overrides the schedule file)")
	fs.String("series-out", "", "Write the full concentration series to this CSV file")
	fs.Float64Slice("at", nil, "Comma-separated hours to report concentrations at")
	fs.Float64("from", 0, "Start hour of the summary window")
	fs.Float64("to", 0, "End hour of the summary window (<= from means whole curve)")
	fs.Bool("calibrated", false, "Scale E2 by the lab calibration ratio")
}

func init() {
	addRunFlags(runCmd.Flags())
	rootCmd.AddCommand(runCmd)
}
