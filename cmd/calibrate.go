package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hrt-sim/hrt-sim/sim"
	"github.com/hrt-sim/hrt-sim/sim/report"
)

// calibrationOutput is the JSON document printed by `hrt-sim calibrate`.
type calibrationOutput struct {
	WeightKG float64           `json:"weight_kg"`
	Fit      *report.FitReport `json:"fit,omitempty"`
	Ratios   []ratioAt         `json:"ratios"`
}

// ratioAt is the calibration ratio evaluated at one lab draw.
type ratioAt struct {
	LabID string  `json:"lab_id"`
	TimeH float64 `json:"time_h"`
	Ratio float64 `json:"ratio"`
}

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Compare lab results with the simulated E2 curve",
	Run: func(cmd *cobra.Command, args []string) {
		v := newViper(cmd.Flags())
		opts := runOptions{
			input:          v.GetString("input"),
			password:       v.GetString("password"),
			configPath:     v.GetString("config"),
			configRequired: cmd.Flags().Changed("config"),
			weightKG:       v.GetFloat64("weight"),
		}
		if opts.input == "" {
			logrus.Fatalf("Schedule file not provided (--input or %s_INPUT)", envPrefix)
		}
		if err := runCalibration(opts, os.Stdout); err != nil {
			logrus.Fatalf("Calibration failed: %v", err)
		}
	},
}

func runCalibration(opts runOptions, out io.Writer) error {
	run, err := simulateSchedule(opts)
	if err != nil {
		return err
	}
	sched, res := run.sched, run.result
	output := calibrationOutput{WeightKG: run.weightKG, Ratios: []ratioAt{}}

	fit, err := report.CompareLabs(res, sched.Labs)
	switch {
	case errors.Is(err, report.ErrNoUsableLabs):
		logrus.Warnf("None of the %d lab results can be compared with the curve; ratio stays 1", len(sched.Labs))
	case err != nil:
		return err
	default:
		output.Fit = fit
	}

	ratio := sim.CreateCalibrationInterpolator(res, sched.Labs)
	for _, lab := range sched.Labs {
		output.Ratios = append(output.Ratios, ratioAt{LabID: lab.ID, TimeH: lab.TimeH, Ratio: ratio(lab.TimeH)})
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling calibration report: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}

func init() {
	calibrateCmd.Flags().String("input", "", "Schedule file with lab results (.json export or .yaml)")
	calibrateCmd.Flags().String("password", "", "Password for encrypted exports")
	calibrateCmd.Flags().String("config", "defaults.yaml", "Path to defaults.yaml")
	calibrateCmd.Flags().Float64("weight", 0, "Body weight in kg (overrides the schedule file)")

	rootCmd.AddCommand(calibrateCmd)
}
