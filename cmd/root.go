package cmd

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// envPrefix is the prefix of environment variables that stand in for flags,
// e.g. HRTSIM_WEIGHT for --weight.
const envPrefix = "HRTSIM"

var logLevel string // Log verbosity level

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "hrt-sim",
	Short: "Pharmacokinetic simulator for estradiol and cyproterone acetate schedules",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		v := newViper(cmd.Flags())
		level, err := logrus.ParseLevel(v.GetString("log"))
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", v.GetString("log"))
		}
		logrus.SetLevel(level)
	},
}

// newViper binds a command's flags and their HRTSIM_* environment variables.
// An explicitly set flag wins over the environment, which wins over the flag default.
func newViper(flags *pflag.FlagSet) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		logrus.Fatalf("binding flags: %v", err)
	}
	return v
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
}
