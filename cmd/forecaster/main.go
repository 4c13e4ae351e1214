// Package main implements the forecaster CLI: interactive forecasts, feature
// predictors, news sentiment and small probability demos.
package main

import (
	"fmt"
	"os"

	"github.com/ZanzyTHEbar/belief-engine/internal/app"
	"github.com/ZanzyTHEbar/belief-engine/internal/config"
	"github.com/ZanzyTHEbar/belief-engine/internal/monitoring"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	jsonOutput bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "forecaster",
	Short: "Bayesian forecasts, predictors and news sentiment",
	Long: `forecaster keeps probability distributions over scenarios and updates
them with evidence using Bayes' rule.

It also trains binary feature predictors, fetches and analyzes news, and
runs a few small probability demos.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")

	rootCmd.AddCommand(interactiveCmd, weatherCmd)
	rootCmd.AddCommand(trainCmd, predictCmd, importanceCmd)
	rootCmd.AddCommand(newsCmd)
	rootCmd.AddCommand(coinflipCmd, statsCmd)
	rootCmd.AddCommand(tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

// openApp builds the application from the loaded config. Logs go to stderr
// so they never mix with command output.
func openApp() (*app.App, error) {
	level := cfg.Logging.Level
	if verbose {
		level = "DEBUG"
	} else if level == "INFO" {
		level = "WARN"
	}
	return app.New(cfg, monitoring.NewLoggerTo(os.Stderr, level, "text"))
}
