package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"twdataset/pkg/config"
	"twdataset/pkg/logger"
	"twdataset/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile  string
	logLevel    string
	metricsAddr string
	noColor     bool
	quiet       bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "twdataset",
	Short: "Collect per-topic X (Twitter) datasets with engagement snapshots",
	Long: `twdataset builds datasets of recent posts for a set of topics.

Each generation fetches posts for every topic into its own directory, then
refreshes their engagement counters at a fixed interval, appending one
snapshot file per refresh. Search quota is spread over 15 minute windows.

Output per topic:
  tweets.csv      posts with author metadata
  media.csv       media attached to the posts
  <timestamp>.csv engagement snapshots
  manifest.json   run and enrichment summary`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			ui.DisableColor()
		}
		if quiet || logLevel == "error" {
			ui.SetQuietMode(true)
		}
		if cmd.Name() == "run" {
			ui.PrintLogo()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is $HOME/.config/twdataset/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")

	rootCmd.SetVersionTemplate(`twdataset {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig loads the configuration with the global flags layered on top
// of flags, then initializes the global logger from it.
func loadConfig(flags map[string]interface{}) (*config.Config, error) {
	if flags == nil {
		flags = make(map[string]interface{})
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if metricsAddr != "" {
		flags["metrics-addr"] = metricsAddr
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}
