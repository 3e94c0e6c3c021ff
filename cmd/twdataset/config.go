package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"twdataset/pkg/auth"
	"twdataset/pkg/config"
	"twdataset/pkg/topics"
	"twdataset/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage twdataset configuration files.

Configuration is layered, highest priority first:
  - Command line flags
  - Environment variables (TWDATASET_*)
  - .env files
  - Configuration file
  - Default values`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default values",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after all sources have been applied.

The bearer token is masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file in use",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if path := configPath(); path != "" {
			fmt.Println(path)
			return
		}
		ui.PrintWarning("No configuration file found", "defaults apply; 'twdataset config init' writes "+config.DefaultConfigPath())
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configPathCmd)
}

// configPath returns --config or the first config file found
func configPath() string {
	if configFile != "" {
		return configFile
	}
	return config.FindConfigFile()
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = config.DefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Store a bearer token with 'twdataset auth login'")
	fmt.Println("2. Check the window allocation with 'twdataset plan'")
	fmt.Println("3. Start collecting with 'twdataset run'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	display := *cfg
	if display.Twitter.BearerToken != "" {
		display.Twitter.BearerToken = auth.MaskToken(display.Twitter.BearerToken)
	}

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	if path := configPath(); path != "" {
		ui.PrintInfo("\nConfiguration file", path)
	} else {
		ui.PrintInfo("\nConfiguration file", "(none)")
	}
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if path := configPath(); path != "" {
		ui.PrintInfo("Validating configuration", path)
	}

	cfg, err := loadConfig(nil)
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	var warnings []string
	list, err := topics.Load(cfg.Topics.File)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(cfg.DatasetDir(cfg.Schedule.FirstGen)); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("cannot create dataset parent directory: %w", err)
		}
	}
	if cfg.Twitter.BearerToken == "" {
		creds, err := auth.NewManager(cfg.Twitter.KeysFile)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("credential stores unavailable: %v", err))
		} else if _, _, err := creds.BearerToken("", cfg.Twitter.KeysFileKey); err != nil {
			warnings = append(warnings, "no bearer token configured or stored")
		}
	}
	if cfg.Schedule.Window > cfg.Schedule.Interval {
		warnings = append(warnings, "window is longer than the interval; every cycle uses a single window")
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")
	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Topics: %d\n", len(list))
	fmt.Printf("  Generations: %d from %s\n", cfg.Schedule.Generations, cfg.DatasetDir(cfg.Schedule.FirstGen))
	fmt.Printf("  Refreshes: %d every %s\n", cfg.Schedule.RefreshCycles, cfg.Schedule.Interval)
	fmt.Printf("  Search endpoint: %s%s\n", cfg.Twitter.BaseURL, cfg.Twitter.SearchEndpoint)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
	return nil
}
