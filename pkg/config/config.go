package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the dataset collector
type Config struct {
	// API access
	Twitter TwitterConfig `yaml:"twitter" json:"twitter"`

	// Topic source
	Topics TopicsConfig `yaml:"topics" json:"topics"`

	// Window budget and generation loop
	Schedule ScheduleConfig `yaml:"schedule" json:"schedule"`

	// Search pagination
	Fetch FetchConfig `yaml:"fetch" json:"fetch"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Client-side request pacing
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Prometheus endpoint
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// TwitterConfig holds API endpoint and credential settings
type TwitterConfig struct {
	BearerToken    string        `yaml:"bearer_token" json:"bearer_token"`
	BaseURL        string        `yaml:"base_url" json:"base_url"`
	SearchEndpoint string        `yaml:"search_endpoint" json:"search_endpoint"`
	KeysFile       string        `yaml:"keys_file" json:"keys_file"`
	KeysFileKey    string        `yaml:"keys_file_key" json:"keys_file_key"`
	Timeout        time.Duration `yaml:"timeout" json:"timeout"`
	// MaxAttempts per request; network and server errors are retried
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`
}

// TopicsConfig points at an optional JSON label -> query file
type TopicsConfig struct {
	File string `yaml:"file" json:"file"`
}

// ScheduleConfig holds the window arithmetic inputs and the run loop shape
type ScheduleConfig struct {
	Interval      time.Duration `yaml:"interval" json:"interval"`
	Window        time.Duration `yaml:"window" json:"window"`
	WindowQuota   int           `yaml:"window_quota" json:"window_quota"`
	Threads       int           `yaml:"threads" json:"threads"`
	Generations   int           `yaml:"generations" json:"generations"`
	FirstGen      int           `yaml:"first_generation" json:"first_generation"`
	RefreshCycles int           `yaml:"refresh_cycles" json:"refresh_cycles"`
}

// FetchConfig holds search pagination settings
type FetchConfig struct {
	ResultsPerCall int           `yaml:"results_per_call" json:"results_per_call"`
	QuerySuffix    string        `yaml:"query_suffix" json:"query_suffix"`
	EndTimeOffset  time.Duration `yaml:"end_time_offset" json:"end_time_offset"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	// DatasetPattern is formatted with the generation number, e.g. ./dataset%d
	DatasetPattern string `yaml:"dataset_pattern" json:"dataset_pattern"`
	WriteManifest  bool   `yaml:"write_manifest" json:"write_manifest"`
}

// RateLimitConfig holds client-side request pacing. Requests are spread evenly
// over Window; zero RequestsPerWindow disables pacing.
type RateLimitConfig struct {
	RequestsPerWindow int           `yaml:"requests_per_window" json:"requests_per_window"`
	Window            time.Duration `yaml:"window" json:"window"`
	BurstSize         int           `yaml:"burst_size" json:"burst_size"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// MetricsConfig holds the prometheus listener address (empty disables it)
type MetricsConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// DefaultConfig returns a Config instance with the collector's stock schedule:
// nine generations of one-hour intervals refreshed 24 times each.
func DefaultConfig() *Config {
	return &Config{
		Twitter: TwitterConfig{
			BaseURL:        "https://api.twitter.com",
			SearchEndpoint: "/2/tweets/search/recent",
			KeysFile:       ".twitter_keys.yaml",
			KeysFileKey:    "search_tweets_v2",
			Timeout:        30 * time.Second,
			MaxAttempts:    1,
		},
		Schedule: ScheduleConfig{
			Interval:      time.Hour,
			Window:        15 * time.Minute,
			WindowQuota:   200 * 100,
			Threads:       2,
			Generations:   9,
			FirstGen:      1,
			RefreshCycles: 24,
		},
		Fetch: FetchConfig{
			ResultsPerCall: 100,
			QuerySuffix:    "lang:en -is:retweet",
			EndTimeOffset:  10 * time.Second,
		},
		Output: OutputConfig{
			DatasetPattern: "./dataset%d",
			WriteManifest:  true,
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: 450,
			Window:            15 * time.Minute,
			BurstSize:         10,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if token := os.Getenv("TWDATASET_BEARER_TOKEN"); token != "" {
		c.Twitter.BearerToken = token
	} else if token := os.Getenv("TWITTER_BEARER_TOKEN"); token != "" {
		c.Twitter.BearerToken = token
	}
	if baseURL := os.Getenv("TWDATASET_BASE_URL"); baseURL != "" {
		c.Twitter.BaseURL = baseURL
	}
	if keysFile := os.Getenv("TWDATASET_KEYS_FILE"); keysFile != "" {
		c.Twitter.KeysFile = keysFile
	}
	if topicsFile := os.Getenv("TWDATASET_TOPICS_FILE"); topicsFile != "" {
		c.Topics.File = topicsFile
	}

	if v := os.Getenv("TWDATASET_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("TWDATASET_INTERVAL: %w", err))
		} else {
			c.Schedule.Interval = d
		}
	}
	envInts := []struct {
		name string
		dst  *int
	}{
		{"TWDATASET_THREADS", &c.Schedule.Threads},
		{"TWDATASET_GENERATIONS", &c.Schedule.Generations},
		{"TWDATASET_REFRESH_CYCLES", &c.Schedule.RefreshCycles},
		{"TWDATASET_REQUESTS_PER_WINDOW", &c.RateLimit.RequestsPerWindow},
		{"TWDATASET_MAX_ATTEMPTS", &c.Twitter.MaxAttempts},
	}
	for _, e := range envInts {
		v := os.Getenv(e.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.name, err))
			continue
		}
		*e.dst = n
	}

	if pattern := os.Getenv("TWDATASET_OUTPUT_PATTERN"); pattern != "" {
		c.Output.DatasetPattern = pattern
	}
	if logLevel := os.Getenv("TWDATASET_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if addr := os.Getenv("TWDATASET_METRICS_ADDR"); addr != "" {
		c.Metrics.Addr = addr
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".twdataset.yaml",
		".twdataset.yml",
		filepath.Join(home, ".config", "twdataset", "config.yaml"),
		filepath.Join(home, ".config", "twdataset", "config.yml"),
		filepath.Join(home, ".twdataset.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// DefaultConfigPath is where `config init` writes when no path is given
func DefaultConfigPath() string {
	return filepath.Join(os.Getenv("HOME"), ".config", "twdataset", "config.yaml")
}

// Validate checks if the configuration is valid. The bearer token is not
// checked here because it may come from the credential stores.
func (c *Config) Validate() error {
	var errs []error

	if c.Twitter.BaseURL == "" {
		errs = append(errs, errors.New("twitter base URL is required"))
	}
	if !strings.HasPrefix(c.Twitter.SearchEndpoint, "/") {
		errs = append(errs, errors.New("search endpoint must be an absolute path"))
	}
	if c.Twitter.Timeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if c.Twitter.MaxAttempts < 1 {
		errs = append(errs, errors.New("max attempts must be at least 1"))
	}

	if c.Schedule.Window <= 0 {
		errs = append(errs, errors.New("window must be positive"))
	}
	if c.Schedule.Interval < c.Schedule.Window {
		errs = append(errs, errors.New("interval must be at least one window"))
	}
	if c.Schedule.WindowQuota < 0 {
		errs = append(errs, errors.New("window quota cannot be negative"))
	}
	if c.Schedule.Threads <= 0 {
		errs = append(errs, errors.New("threads must be positive"))
	}
	if c.Schedule.Generations <= 0 {
		errs = append(errs, errors.New("generations must be positive"))
	}
	if c.Schedule.RefreshCycles < 0 {
		errs = append(errs, errors.New("refresh cycles cannot be negative"))
	}

	if c.Fetch.ResultsPerCall < 10 || c.Fetch.ResultsPerCall > 100 {
		errs = append(errs, errors.New("results per call must be between 10 and 100"))
	}

	if !strings.Contains(c.Output.DatasetPattern, "%d") {
		errs = append(errs, errors.New("dataset pattern must contain %d for the generation number"))
	}

	if c.RateLimit.RequestsPerWindow < 0 {
		errs = append(errs, errors.New("requests per window cannot be negative"))
	}
	if c.RateLimit.RequestsPerWindow > 0 {
		if c.RateLimit.Window <= 0 {
			errs = append(errs, errors.New("rate limit window must be positive"))
		}
		if c.RateLimit.BurstSize <= 0 {
			errs = append(errs, errors.New("burst size must be positive"))
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// DatasetDir returns the output directory of one generation
func (c *Config) DatasetDir(generation int) string {
	return fmt.Sprintf(c.Output.DatasetPattern, generation)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Zero values are ignored so unset flags never clobber lower layers.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["topics"].(string); ok && v != "" {
		c.Topics.File = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.DatasetPattern = v
	}
	if v, ok := flags["interval"].(time.Duration); ok && v > 0 {
		c.Schedule.Interval = v
	}
	if v, ok := flags["threads"].(int); ok && v > 0 {
		c.Schedule.Threads = v
	}
	if v, ok := flags["generations"].(int); ok && v > 0 {
		c.Schedule.Generations = v
	}
	if v, ok := flags["first-generation"].(int); ok && v > 0 {
		c.Schedule.FirstGen = v
	}
	if v, ok := flags["refreshes"].(int); ok && v >= 0 {
		c.Schedule.RefreshCycles = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["metrics-addr"].(string); ok && v != "" {
		c.Metrics.Addr = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".twdataset.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
