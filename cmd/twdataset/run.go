package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"twdataset/pkg/auth"
	"twdataset/pkg/checkpoint"
	"twdataset/pkg/collector"
	"twdataset/pkg/config"
	"twdataset/pkg/logger"
	"twdataset/pkg/metrics"
	"twdataset/pkg/ratelimit"
	"twdataset/pkg/topics"
	"twdataset/pkg/twitter"
	"twdataset/pkg/ui"
)

var (
	// Run command flags
	generations     int
	firstGeneration int
	refreshes       int
	interval        time.Duration
	topicsFile      string
	outputPattern   string
	threads         int
	resumeRun       bool
	forceRestart    bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Collect dataset generations",
	Long: `Collect one or more dataset generations.

Every generation runs an initial fetch of all topics into a new directory
(--output, default ./dataset%d) followed by --refreshes refresh cycles
spaced --interval apart. The bearer token is looked up in the config, the
keys file, TWITTER_BEARER_TOKEN, the system keyring and the encrypted
credential file, in that order.

Progress is checkpointed after the fetch and after every refresh cycle, so
an interrupted generation can continue with --resume.`,
	Example: `  # Nine generations, hourly refreshes for a day each
  twdataset run

  # One quick generation for a custom topic file
  twdataset run --topics topics.json --generations 1 --refreshes 3 --interval 15m

  # Continue after an interruption
  twdataset run --resume`,
	Args: cobra.NoArgs,
	RunE: runCollect,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntVarP(&generations, "generations", "g", 0, "number of dataset generations (default 9)")
	runCmd.Flags().IntVar(&firstGeneration, "first-generation", 0, "number of the first generation (default 1)")
	runCmd.Flags().IntVarP(&refreshes, "refreshes", "r", 0, "refresh cycles per generation (default 24)")
	runCmd.Flags().DurationVarP(&interval, "interval", "i", 0, "time between refresh cycles (default 1h)")
	runCmd.Flags().StringVarP(&topicsFile, "topics", "t", "", "JSON file mapping topic label to query")
	runCmd.Flags().StringVarP(&outputPattern, "output", "o", "", "dataset directory pattern with one %d for the generation")
	runCmd.Flags().IntVar(&threads, "threads", 0, "concurrent topics per window (default 2)")
	runCmd.Flags().BoolVar(&resumeRun, "resume", false, "resume from the last checkpoint")
	runCmd.Flags().BoolVar(&forceRestart, "force-restart", false, "ignore and delete an existing checkpoint")
}

// runFlags collects the run flags the user actually set
func runFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	set := cmd.Flags().Changed

	if set("generations") {
		flags["generations"] = generations
	}
	if set("first-generation") {
		flags["first-generation"] = firstGeneration
	}
	if set("refreshes") {
		flags["refreshes"] = refreshes
	}
	if set("interval") {
		flags["interval"] = interval
	}
	if set("topics") {
		flags["topics"] = topicsFile
	}
	if set("output") {
		flags["output"] = outputPattern
	}
	if set("threads") {
		flags["threads"] = threads
	}
	return flags
}

func runCollect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(runFlags(cmd))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("twdataset starting")

	list, err := topics.Load(cfg.Topics.File)
	if err != nil {
		return err
	}

	client, err := newClient(cfg, log)
	if err != nil {
		return err
	}

	if srv := metrics.StartServer(cfg.Metrics.Addr, func(err error) {
		log.WithError(err).Error("Metrics server failed")
	}); srv != nil {
		defer srv.Close()
		ui.PrintInfo("Metrics", cfg.Metrics.Addr+"/metrics")
	}

	checkpointMgr, err := checkpoint.NewManager(checkpointName(cfg.Output.DatasetPattern))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := collector.New(cfg, client, list,
		collector.WithCheckpoints(checkpointMgr),
		collector.WithTracker(ui.NewRunTracker(cfg.Schedule.Generations, cfg.Schedule.RefreshCycles)),
		collector.WithLogger(log),
	)

	plan := c.Plan()
	ui.PrintInfo("Topics", strings.Join(c.Labels(), ", "))
	ui.PrintInfo("Plan", fmt.Sprintf("%d windows, %d topics per window, %d posts per topic",
		plan.Windows, plan.TopicsPerWindow, plan.PostsPerTopic))
	ui.PrintHighlight("[COLLECTION STARTED]")

	if err := c.Run(ctx, resumeRun, forceRestart); err != nil {
		if stderrors.Is(err, context.Canceled) {
			ui.PrintWarning("Interrupted", "continue with 'twdataset run --resume'")
			return nil
		}
		log.WithError(err).Error("Collection failed")
		return err
	}

	ui.PrintSuccess("[COLLECTION COMPLETE]")
	return nil
}

// newClient builds the API client from the twitter and rate limit sections
func newClient(cfg *config.Config, log logger.Logger) (*twitter.Client, error) {
	creds, err := auth.NewManager(cfg.Twitter.KeysFile)
	if err != nil {
		return nil, err
	}

	token, source, err := creds.BearerToken(cfg.Twitter.BearerToken, cfg.Twitter.KeysFileKey)
	if err != nil {
		ui.PrintError("No bearer token found")
		fmt.Println("\nStore one with:")
		fmt.Println("  twdataset auth login")
		fmt.Println("\nor set it in the environment:")
		fmt.Printf("  export %s=<token>\n", auth.BearerTokenEnv)
		return nil, err
	}
	log.WithField("source", source).Info("Using bearer token")

	return twitter.NewClient(token, log,
		twitter.WithBaseURL(cfg.Twitter.BaseURL),
		twitter.WithSearchEndpoint(cfg.Twitter.SearchEndpoint),
		twitter.WithLimiter(ratelimit.FromConfig(cfg.RateLimit)),
		twitter.WithTimeout(cfg.Twitter.Timeout),
		twitter.WithRetry(cfg.Twitter.MaxAttempts, nil),
	), nil
}

var nonName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// checkpointName derives a checkpoint file name from the dataset pattern so
// runs writing to different trees do not share a checkpoint
func checkpointName(pattern string) string {
	name := strings.Trim(nonName.ReplaceAllString(strings.ReplaceAll(pattern, "%d", ""), "_"), "_")
	if name == "" {
		return "twdataset"
	}
	return name
}
