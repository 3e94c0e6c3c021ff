package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"twdataset/pkg/scheduler"
	"twdataset/pkg/topics"
	"twdataset/pkg/ui"
)

// planCmd represents the plan command
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show how topics are spread over the quota windows",
	Long: `Show the window allocation a run would use: how many quota windows fit
in one interval, which topics share each window and how many posts each
topic fetches.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(runFlags(cmd))
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		list, err := topics.Load(cfg.Topics.File)
		if err != nil {
			return err
		}

		printPlan(os.Stdout, scheduler.PlanFromConfig(cfg.Schedule, len(list)), list)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().DurationVarP(&interval, "interval", "i", 0, "time between refresh cycles (default 1h)")
	planCmd.Flags().StringVarP(&topicsFile, "topics", "t", "", "JSON file mapping topic label to query")
}

// printPlan writes the window table for plan over list
func printPlan(w io.Writer, plan scheduler.Plan, list []topics.Topic) {
	fmt.Fprintf(w, "%s %s\n", ui.Cyan("Interval:"), ui.Yellow(plan.Interval.String()))
	fmt.Fprintf(w, "%s %s (%d posts each)\n", ui.Cyan("Windows:"),
		ui.Yellow(fmt.Sprintf("%d x %s", plan.Windows, plan.Window)), plan.Quota)
	fmt.Fprintf(w, "%s %s\n", ui.Cyan("Topics per window:"), ui.Yellow(fmt.Sprint(plan.TopicsPerWindow)))
	fmt.Fprintf(w, "%s %s\n\n", ui.Cyan("Posts per topic:"), ui.Yellow(fmt.Sprint(plan.PostsPerTopic)))

	for i := 0; i < plan.Chunks(); i++ {
		start := time.Duration(i) * plan.Window
		end := start + plan.Window

		var labels []string
		for j := i * plan.TopicsPerWindow; j < (i+1)*plan.TopicsPerWindow && j < len(list); j++ {
			labels = append(labels, list[j].Label)
		}
		fmt.Fprintf(w, "  %s %s\n", ui.Magenta(fmt.Sprintf("[%s - %s]", start, end)), strings.Join(labels, ", "))
	}

	if plan.Leftover() > 0 {
		fmt.Fprintf(w, "  %s\n", ui.Dim(fmt.Sprintf("idle %s until the next cycle", plan.Leftover())))
	}
}
