package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/steveyegge/swarm/internal/config"
	"github.com/steveyegge/swarm/internal/storage"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past runs",
	Long: `List past runs from the run history database, most recent first.

Examples:
  swarm history            # Show the last 20 runs
  swarm history -n 50      # Show the last 50 runs`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		ctx := context.Background()

		store, err := openHistory(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.ListRuns(ctx, limit)
		if err != nil {
			return err
		}
		printRuns(runs)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show RUN_ID",
	Short: "Show the per-file outcomes of a run",
	Long: `Show a run's summary and the outcome of every file it processed.

Examples:
  swarm show 3f9c...             # Summary and file outcomes
  swarm show 3f9c... --events    # Also print the run's event log`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		withEvents, _ := cmd.Flags().GetBool("events")
		limit, _ := cmd.Flags().GetInt("limit")
		ctx := context.Background()

		store, err := openHistory(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		run, err := store.GetRun(ctx, args[0])
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("run %s not found", args[0])
		}

		records, err := store.GetFileRecords(ctx, run.ID)
		if err != nil {
			return err
		}
		printRun(run)
		printFileRecords(records)

		if withEvents {
			evts, err := store.GetEvents(ctx, run.ID, limit)
			if err != nil {
				return err
			}
			fmt.Println()
			for _, e := range evts {
				displayEvent(e)
			}
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "Number of runs to show (0 = all)")
	showCmd.Flags().Bool("events", false, "Print the run's event log")
	showCmd.Flags().IntP("limit", "n", 0, "Maximum events to print (0 = all)")
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(showCmd)
}

// openHistory opens the history database named by --db, the config file or
// the environment, in that order
func openHistory(ctx context.Context) (storage.Store, error) {
	path := dbPath
	if path == "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		path = cfg.History.Path
	}
	if path == "" {
		return nil, fmt.Errorf("run history is disabled (no database path configured)")
	}
	return storage.NewStore(ctx, &storage.Config{Path: path})
}
