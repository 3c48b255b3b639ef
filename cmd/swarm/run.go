package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/steveyegge/swarm/internal/ai"
	"github.com/steveyegge/swarm/internal/batch"
	"github.com/steveyegge/swarm/internal/config"
	"github.com/steveyegge/swarm/internal/cost"
	"github.com/steveyegge/swarm/internal/events"
	"github.com/steveyegge/swarm/internal/gates"
	"github.com/steveyegge/swarm/internal/iterative"
	"github.com/steveyegge/swarm/internal/sandbox"
	"github.com/steveyegge/swarm/internal/storage"
	"github.com/steveyegge/swarm/internal/types"
)

// Exit codes
const (
	exitAllValidated = 0
	exitIncomplete   = 1
	exitInterrupted  = 130
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process every eligible file under a target directory",
	Long: `Run the convergence loop over every eligible file in the target directory.

Each file is processed on its own, one after another:
1. The Auditor diagnoses the current content and lists findings
2. The Fixer rewrites the file to address the findings (written back immediately)
3. The Judge runs the file's tests and decides ACCEPT or RETRY
4. RETRY loops until --max-iterations passes have been used

Exit status is 0 when every discovered file validated, 1 otherwise and 130
when interrupted with Ctrl+C (files already processed keep their results).

Examples:
  swarm run --target-dir ./src
  swarm run --target-dir ./src --max-iterations 3 --rpm 10
  swarm run --target-dir ./src --dry-run`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRunConfig(cmd)
		if err != nil {
			return err
		}

		dryRun, _ := cmd.Flags().GetBool("dry-run")
		if dryRun {
			return listEligibleFiles(cfg)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		summary, err := executeRun(ctx, cfg)
		if err != nil {
			return err
		}
		printSummary(summary)
		return summaryExit(summary)
	},
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("target-dir", "t", "", "Directory of files to process")
	cmd.Flags().IntP("max-iterations", "n", 0, "Maximum passes per file (default: 10)")
	cmd.Flags().String("sandbox-root", "", "Confine reads and writes to this directory (default: target dir)")
	cmd.Flags().String("model", "", "Anthropic model (default: SWARM_MODEL or "+ai.ModelSonnet+")")
	cmd.Flags().Int("rpm", 0, "Model requests per minute (default: 4)")
	cmd.Flags().String("log", "", "JSONL event log path (default: .swarm/events.jsonl)")
	cmd.Flags().Bool("lint", false, "Add pylint output to verification")
	cmd.Flags().Bool("dry-run", false, "List the files that would be processed and exit")
}

// loadRunConfig layers flags over the config file and environment
func loadRunConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("target-dir") {
		cfg.TargetDir, _ = flags.GetString("target-dir")
	}
	if flags.Changed("max-iterations") {
		cfg.MaxIterations, _ = flags.GetInt("max-iterations")
	}
	if flags.Changed("sandbox-root") {
		cfg.SandboxRoot, _ = flags.GetString("sandbox-root")
	}
	if flags.Changed("model") {
		cfg.Model, _ = flags.GetString("model")
	}
	if flags.Changed("rpm") {
		cfg.RequestsPerMinute, _ = flags.GetInt("rpm")
	}
	if flags.Changed("log") {
		cfg.EventLog, _ = flags.GetString("log")
	}
	if flags.Changed("lint") {
		cfg.Lint, _ = flags.GetBool("lint")
	}
	if dbPath != "" {
		cfg.History.Path = dbPath
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func listEligibleFiles(cfg *config.Config) error {
	files, err := sandbox.Discover(cfg.TargetDir, cfg.Predicate())
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Printf("%s\n", cyan(fmt.Sprintf("%d files would be processed in %s:", len(files), cfg.TargetDir)))
	root, _ := filepath.Abs(cfg.TargetDir)
	for _, f := range files {
		rel, err := filepath.Rel(root, f)
		if err != nil {
			rel = f
		}
		fmt.Printf("  %s\n", filepath.ToSlash(rel))
	}
	return nil
}

// executeRun wires the agents, quality gates, metering and history together
// and runs the batch
func executeRun(ctx context.Context, cfg *config.Config) (*types.BatchSummary, error) {
	runID := uuid.New().String()

	var sinks events.MultiSink
	if cfg.EventLog != "" {
		jsonl, err := events.NewJSONLSink(cfg.EventLog)
		if err != nil {
			return nil, err
		}
		defer jsonl.Close()
		sinks = append(sinks, jsonl)
	}

	var history storage.Store
	if cfg.History.Enabled() {
		store, err := storage.NewStore(ctx, &storage.Config{Path: cfg.History.Path})
		if err != nil {
			return nil, fmt.Errorf("failed to open run history: %w", err)
		}
		defer store.Close()
		history = store
		sinks = append(sinks, storage.NewStoreSink(store))
	}
	sink := events.WithRunID(sinks, runID)

	tracker, err := cost.NewTracker(&cfg.Cost, sink)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize usage tracker: %w", err)
	}
	pacer, err := ai.NewRatePacer(cfg.RequestsPerMinute)
	if err != nil {
		return nil, err
	}

	retry := ai.DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxRetries = cfg.MaxRetries
	}
	if cfg.CallTimeout > 0 {
		retry.Timeout = cfg.CallTimeout
	}
	supervisor, err := ai.NewSupervisor(&ai.Config{
		Model: cfg.Model,
		Retry: retry,
		Pacer: pacer,
		Usage: tracker,
		Sink:  sink,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AI supervisor: %w", err)
	}

	gateRunner, err := gates.NewRunner(&gates.Config{
		PytestCommand: cfg.TestCommand,
		Timeout:       cfg.GateTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create quality gates: %w", err)
	}

	auditor, err := ai.NewAuditor(supervisor)
	if err != nil {
		return nil, err
	}
	fixer, err := ai.NewFixer(supervisor, gateRunner)
	if err != nil {
		return nil, err
	}
	var linter ai.Linter
	if cfg.Lint {
		linter = gateRunner
	}
	judge, err := ai.NewJudge(supervisor, gateRunner, linter)
	if err != nil {
		return nil, err
	}

	files, err := sandbox.NewLocalStore(cfg.Root())
	if err != nil {
		return nil, err
	}

	metrics := iterative.NewInMemoryMetricsCollector()
	controller, err := iterative.NewController(&iterative.Config{
		Diagnoser:  auditor,
		Remediator: fixer,
		Verifier:   judge,
		Store:      files,
		Sink:       sink,
		Metrics:    metrics,
	})
	if err != nil {
		return nil, err
	}

	runner, err := batch.NewRunner(&batch.Config{
		Controller:    controller,
		Files:         files,
		MaxIterations: cfg.MaxIterations,
		Predicate:     cfg.Predicate(),
		RunID:         runID,
		Model:         supervisor.Model(),
		Sink:          sink,
		History:       history,
		Usage:         tracker,
	})
	if err != nil {
		return nil, err
	}

	green := color.New(color.FgGreen).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	fmt.Printf("%s Run %s started (model %s, max %d iterations, %d req/min)\n",
		green("✓"), cyan(runID), supervisor.Model(), cfg.MaxIterations, cfg.RequestsPerMinute)

	summary, err := runner.Run(ctx, cfg.TargetDir)
	if err != nil {
		return nil, err
	}

	printMetrics(metrics.GetAggregateMetrics())
	printUsage(tracker.GetStats(), pacer.Stats())

	if history != nil && cfg.History.KeepRuns > 0 {
		if pruned, err := history.PruneRuns(context.WithoutCancel(ctx), cfg.History.KeepRuns); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to prune run history: %v\n", err)
		} else if pruned > 0 {
			fmt.Printf("  Pruned %d old runs from history\n", pruned)
		}
	}

	return summary, nil
}

// summaryExit converts a finished batch into the command's exit status
func summaryExit(summary *types.BatchSummary) error {
	switch {
	case summary.Interrupted:
		return &exitError{code: exitInterrupted, msg: "run interrupted"}
	case summary.AllValidated():
		return nil
	default:
		return &exitError{
			code: exitIncomplete,
			msg:  fmt.Sprintf("%d of %d files did not validate", summary.Failed, summary.Total),
		}
	}
}
