package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/swarm/internal/storage"
	"github.com/steveyegge/swarm/internal/types"
)

func newTestRunCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "run"}
	addRunFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func withGlobals(t *testing.T, config, db string) {
	t.Helper()
	oldConfig, oldDB := configPath, dbPath
	configPath, dbPath = config, db
	t.Setenv("SWARM_TARGET_DIR", "")
	t.Setenv("SWARM_MAX_ITERATIONS", "")
	t.Setenv("SWARM_DB", "")
	t.Cleanup(func() { configPath, dbPath = oldConfig, oldDB })
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 1, exitCode(fmt.Errorf("boom")))
	assert.Equal(t, 130, exitCode(&exitError{code: exitInterrupted}))
	assert.Equal(t, 1, exitCode(fmt.Errorf("wrapped: %w", &exitError{code: exitIncomplete})))
}

func TestSummaryExit(t *testing.T) {
	tests := []struct {
		name    string
		summary *types.BatchSummary
		want    int
	}{
		{"empty target", &types.BatchSummary{}, 0},
		{"all validated", &types.BatchSummary{Discovered: 2, Total: 2, Validated: 2}, 0},
		{"some failed", &types.BatchSummary{Discovered: 2, Total: 2, Validated: 1, Failed: 1}, 1},
		{"interrupted", &types.BatchSummary{Discovered: 3, Total: 1, Validated: 1, Interrupted: true}, 130},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(summaryExit(tt.summary)))
		})
	}
}

func TestLoadRunConfig_FlagsOverride(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "swarm.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("target_dir: ./from-file\nmax_iterations: 4\nrequests_per_minute: 6\n"), 0644))
	withGlobals(t, cfgFile, filepath.Join(dir, "h.db"))

	cmd := newTestRunCmd(t, "--target-dir", "./from-flag", "--rpm", "20", "--lint")
	cfg, err := loadRunConfig(cmd)
	require.NoError(t, err)

	assert.Equal(t, "./from-flag", cfg.TargetDir)
	assert.Equal(t, 4, cfg.MaxIterations, "unset flags keep file values")
	assert.Equal(t, 20, cfg.RequestsPerMinute)
	assert.True(t, cfg.Lint)
	assert.Equal(t, filepath.Join(dir, "h.db"), cfg.History.Path)
}

func TestLoadRunConfig_Invalid(t *testing.T) {
	withGlobals(t, "", "")
	t.Chdir(t.TempDir())

	_, err := loadRunConfig(newTestRunCmd(t))
	assert.ErrorContains(t, err, "target_dir")

	_, err = loadRunConfig(newTestRunCmd(t, "--target-dir", ".", "--max-iterations", "0"))
	assert.ErrorContains(t, err, "max_iterations")
}

func TestListEligibleFiles(t *testing.T) {
	withGlobals(t, "", "")
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "calc.py"), []byte("x = 1\n"), 0644))

	cfg, err := loadRunConfig(newTestRunCmd(t, "--target-dir", dir))
	require.NoError(t, err)
	assert.NoError(t, listEligibleFiles(cfg))

	cfg.TargetDir = filepath.Join(dir, "missing")
	assert.Error(t, listEligibleFiles(cfg))
}

func TestOpenHistory(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")
	withGlobals(t, "", path)

	store, err := storage.NewStore(ctx, &storage.Config{Path: path})
	require.NoError(t, err)
	started := time.Now().Add(-time.Minute)
	run := &types.RunRecord{
		ID:            "0f8fad5b-d9cb-469f-a165-70867728950e",
		TargetDir:     "./src",
		MaxIterations: 3,
		Status:        types.RunStatusRunning,
		StartedAt:     started,
	}
	require.NoError(t, store.CreateRun(ctx, run))
	require.NoError(t, store.RecordFile(ctx, run.ID, &types.FileRecord{
		FilePath: "/src/a.py", FileName: "a.py", Status: types.StatusValidated, Iterations: 1,
	}))
	run.Complete(&types.BatchSummary{Discovered: 1, Total: 1, Validated: 1, CompletedAt: time.Now()})
	require.NoError(t, store.CompleteRun(ctx, run))
	require.NoError(t, store.Close())

	opened, err := openHistory(ctx)
	require.NoError(t, err)
	defer opened.Close()

	runs, err := opened.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, types.RunStatusCompleted, runs[0].Status)

	// Printing must handle a completed run with records
	printRuns(runs)
	printRun(runs[0])
	records, err := opened.GetFileRecords(ctx, run.ID)
	require.NoError(t, err)
	printFileRecords(records)
}

func TestOpenHistory_Disabled(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "swarm.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("history:\n  path: \"\"\n"), 0644))
	withGlobals(t, cfgFile, "")

	_, err := openHistory(context.Background())
	assert.ErrorContains(t, err, "disabled")
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	t.Cleanup(func() { versionCmd.SetOut(nil) })

	versionCmd.Run(versionCmd, nil)
	assert.Equal(t, "swarm "+version+"\n", out.String())
}
