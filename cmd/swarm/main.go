package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	dbPath     string

	loadDotEnv = godotenv.Load
)

var rootCmd = &cobra.Command{
	Use:   "swarm",
	Short: "Iterative AI refactoring: diagnose, remediate and verify every file until it converges",
	Long: `swarm walks a target directory and drives each eligible file through
repeated passes of diagnose -> remediate -> verify until the verifier accepts
it, a capability fails, or the per-file iteration budget runs out.

Results, per-file outcomes and the event log are kept in a local SQLite
history database.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Load .env file (ignore error if file doesn't exist)
		_ = loadDotEnv()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: .swarm.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Run history database (default: .swarm/history.db)")
}

// exitError carries a process exit code out of a command
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string {
	return e.msg
}

// exitCode maps a command error to the process exit code
func exitCode(err error) int {
	if err == nil {
		return exitAllValidated
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitIncomplete
}

func main() {
	err := rootCmd.Execute()
	code := exitCode(err)
	var ee *exitError
	if err != nil && !errors.As(err, &ee) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(code)
}
