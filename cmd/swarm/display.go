package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/steveyegge/swarm/internal/ai"
	"github.com/steveyegge/swarm/internal/cost"
	"github.com/steveyegge/swarm/internal/events"
	"github.com/steveyegge/swarm/internal/iterative"
	"github.com/steveyegge/swarm/internal/types"
)

// printSummary prints the end-of-run report
func printSummary(summary *types.BatchSummary) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Printf("\n%s\n", cyan("=== Run Summary ==="))

	for _, f := range summary.Files {
		fmt.Printf("  %s %-40s %s\n", statusIcon(f.Status), truncateString(f.FileName, 40), describeRecord(f))
	}
	if len(summary.Files) > 0 {
		fmt.Println()
	}

	fmt.Printf("  Files:      %d processed of %d discovered\n", summary.Total, summary.Discovered)
	fmt.Printf("  Validated:  %s\n", color.New(color.FgGreen).Sprint(summary.Validated))
	fmt.Printf("  Failed:     %s\n", failedColor(summary.Failed).Sprint(summary.Failed))
	fmt.Printf("  Success:    %.1f%%\n", summary.SuccessRate())
	if !summary.StartedAt.IsZero() && !summary.CompletedAt.IsZero() {
		fmt.Printf("  Duration:   %s\n", summary.CompletedAt.Sub(summary.StartedAt).Round(time.Second))
	}
	if summary.Interrupted {
		fmt.Printf("  %s\n", color.New(color.FgYellow, color.Bold).Sprint("Interrupted: remaining files were skipped"))
	}
}

// printMetrics prints iteration statistics gathered by the controller
func printMetrics(m *iterative.AggregateMetrics) {
	if m == nil || m.TotalFiles == 0 {
		return
	}
	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Printf("\n%s\n", yellow("Convergence:"))
	fmt.Printf("  Iterations: %d total, %.1f mean, p50 %d, p95 %d\n",
		m.TotalIterations, m.MeanIterations, m.P50Iterations, m.P95Iterations)
	fmt.Printf("  Findings:   %d seen, %d remediated\n", m.TotalFindingsSeen, m.TotalFindingsRemediated)
	if m.ExhaustedFiles > 0 {
		fmt.Printf("  Exhausted:  %d files hit the iteration budget\n", m.ExhaustedFiles)
	}
	if len(m.ByFailureReason) > 0 {
		reasons := make([]string, 0, len(m.ByFailureReason))
		for reason, n := range m.ByFailureReason {
			reasons = append(reasons, fmt.Sprintf("%s=%d", reason, n))
		}
		sort.Strings(reasons)
		fmt.Printf("  Failures:   %s\n", strings.Join(reasons, ", "))
	}
}

// printUsage prints model token usage and pacing
func printUsage(stats cost.Stats, pacing ai.PacerStats) {
	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Printf("\n%s\n", yellow("Model Usage:"))
	fmt.Printf("  Tokens:     %s in / %s out over %d calls\n",
		formatTokens(stats.Total.InputTokens), formatTokens(stats.Total.OutputTokens), stats.Total.Calls)
	fmt.Printf("  Est. cost:  $%.4f\n", stats.Total.CostUSD)
	if stats.Config.MaxTokensPerFile > 0 {
		fmt.Printf("  Budget:     %s tokens per file (%s)\n",
			formatTokens(stats.Config.MaxTokensPerFile), stats.Status)
	}
	if pacing.Delayed > 0 {
		fmt.Printf("  Pacing:     %d of %d calls delayed, %s waited (%d req/min)\n",
			pacing.Delayed, pacing.Calls, pacing.TotalWait.Round(time.Second), pacing.RequestsPerMinute)
	}
}

// printRuns prints one line per run, most recent first
func printRuns(runs []*types.RunRecord) {
	if len(runs) == 0 {
		fmt.Println("No runs recorded")
		return
	}

	gray := color.New(color.FgHiBlack).SprintFunc()
	for _, r := range runs {
		fmt.Printf("%s %s  %s  %d/%d validated (%.0f%%)  %s\n",
			runStatusIcon(r.Status),
			color.New(color.FgCyan).Sprint(shortID(r.ID)),
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Validated, r.Total, r.SuccessRate(),
			gray(r.TargetDir),
		)
	}
}

// printRun prints a run's header block
func printRun(r *types.RunRecord) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Printf("\n%s\n", cyan("=== Run "+r.ID+" ==="))
	fmt.Printf("  Status:     %s %s\n", runStatusIcon(r.Status), r.Status)
	fmt.Printf("  Target:     %s\n", r.TargetDir)
	if r.Model != "" {
		fmt.Printf("  Model:      %s\n", r.Model)
	}
	fmt.Printf("  Started:    %s\n", r.StartedAt.Local().Format(time.RFC1123))
	if r.CompletedAt != nil {
		fmt.Printf("  Duration:   %s\n", r.CompletedAt.Sub(r.StartedAt).Round(time.Second))
	}
	fmt.Printf("  Files:      %d/%d validated of %d discovered (%.1f%%)\n",
		r.Validated, r.Total, r.Discovered, r.SuccessRate())
	fmt.Printf("  Tokens:     %s in / %s out ($%.4f)\n",
		formatTokens(r.InputTokens), formatTokens(r.OutputTokens), r.CostUSD)
}

// printFileRecords prints per-file outcomes in processing order
func printFileRecords(records []*types.FileRecord) {
	if len(records) == 0 {
		return
	}
	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Printf("\n%s\n", yellow("Files:"))
	for _, f := range records {
		fmt.Printf("  %s %-40s %s\n", statusIcon(f.Status), truncateString(f.FileName, 40), describeRecord(f))
		if f.FailureDetail != "" {
			gray := color.New(color.FgHiBlack).SprintFunc()
			fmt.Printf("      %s\n", gray(truncateString(f.FailureDetail, 100)))
		}
	}
}

// describeRecord is the one-line outcome shown next to a file
func describeRecord(f *types.FileRecord) string {
	fields := []string{string(f.Status)}
	if f.FailureReason != "" {
		fields[0] = fmt.Sprintf("%s (%s)", f.Status, f.FailureReason)
	}
	fields = append(fields,
		fmt.Sprintf("%d iter", f.Iterations),
		fmt.Sprintf("%d/%d fixed", f.FindingsRemediated, f.FindingsSeen),
	)
	if f.Duration > 0 {
		fields = append(fields, formatDurationMs(int(f.Duration.Milliseconds())))
	}
	return joinFields(fields)
}

// displayEvent prints a single event in a two-line format
func displayEvent(event *events.Event) {
	timestamp := event.Timestamp.Local().Format("15:04:05")
	file := ""
	if event.File != "" {
		file = color.New(color.FgGreen).Sprint(shortPath(event.File)) + " "
	}
	eventType := color.New(color.FgMagenta).Sprint(event.Type)

	fmt.Printf("%s [%s] %s%s: %s\n",
		getEventEmoji(event),
		timestamp,
		file,
		eventType,
		getSeverityColor(event.Severity).Sprint(truncateString(event.Message, 80)),
	)

	if metadata := extractEventMetadata(event); metadata != "" {
		fmt.Printf("  %s\n", color.New(color.FgHiBlack).Sprint(metadata))
	}
}

// getEventEmoji returns the appropriate emoji for each event type
func getEventEmoji(event *events.Event) string {
	switch event.Type {
	case events.EventTypeRunStarted:
		return "🚀"
	case events.EventTypeRunCompleted:
		return "🏁"
	case events.EventTypeRunInterrupted:
		return "⏹️"
	case events.EventTypeFileStarted:
		return "📄"
	case events.EventTypeFileCompleted:
		if getStringField(event.Data, "status", "") == string(types.StatusValidated) {
			return "✅"
		}
		return "❌"
	case events.EventTypePassStarted:
		return "🔁"
	case events.EventTypeDiagnosisCompleted:
		return "🔍"
	case events.EventTypeRemediationCompleted:
		return "🩹"
	case events.EventTypeVerificationCompleted:
		return "🧪"
	case events.EventTypeCapabilityFailed:
		return "🚫"
	case events.EventTypeAICall:
		return "🧠"
	case events.EventTypeBudgetAlert:
		return "💰"
	}

	switch event.Severity {
	case events.SeverityWarning:
		return "⚠️"
	case events.SeverityError:
		return "❌"
	default:
		return "•"
	}
}

// getSeverityColor returns the appropriate color for a severity level
func getSeverityColor(severity events.EventSeverity) *color.Color {
	switch severity {
	case events.SeverityInfo:
		return color.New(color.FgCyan)
	case events.SeverityWarning:
		return color.New(color.FgYellow)
	case events.SeverityError:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgWhite)
	}
}

// extractEventMetadata extracts a few key fields for each event type
// as a pipe-separated string
func extractEventMetadata(event *events.Event) string {
	var fields []string

	switch event.Type {
	case events.EventTypePassStarted:
		fields = []string{fmt.Sprintf("pass %d/%d",
			getIntField(event.Data, "iteration", 0), getIntField(event.Data, "max_iterations", 0))}

	case events.EventTypeDiagnosisCompleted:
		fields = []string{
			fmt.Sprintf("pass %d", getIntField(event.Data, "iteration", 0)),
			fmt.Sprintf("%d findings", getIntField(event.Data, "finding_count", 0)),
		}

	case events.EventTypeRemediationCompleted:
		fields = []string{
			fmt.Sprintf("%d fixed", getIntField(event.Data, "findings_fixed", 0)),
			fmt.Sprintf("%d → %d lines", getIntField(event.Data, "lines_before", 0), getIntField(event.Data, "lines_after", 0)),
			fmt.Sprintf("%d changed", getIntField(event.Data, "diff_lines", 0)),
		}

	case events.EventTypeVerificationCompleted:
		fields = []string{
			getStringField(event.Data, "decision", "unknown"),
			fmt.Sprintf("%d passed", getIntField(event.Data, "passed", 0)),
			fmt.Sprintf("%d failed", getIntField(event.Data, "failed", 0)),
		}

	case events.EventTypeFileCompleted:
		fields = []string{
			getStringField(event.Data, "failure_reason", ""),
			fmt.Sprintf("%d iter", getIntField(event.Data, "iterations", 0)),
			fmt.Sprintf("%d/%d fixed", getIntField(event.Data, "bugs_fixed", 0), getIntField(event.Data, "bugs_found", 0)),
			formatDurationMs(getIntField(event.Data, "duration_ms", 0)),
		}

	case events.EventTypeAICall:
		fields = []string{
			event.Model,
			fmt.Sprintf("%s in / %s out",
				formatTokens(int64(getIntField(event.Data, "input_tokens", 0))),
				formatTokens(int64(getIntField(event.Data, "output_tokens", 0)))),
			formatDurationMs(getIntField(event.Data, "duration_ms", 0)),
			truncateString(getStringField(event.Data, "error", ""), 40),
		}

	case events.EventTypeRunCompleted, events.EventTypeRunInterrupted:
		fields = []string{
			fmt.Sprintf("%d/%d validated", getIntField(event.Data, "files_validated", 0), getIntField(event.Data, "total_files", 0)),
			fmt.Sprintf("%.0f%%", getFloatField(event.Data, "success_rate", 0)),
		}

	default:
		if err, ok := event.Data["error"].(string); ok {
			fields = append(fields, truncateString(err, 50))
		}
		if duration := getIntField(event.Data, "duration_ms", 0); duration > 0 {
			fields = append(fields, formatDurationMs(duration))
		}
	}

	return truncateString(joinFields(fields), 70)
}

func statusIcon(status types.WorkflowStatus) string {
	switch status {
	case types.StatusValidated:
		return color.New(color.FgGreen).Sprint("✓")
	case types.StatusIterationBudgetExhausted:
		return color.New(color.FgYellow).Sprint("⟳")
	default:
		return color.New(color.FgRed).Sprint("✗")
	}
}

func runStatusIcon(status types.RunStatus) string {
	switch status {
	case types.RunStatusCompleted:
		return color.New(color.FgGreen).Sprint("●")
	case types.RunStatusInterrupted:
		return color.New(color.FgYellow).Sprint("◐")
	default:
		return color.New(color.FgHiBlack).Sprint("○")
	}
}

func failedColor(n int) *color.Color {
	if n == 0 {
		return color.New(color.FgGreen)
	}
	return color.New(color.FgRed)
}

// Helper functions to safely extract typed fields from event data
func getStringField(data map[string]interface{}, key, defaultValue string) string {
	if val, ok := data[key].(string); ok {
		return val
	}
	return defaultValue
}

func getIntField(data map[string]interface{}, key string, defaultValue int) int {
	if val, ok := data[key].(int); ok {
		return val
	}
	if val, ok := data[key].(float64); ok {
		return int(val)
	}
	return defaultValue
}

func getFloatField(data map[string]interface{}, key string, defaultValue float64) float64 {
	if val, ok := data[key].(float64); ok {
		return val
	}
	if val, ok := data[key].(int); ok {
		return float64(val)
	}
	return defaultValue
}

// formatTokens formats a token count for readability
func formatTokens(tokens int64) string {
	if tokens < 1000 {
		return fmt.Sprintf("%d", tokens)
	} else if tokens < 1_000_000 {
		return fmt.Sprintf("%.1fK", float64(tokens)/1000)
	}
	return fmt.Sprintf("%.2fM", float64(tokens)/1_000_000)
}

// formatDurationMs formats milliseconds into a human-readable duration
func formatDurationMs(ms int) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	return fmt.Sprintf("%.1fm", float64(ms)/60000)
}

// joinFields joins non-empty fields with " | "
func joinFields(fields []string) string {
	nonEmpty := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			nonEmpty = append(nonEmpty, f)
		}
	}
	return strings.Join(nonEmpty, " | ")
}

// truncateString shortens s to at most maxLen runes, marking the cut with "..."
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// shortID keeps the first segment of a UUID
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

// shortPath keeps the last two path elements
func shortPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	parts := strings.Split(p, "/")
	if len(parts) <= 2 {
		return p
	}
	return strings.Join(parts[len(parts)-2:], "/")
}
