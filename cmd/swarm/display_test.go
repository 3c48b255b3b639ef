package main

import (
	"testing"
	"time"

	"github.com/steveyegge/swarm/internal/events"
	"github.com/steveyegge/swarm/internal/types"
)

func TestExtractEventMetadata(t *testing.T) {
	tests := []struct {
		name      string
		eventType events.EventType
		model     string
		data      map[string]interface{}
		expected  string
	}{
		{
			name:      "pass started",
			eventType: events.EventTypePassStarted,
			data:      map[string]interface{}{"iteration": 2, "max_iterations": 5},
			expected:  "pass 2/5",
		},
		{
			name:      "diagnosis from decoded JSON",
			eventType: events.EventTypeDiagnosisCompleted,
			data:      map[string]interface{}{"iteration": 1.0, "finding_count": 3.0},
			expected:  "pass 1 | 3 findings",
		},
		{
			name:      "verification",
			eventType: events.EventTypeVerificationCompleted,
			data:      map[string]interface{}{"decision": "RETRY", "passed": 4, "failed": 1},
			expected:  "RETRY | 4 passed | 1 failed",
		},
		{
			name:      "verification missing fields",
			eventType: events.EventTypeVerificationCompleted,
			data:      map[string]interface{}{},
			expected:  "unknown | 0 passed | 0 failed",
		},
		{
			name:      "file completed without failure reason",
			eventType: events.EventTypeFileCompleted,
			data: map[string]interface{}{
				"status": "VALIDATED", "iterations": 2, "bugs_found": 3, "bugs_fixed": 3, "duration_ms": 1500,
			},
			expected: "2 iter | 3/3 fixed | 1.5s",
		},
		{
			name:      "ai call",
			eventType: events.EventTypeAICall,
			model:     "claude-x",
			data:      map[string]interface{}{"input_tokens": 1500, "output_tokens": 200, "duration_ms": 900},
			expected:  "claude-x | 1.5K in / 200 out | 900ms",
		},
		{
			name:      "run completed",
			eventType: events.EventTypeRunCompleted,
			data:      map[string]interface{}{"files_validated": 3, "total_files": 4, "success_rate": 75.0},
			expected:  "3/4 validated | 75%",
		},
		{
			name:      "generic error fallback",
			eventType: events.EventTypeCapabilityFailed,
			data:      map[string]interface{}{"error": "timeout"},
			expected:  "timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := &events.Event{Type: tt.eventType, Model: tt.model, Data: tt.data}
			if got := extractEventMetadata(event); got != tt.expected {
				t.Errorf("extractEventMetadata() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestGetEventEmoji(t *testing.T) {
	validated := &events.Event{Type: events.EventTypeFileCompleted, Data: map[string]interface{}{"status": "VALIDATED"}}
	failed := &events.Event{Type: events.EventTypeFileCompleted, Data: map[string]interface{}{"status": "FAILED"}}
	if getEventEmoji(validated) == getEventEmoji(failed) {
		t.Error("validated and failed files should be distinguishable")
	}

	unknown := &events.Event{Type: "custom", Severity: events.SeverityError}
	if got := getEventEmoji(unknown); got != "❌" {
		t.Errorf("expected severity fallback, got %q", got)
	}
}

func TestDescribeRecord(t *testing.T) {
	rec := &types.FileRecord{
		Status:             types.StatusFailed,
		FailureReason:      types.FailureCleanRejected,
		Iterations:         1,
		FindingsSeen:       0,
		FindingsRemediated: 0,
		Duration:           250 * time.Millisecond,
	}
	want := "FAILED (clean_rejected) | 1 iter | 0/0 fixed | 250ms"
	if got := describeRecord(rec); got != want {
		t.Errorf("describeRecord() = %q, want %q", got, want)
	}
}

func TestFormatTokens(t *testing.T) {
	tests := []struct {
		tokens int64
		want   string
	}{
		{0, "0"},
		{999, "999"},
		{1500, "1.5K"},
		{2_500_000, "2.50M"},
	}
	for _, tt := range tests {
		if got := formatTokens(tt.tokens); got != tt.want {
			t.Errorf("formatTokens(%d) = %q, want %q", tt.tokens, got, tt.want)
		}
	}
}

func TestFormatDurationMs(t *testing.T) {
	if got := formatDurationMs(999); got != "999ms" {
		t.Errorf("got %q", got)
	}
	if got := formatDurationMs(90000); got != "1.5m" {
		t.Errorf("got %q", got)
	}
}

func TestTruncateString(t *testing.T) {
	if got := truncateString("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncateString("a longer message", 8); got != "a lon..." {
		t.Errorf("got %q", got)
	}
	if got := truncateString("héllo wörld", 6); got != "hél..." {
		t.Errorf("multibyte truncation = %q", got)
	}
}

func TestShortHelpers(t *testing.T) {
	if got := shortID("0f8fad5b-d9cb-469f-a165-70867728950e"); got != "0f8fad5b" {
		t.Errorf("shortID = %q", got)
	}
	if got := shortID("plain"); got != "plain" {
		t.Errorf("shortID = %q", got)
	}
	if got := shortPath("/a/b/c/d.py"); got != "c/d.py" {
		t.Errorf("shortPath = %q", got)
	}
}
