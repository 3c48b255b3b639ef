package ai

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestExtractCode(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{
			name:     "plain code",
			response: "def add(a, b):\n    return a + b",
			want:     "def add(a, b):\n    return a + b\n",
		},
		{
			name:     "python fence",
			response: "```python\ndef add(a, b):\n    return a + b\n```",
			want:     "def add(a, b):\n    return a + b\n",
		},
		{
			name:     "fence with prose around it",
			response: "Here is the fixed file:\n\n```python\nx = 1\n```\n\nAll issues resolved.",
			want:     "x = 1\n",
		},
		{
			name:     "longest block wins",
			response: "```\nx = 1\n```\nand the full file:\n```python\nimport math\n\nx = math.pi\n```",
			want:     "import math\n\nx = math.pi\n",
		},
		{
			name:     "unterminated fence",
			response: "```go\npackage calc\n\nfunc Add() {}\n",
			want:     "package calc\n\nfunc Add() {}\n",
		},
		{
			name:     "indentation preserved",
			response: "```python\n\n    x = 1\n```",
			want:     "    x = 1\n",
		},
		{
			name:     "empty",
			response: "  \n ",
			want:     "",
		},
		{
			name:     "empty fence",
			response: "```python\n```",
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractCode(tt.response); got != tt.want {
				t.Errorf("ExtractCode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSafeTruncateString(t *testing.T) {
	if got := safeTruncateString("short", 100); got != "short" {
		t.Errorf("Expected no truncation, got %q", got)
	}

	s := strings.Repeat("x", 150)
	if got := safeTruncateString(s, 135); len(got) != 135 {
		t.Errorf("Expected 135 bytes, got %d", len(got))
	}

	// Three-byte runes must not be split
	s = strings.Repeat("€", 10)
	got := safeTruncateString(s, 10)
	if got != strings.Repeat("€", 3) {
		t.Errorf("Expected three whole runes, got %q", got)
	}
}

func TestSafeTruncateTail(t *testing.T) {
	if got := safeTruncateTail("short", 100); got != "short" {
		t.Errorf("Expected no truncation, got %q", got)
	}

	// 30 bytes; the last 10 start mid-rune
	s := strings.Repeat("€", 10)
	if got := safeTruncateTail(s, 10); got != strings.Repeat("€", 3) {
		t.Errorf("Expected three whole runes, got %q", got)
	}
}

func TestBuildJudgePrompt_TruncatesMultibyteOutput(t *testing.T) {
	output := "x" + strings.Repeat("é", maxPromptOutput)
	prompt := buildJudgePrompt("calc.py", output, nil)

	if !utf8.ValidString(prompt) {
		t.Error("Expected the truncated prompt to be valid UTF-8")
	}
	if !strings.Contains(prompt, "[truncated middle section]") {
		t.Error("Expected the middle of the output to be elided")
	}
}
