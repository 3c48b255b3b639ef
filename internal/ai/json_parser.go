package ai

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

var (
	// ```json {...} ``` with optional language tag and optional newlines
	jsonFenceWholeRegex = regexp.MustCompile(`(?s)^` + "`" + `{3}(?:json|javascript|js)?\s*\n?([\s\S]*?)\n?` + "`" + `{3}\s*$`)
	jsonFenceAnyRegex   = regexp.MustCompile(`(?s)` + "`" + `{3}(?:json|javascript|js)?\s*\n?([\s\S]*?)\n?` + "`" + `{3}`)

	trailingCommaRegex     = regexp.MustCompile(`,(\s*[}\]])`)
	unquotedKeyRegex       = regexp.MustCompile(`([{,]\s*)([a-zA-Z_$][a-zA-Z0-9_$]*)\s*:`)
	singleLineCommentRegex = regexp.MustCompile(`(?m)(?:^|[ \t])//[^"\n]*$`)
	multiLineCommentRegex  = regexp.MustCompile(`(?s)/\*.*?\*/`)

	// Greedy so nested structures are captured whole
	objectRegex = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
	arrayRegex  = regexp.MustCompile(`(?s)\[[\s\S]*\]`)
)

// defaultMaxInputSize bounds what Parse will attempt (10MB)
const defaultMaxInputSize = 10 * 1024 * 1024

// ParseResult is the outcome of Parse. Error is empty on success.
type ParseResult[T any] struct {
	Success      bool
	Data         T
	Error        string
	OriginalText string
	Strategy     string // which strategy succeeded
}

// ParseOptions configures JSON parsing. The zero value enables every cleanup
// strategy, does not log, and applies the default size limit.
type ParseOptions struct {
	Context        string // Prefix for error messages
	DisableCleanup bool   // Only attempt a direct parse
	LogErrors      bool   // Log failed strategies at debug level
	MaxInputSize   int    // Bytes; 0 means the default, negative means unlimited
}

func (o ParseOptions) maxInputSize() int {
	if o.MaxInputSize == 0 {
		return defaultMaxInputSize
	}
	return o.MaxInputSize
}

// Parse decodes model output into T, tolerating the usual formatting noise.
//
// Strategies, in order:
//  1. direct parse
//  2. strip code fences
//  3. drop trailing commas and comments, quote bare keys
//  4. extract the first object or array from mixed prose
func Parse[T any](text string, opts ...ParseOptions) ParseResult[T] {
	var options ParseOptions
	if len(opts) > 0 {
		options = opts[0]
	}

	if limit := options.maxInputSize(); limit > 0 && len(text) > limit {
		return parseError[T](options.Context,
			fmt.Sprintf("input exceeds size limit (%d > %d bytes)", len(text), limit),
			truncate(text, 1000))
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return parseError[T](options.Context, "empty input", text)
	}

	result, err := tryDirectParse[T](trimmed)
	if err == nil {
		return parseOK(result, text, "direct")
	}
	if options.DisableCleanup {
		return parseError[T](options.Context, err.Error(), text)
	}
	if options.LogErrors {
		slog.Debug("direct JSON parse failed, trying cleanup",
			"error", err.Error(),
			"preview", truncate(text, 100),
			"context", options.Context)
	}

	withoutFences := removeCodeFences(trimmed)
	if withoutFences != trimmed {
		if result, err := tryDirectParse[T](withoutFences); err == nil {
			return parseOK(result, text, "fences")
		}
	}

	cleaned := cleanupJSON(withoutFences)
	if result, err := tryDirectParse[T](cleaned); err == nil {
		return parseOK(result, text, "cleanup")
	}

	if extracted := extractJSON(cleaned); extracted != "" {
		if result, err := tryDirectParse[T](extracted); err == nil {
			return parseOK(result, text, "extract")
		}
	}

	return parseError[T](options.Context, "all JSON parsing strategies failed", text)
}

func tryDirectParse[T any](text string) (T, error) {
	var result T
	err := json.Unmarshal([]byte(text), &result)
	return result, err
}

// removeCodeFences strips markdown fences wrapping or embedded in text
func removeCodeFences(text string) string {
	cleaned := jsonFenceWholeRegex.ReplaceAllString(text, "$1")
	if cleaned == text {
		cleaned = jsonFenceAnyRegex.ReplaceAllString(text, "$1")
	}
	if strings.HasPrefix(cleaned, "`") && strings.HasSuffix(cleaned, "`") {
		cleaned = strings.Trim(cleaned, "`")
	}
	return strings.TrimSpace(cleaned)
}

// cleanupJSON repairs trailing commas, comments and unquoted keys.
// Single quotes are left alone: converting them would corrupt apostrophes in values.
func cleanupJSON(text string) string {
	cleaned := strings.TrimSpace(text)
	cleaned = trailingCommaRegex.ReplaceAllString(cleaned, "$1")
	cleaned = unquotedKeyRegex.ReplaceAllString(cleaned, `$1"$2":`)
	cleaned = singleLineCommentRegex.ReplaceAllString(cleaned, "")
	cleaned = multiLineCommentRegex.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}

// extractJSON finds JSON embedded in prose. The leading character decides
// between object and array so [{...},{...}] is not cut down to its first element.
func extractJSON(text string) string {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "[") {
		if match := arrayRegex.FindString(trimmed); match != "" {
			return match
		}
	}
	if match := objectRegex.FindString(text); match != "" {
		return match
	}
	return arrayRegex.FindString(text)
}

func parseOK[T any](data T, text, strategy string) ParseResult[T] {
	return ParseResult[T]{Success: true, Data: data, OriginalText: text, Strategy: strategy}
}

func parseError[T any](context, message, text string) ParseResult[T] {
	if context != "" {
		message = context + ": " + message
	}
	return ParseResult[T]{Error: message, OriginalText: text}
}

// truncate shortens s to maxLen bytes, marking the cut
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return safeTruncateString(s, maxLen) + "..."
}
