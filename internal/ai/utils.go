package ai

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Code fences around a whole response, with an optional language tag
var (
	codeBlockRegex     = regexp.MustCompile("(?s)```[a-zA-Z0-9_+-]*[ \t]*\r?\n(.*?)```")
	openFenceOnlyRegex = regexp.MustCompile("(?s)^```[a-zA-Z0-9_+-]*[ \t]*\r?\n(.*)$")
)

// ExtractCode returns the source code in a model response. If the response
// contains fenced blocks the longest one wins; an unterminated opening fence
// is stripped. Otherwise the trimmed response is returned as-is.
// The result ends with exactly one newline, or is empty.
func ExtractCode(response string) string {
	text := strings.TrimSpace(response)
	if text == "" {
		return ""
	}

	code := text
	if blocks := codeBlockRegex.FindAllStringSubmatch(text, -1); len(blocks) > 0 {
		code = blocks[0][1]
		for _, b := range blocks[1:] {
			if len(b[1]) > len(code) {
				code = b[1]
			}
		}
	} else if m := openFenceOnlyRegex.FindStringSubmatch(text); m != nil {
		code = m[1]
	}

	code = strings.TrimRight(code, " \t\r\n")
	code = strings.TrimLeft(code, "\r\n")
	if code == "" {
		return ""
	}
	return code + "\n"
}

// safeTruncateString truncates a string to maxLen bytes while preserving UTF-8 encoding
func safeTruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}

	truncated := s[:maxLen]
	// A UTF-8 sequence is at most 4 bytes
	for i := 0; i < 4 && len(truncated) > 0; i++ {
		if utf8.ValidString(truncated) {
			return truncated
		}
		truncated = truncated[:len(truncated)-1]
	}
	return ""
}

// safeTruncateTail keeps the last maxLen bytes of s, starting on a rune boundary
func safeTruncateTail(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	start := len(s) - maxLen
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return s[start:]
}
