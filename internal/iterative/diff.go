package iterative

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"
)

// maxDiffBytes caps the unified diff attached to remediation events
const maxDiffBytes = 16 * 1024

// ContentDiff summarizes the change between two versions of a file.
type ContentDiff struct {
	LinesBefore int
	LinesAfter  int
	// Inserted and Deleted count changed lines; a modified line counts once in each
	Inserted int
	Deleted  int
	// Unified is the unified diff text, truncated to maxDiffBytes
	Unified string
}

// ChangedLines returns the total number of inserted and deleted lines
func (d ContentDiff) ChangedLines() int {
	return d.Inserted + d.Deleted
}

// DiffContent computes a line diff between before and after for the file at path
func DiffContent(path, before, after string) ContentDiff {
	d := ContentDiff{
		LinesBefore: countLines(before),
		LinesAfter:  countLines(after),
	}
	if before == after {
		return d
	}

	name := filepath.Base(path)
	edits := myers.ComputeEdits(span.URIFromPath(path), before, after)
	unified := gotextdiff.ToUnified("a/"+name, "b/"+name, before, edits)

	for _, hunk := range unified.Hunks {
		for _, line := range hunk.Lines {
			switch line.Kind {
			case gotextdiff.Insert:
				d.Inserted++
			case gotextdiff.Delete:
				d.Deleted++
			}
		}
	}

	text := fmt.Sprint(unified)
	if len(text) > maxDiffBytes {
		text = truncateAtRune(text, maxDiffBytes) + "\n... (diff truncated)\n"
	}
	d.Unified = text
	return d
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	return strings.Count(strings.TrimSuffix(text, "\n"), "\n") + 1
}

// truncateAtRune cuts s to at most n bytes without splitting a UTF-8 sequence
func truncateAtRune(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
