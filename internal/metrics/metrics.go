package metrics

import (
	"bufio"
	"strings"

	"github.com/Hekzory/CommentLLM/internal/walker"
)

// Metrics represents line metrics for a file
type Metrics struct {
	Lines        int // Physical lines
	LOC          int // Lines of code
	CommentLines int // Lines that are entirely comment
	BlankLines   int // Empty or whitespace-only lines
}

// CommentRatio returns the share of non-blank lines that are comments, in percent
func (m *Metrics) CommentRatio() float64 {
	total := m.LOC + m.CommentLines
	if total == 0 {
		return 0
	}
	return float64(m.CommentLines) / float64(total) * 100
}

type blockComment struct {
	start, end string
}

type commentSyntax struct {
	line   []string
	blocks []blockComment
}

var (
	cLike = commentSyntax{
		line:   []string{"//"},
		blocks: []blockComment{{"/*", "*/"}},
	}
	hashLike = commentSyntax{
		line:   []string{"#"},
		blocks: []blockComment{{`"""`, `"""`}, {"'''", "'''"}},
	}
)

// syntaxes maps an extension to its comment syntax. Unknown extensions fall
// back to C-style comments.
var syntaxes = map[string]commentSyntax{
	"py": hashLike,
	"rb": {line: []string{"#"}, blocks: []blockComment{{"=begin", "=end"}}},
	"sh": {line: []string{"#"}},
}

// CalculateMetrics calculates all metrics for content stored at path. The
// path only selects the comment syntax.
func CalculateMetrics(path, content string) *Metrics {
	syntax, ok := syntaxes[walker.Extension(path)]
	if !ok {
		syntax = cLike
	}

	m := &Metrics{}
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	// closing marker of the block comment we are inside, if any
	inBlock := ""
	for scanner.Scan() {
		m.Lines++
		line := strings.TrimSpace(scanner.Text())

		if inBlock != "" {
			m.CommentLines++
			if strings.Contains(line, inBlock) {
				inBlock = ""
			}
			continue
		}
		if line == "" {
			m.BlankLines++
			continue
		}
		if isLineComment(line, syntax) {
			m.CommentLines++
			continue
		}
		if end, ok := opensBlock(line, syntax); ok {
			m.CommentLines++
			inBlock = end
			continue
		}
		m.LOC++
	}
	return m
}

func isLineComment(line string, syntax commentSyntax) bool {
	for _, prefix := range syntax.line {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// opensBlock reports whether line starts a block comment. The returned
// marker is empty when the block closes on the same line.
func opensBlock(line string, syntax commentSyntax) (string, bool) {
	for _, block := range syntax.blocks {
		if !strings.HasPrefix(line, block.start) {
			continue
		}
		if strings.Contains(line[len(block.start):], block.end) {
			return "", true
		}
		return block.end, true
	}
	return "", false
}

// CalculateCoverage returns the percentage of sent files that came back
func CalculateCoverage(returned, sent int) float64 {
	if sent == 0 {
		return 0
	}
	return float64(returned) / float64(sent) * 100
}

// CalculateDeltaMetrics calculates the change between the original and the commented file.
// locDelta is the percentage change in lines of code, which should stay at zero when
// only comments were added; a zero baseline gives 0 if nothing changed and 100 otherwise.
// commentDelta is the number of comment lines added (negative if removed).
func CalculateDeltaMetrics(original, commented *Metrics) (locDelta float64, commentDelta int) {
	commentDelta = commented.CommentLines - original.CommentLines
	switch {
	case original.LOC == commented.LOC:
		locDelta = 0
	case original.LOC == 0:
		locDelta = 100
	default:
		locDelta = float64(commented.LOC-original.LOC) / float64(original.LOC) * 100
	}
	return locDelta, commentDelta
}
