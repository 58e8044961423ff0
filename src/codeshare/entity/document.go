// Package entity contains the domain types for the codeshare daemon.
package entity

import (
	"strings"
	"unicode/utf8"
)

// DocumentID is the path-like string that uniquely names a tracked buffer
// within an editing session. IDs are workspace-relative paths as reported
// by the editor integration.
type DocumentID string

// Document is the state of a single tracked buffer.
type Document struct {
	ID DocumentID `json:"filename" zap:"filename"`
	// Content is the full text as of the last broadcast. It is the diff
	// baseline for the next patch, never an uncommitted edit still sitting
	// inside the debounce window.
	Content  string `json:"content" zap:"-"`
	Language string `json:"language" zap:"language"`
}

// Position is a zero-based line/column pair within a document.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Selection is an ephemeral cursor range. It is broadcast as-is and never
// retained between events.
type Selection struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// normalized returns the selection with start ordered before end. Editors
// report anchor and active positions, so a selection made upward or
// leftward arrives inverted.
func (s Selection) normalized() Selection {
	if s.End.Row < s.Start.Row || (s.End.Row == s.Start.Row && s.End.Col < s.Start.Col) {
		return Selection{Start: s.End, End: s.Start}
	}
	return s
}

// Lines returns the inclusive one-based line range covered by the
// selection, for viewers that render line numbers.
func (s Selection) Lines() []int {
	s = s.normalized()
	lines := make([]int, 0, s.End.Row-s.Start.Row+1)
	for row := s.Start.Row; row <= s.End.Row; row++ {
		lines = append(lines, row+1)
	}
	return lines
}

// TextIn returns the substring of content covered by the selection.
// Out-of-range positions are clamped rather than treated as errors, since
// selection events can race behind content updates.
func (s Selection) TextIn(content string) string {
	s = s.normalized()
	lines := strings.SplitAfter(content, "\n")

	startRow, startCol := clampPosition(lines, s.Start)
	endRow, endCol := clampPosition(lines, s.End)
	if startRow > endRow || (startRow == endRow && startCol >= endCol) {
		return ""
	}

	var b strings.Builder
	for row := startRow; row <= endRow; row++ {
		line := lines[row]
		from, to := 0, len(line)
		if row == startRow {
			from = startCol
		}
		if row == endRow {
			to = endCol
		}
		b.WriteString(line[from:to])
	}
	return b.String()
}

func clampPosition(lines []string, p Position) (row, col int) {
	row, col = p.Row, p.Col
	if row < 0 {
		return 0, 0
	}
	if row >= len(lines) {
		row = len(lines) - 1
		col = len(lines[row])
		return row, col
	}
	if col > len(lines[row]) {
		col = len(lines[row])
	}
	if col < 0 {
		col = 0
	}
	// Columns are byte offsets; back off to a rune boundary so the
	// extracted text is always valid UTF-8.
	for col > 0 && col < len(lines[row]) && !utf8.RuneStart(lines[row][col]) {
		col--
	}
	return row, col
}
