// Package protocol implements the line-oriented text protocol: splitting raw
// input into command lines and tokens, reassembling lines that span several
// transport reads, and encoding response lines.
package protocol

import "strings"

const (
	LineDelimiter  = '\n'
	TokenDelimiter = " "

	// asciiSpace is the set trimmed from both ends of a line.
	asciiSpace = " \t\n\v\f\r"
)

// SplitLines splits data on the line delimiter, trims surrounding ASCII
// whitespace from each line and drops lines that end up empty.
func SplitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	raw := strings.Split(string(data), string(LineDelimiter))
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.Trim(line, asciiSpace)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// SplitTokens splits a trimmed line on single spaces. Runs of spaces produce
// empty tokens, which count toward the command's argument total.
func SplitTokens(line string) []string {
	return strings.Split(line, TokenDelimiter)
}
