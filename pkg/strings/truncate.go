// Package strings holds small string helpers shared by CLI output.
package strings

import (
	"strings"
)

// DefaultCellMaxLen bounds free-text columns such as Slack team names.
const DefaultCellMaxLen = 32

// minCellLen leaves room for one character plus the ellipsis.
const minCellLen = 4

// TruncateCell collapses whitespace so the value fits on one table row and
// cuts it to maxLen runes, ending in "..." when shortened.
func TruncateCell(s string, maxLen int) string {
	if maxLen < minCellLen {
		maxLen = minCellLen
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
