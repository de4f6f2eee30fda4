package assistant

import "strings"

// TerminalPhrase marks the assistant's final verdict. Matching is case-sensitive.
const TerminalPhrase = "Based on my analysis"

// IsTerminal reports whether reply contains TerminalPhrase anywhere.
func IsTerminal(reply string) bool {
	return strings.Contains(reply, TerminalPhrase)
}
