// Package audit asks a text-completion provider to review captured shell
// history.
package audit

import (
	"strings"
	"time"

	"github.com/acolita/hydra-sh/internal/history"
)

// FormatEntry renders one history entry as a prompt line.
func FormatEntry(e history.Entry) string {
	return "- [DATE: " + e.Timestamp.UTC().Format(time.RFC3339) + "] [ CMD: " + e.Cmd +
		" ] [ TYPE: " + e.ExecutionType + " ] " + e.Output
}

// FormatHistory renders entries one per line, in the order given.
func FormatHistory(entries []history.Entry) string {
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = FormatEntry(e)
	}
	return strings.Join(lines, "\n")
}

// UserPrompt builds the operator part of the request.
func UserPrompt(purpose, comment string, entries []history.Entry) string {
	var b strings.Builder
	b.WriteString("OBJECTIVE: ")
	b.WriteString(purpose)
	b.WriteString("\n")
	if comment != "" {
		b.WriteString("ADDITIONAL COMMENT: ")
		b.WriteString(comment)
		b.WriteString("\n")
	}
	b.WriteString("\nCommands run:\n")
	b.WriteString(FormatHistory(entries))
	return b.String()
}
