// Package errors defines the structured error taxonomy of the preview server
// and the compiler diagnostics carried by failed builds.
package errors

import (
	"fmt"
	"strings"
)

// Diagnostic is a single message reported by the bundler for a failed build.
type Diagnostic struct {
	Text     string   `json:"text"`
	File     string   `json:"file,omitempty"`
	Line     int      `json:"line,omitempty"`
	Column   int      `json:"column,omitempty"`
	LineText string   `json:"line_text,omitempty"`
	Notes    []string `json:"notes,omitempty"`
}

// String renders the diagnostic in the usual file:line:column form.
func (d Diagnostic) String() string {
	if d.File == "" {
		return d.Text
	}
	return fmt.Sprintf("%s:%d:%d: %s", d.File, d.Line, d.Column, d.Text)
}

// FormatDiagnostics renders diagnostics for terminal output, one block per message.
func FormatDiagnostics(diagnostics []Diagnostic) string {
	if len(diagnostics) == 0 {
		return ""
	}

	var b strings.Builder
	for i, d := range diagnostics {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("✘ ")
		b.WriteString(d.String())
		b.WriteString("\n")

		if d.LineText != "" {
			fmt.Fprintf(&b, "    %d | %s\n", d.Line, d.LineText)
			if d.Column >= 0 {
				gutter := len(fmt.Sprintf("    %d | ", d.Line))
				b.WriteString(strings.Repeat(" ", gutter+d.Column))
				b.WriteString("^\n")
			}
		}

		for _, note := range d.Notes {
			b.WriteString("  note: ")
			b.WriteString(note)
			b.WriteString("\n")
		}
	}

	return b.String()
}
