package marclsp

import (
	"fmt"
	"sort"
)

// Severity classifies a diagnostic.
type Severity string

const (
	// SeverityError indicates a structural problem in the record.
	SeverityError Severity = "error"
	// SeverityWarning indicates an advisory problem that should be reviewed.
	SeverityWarning Severity = "warning"
)

// Diagnostic is a positioned message produced by the parser or the
// validation engine. Lines and columns are zero-based; the column span is
// half-open [StartColumn, EndColumn).
type Diagnostic struct {
	Severity    Severity `json:"severity"`
	Message     string   `json:"message"`
	Line        int      `json:"line"`
	StartColumn int      `json:"startColumn"`
	EndColumn   int      `json:"endColumn"`
}

// IsError returns true for error-severity diagnostics.
func (d Diagnostic) IsError() bool {
	return d.Severity == SeverityError
}

// String returns a human-readable representation of the diagnostic.
func (d Diagnostic) String() string {
	return fmt.Sprintf("%d:%d: %s: %s", d.Line+1, d.StartColumn+1, d.Severity, d.Message)
}

// DiagnosticBuilder provides a fluent API for building diagnostics.
type DiagnosticBuilder struct {
	diag Diagnostic
}

// NewDiagnostic creates a new DiagnosticBuilder.
func NewDiagnostic(severity Severity, message string) *DiagnosticBuilder {
	return &DiagnosticBuilder{
		diag: Diagnostic{
			Severity: severity,
			Message:  message,
		},
	}
}

// Error creates an error diagnostic builder.
func Error(message string) *DiagnosticBuilder {
	return NewDiagnostic(SeverityError, message)
}

// Warning creates a warning diagnostic builder.
func Warning(message string) *DiagnosticBuilder {
	return NewDiagnostic(SeverityWarning, message)
}

// Span sets the source position of the diagnostic.
func (b *DiagnosticBuilder) Span(line, startColumn, endColumn int) *DiagnosticBuilder {
	b.diag.Line = line
	b.diag.StartColumn = startColumn
	b.diag.EndColumn = endColumn
	return b
}

// Build returns the constructed diagnostic.
func (b *DiagnosticBuilder) Build() Diagnostic {
	return b.diag
}

// SortDiagnostics orders diagnostics by (line, column) ascending for
// stable, reproducible output. On an exact position tie errors sort
// before warnings.
func SortDiagnostics(diags []Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		a, b := diags[i], diags[j]
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.StartColumn != b.StartColumn {
			return a.StartColumn < b.StartColumn
		}
		if a.Severity != b.Severity {
			return a.Severity == SeverityError
		}
		return false
	})
}
