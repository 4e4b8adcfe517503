package marclsp

import "sync"

// Result contains the outcome of validating a record.
type Result struct {
	// Valid is true if no errors were found (warnings are allowed)
	Valid bool `json:"valid"`

	// Diagnostics contains all problems found, ordered by position
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`

	// mu protects concurrent access to Diagnostics
	mu sync.Mutex
}

// NewResult returns an empty, valid result.
func NewResult() *Result {
	return &Result{Valid: true}
}

// Add appends a diagnostic to the result.
// This method is thread-safe.
func (r *Result) Add(d Diagnostic) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Diagnostics = append(r.Diagnostics, d)
	if d.IsError() {
		r.Valid = false
	}
}

// AddAll appends multiple diagnostics to the result.
// This method is thread-safe.
func (r *Result) AddAll(diags []Diagnostic) {
	if len(diags) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.Diagnostics = append(r.Diagnostics, diags...)
	for _, d := range diags {
		if d.IsError() {
			r.Valid = false
			break
		}
	}
}

// Errors returns the number of error diagnostics.
func (r *Result) Errors() int {
	n := 0
	for _, d := range r.Diagnostics {
		if d.IsError() {
			n++
		}
	}
	return n
}

// Warnings returns the number of warning diagnostics.
func (r *Result) Warnings() int {
	n := 0
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityWarning {
			n++
		}
	}
	return n
}

// Sort orders the diagnostics by source position.
func (r *Result) Sort() {
	SortDiagnostics(r.Diagnostics)
}
