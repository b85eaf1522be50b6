package harness

import (
	"strings"
	"sync"

	"github.com/roach88/phonebridge/internal/diag"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expect clause and assertion matched.
	Pass bool `json:"pass"`

	// Trace holds one human-readable line per observable event, in order:
	// step results, async callbacks, diagnostics and the final modem log.
	// Compared byte for byte against golden files.
	Trace []string `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Diagnostics is everything the worker and unlocker recorded.
	Diagnostics []diag.Diagnostic `json:"diagnostics,omitempty"`

	mu sync.Mutex
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []string{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a trace line. Safe to call from worker callbacks.
func (r *Result) AddTrace(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Trace = append(r.Trace, line)
}

// TraceText renders the trace as newline-terminated lines.
func (r *Result) TraceText() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Trace) == 0 {
		return ""
	}
	return strings.Join(r.Trace, "\n") + "\n"
}
