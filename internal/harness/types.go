package harness

import (
	"github.com/roach88/kiln/internal/engine"
)

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all assertions hold.
	Pass bool `json:"pass"`

	// Report is the engine's build report. Nil when the build was
	// rejected before it ran.
	Report *engine.Report `json:"-"`

	// Trace contains the build's trace events in seq order.
	Trace []engine.Event `json:"trace"`

	// Outputs holds every file under the output root after the build,
	// keyed by slash-separated path.
	Outputs map[string]string `json:"outputs"`

	// SetupError is the error that rejected the definition or the graph.
	SetupError string `json:"setup_error,omitempty"`

	// Errors contains assertion failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []engine.Event{},
		Outputs: make(map[string]string),
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
