package engine

import (
	"time"

	"github.com/google/uuid"
)

// StepStatus is the terminal state of one executed step.
type StepStatus string

const (
	StatusCompleted StepStatus = "completed"
	StatusSkipped   StepStatus = "skipped"
	StatusFailed    StepStatus = "failed"
)

// StepOutcome records one step's execution. Composite steps carry their
// children; a step that never started (aborted sequence remainder) has no
// outcome at all.
type StepOutcome struct {
	Name       string         `json:"name,omitempty"`
	Tool       string         `json:"tool"`
	Status     StepStatus     `json:"status"`
	SkipReason string         `json:"skip_reason,omitempty"`
	Output     string         `json:"output,omitempty"`
	Error      string         `json:"error,omitempty"`
	Duration   time.Duration  `json:"duration"`
	Children   []*StepOutcome `json:"children,omitempty"`
}

// ExecutionResult summarizes one engine run.
type ExecutionResult struct {
	RunID         string         `json:"run_id"`
	Recipe        string         `json:"recipe"`
	Success       bool           `json:"success"`
	TotalSteps    int            `json:"total_steps"`
	Completed     int            `json:"completed"`
	Skipped       int            `json:"skipped"`
	Failed        int            `json:"failed"`
	Steps         []*StepOutcome `json:"steps"`
	FilesCreated  []string       `json:"files_created,omitempty"`
	FilesModified []string       `json:"files_modified,omitempty"`
	Warnings      []string       `json:"warnings,omitempty"`
	Errors        []string       `json:"errors,omitempty"`
	StartedAt     time.Time      `json:"started_at"`
	Duration      time.Duration  `json:"duration"`

	// PendingPrompt is set when AI blocks were collected but no
	// non-interactive transport is configured. The caller prints the prompt
	// and re-runs with an answers file; nothing was written in this case.
	PendingPrompt string   `json:"pending_prompt,omitempty"`
	AnswerKeys    []string `json:"answer_keys,omitempty"`
}

// NeedsAnswers reports whether the run stopped to hand an assembled prompt
// back to the caller.
func (r *ExecutionResult) NeedsAnswers() bool { return r.PendingPrompt != "" }

func newResult(recipeName string) *ExecutionResult {
	return &ExecutionResult{
		RunID:     uuid.NewString(),
		Recipe:    recipeName,
		StartedAt: time.Now(),
	}
}

// tally fills the step counters from the outcome tree. Only steps that
// actually entered execution are counted; steps skipped by an aborted
// sequence never produced an outcome.
func (r *ExecutionResult) tally() {
	r.TotalSteps, r.Completed, r.Skipped, r.Failed = 0, 0, 0, 0
	var walk func(outcomes []*StepOutcome)
	walk = func(outcomes []*StepOutcome) {
		for _, o := range outcomes {
			r.TotalSteps++
			switch o.Status {
			case StatusCompleted:
				r.Completed++
			case StatusSkipped:
				r.Skipped++
			case StatusFailed:
				r.Failed++
			}
			walk(o.Children)
		}
	}
	walk(r.Steps)
	r.Success = r.Failed == 0 && len(r.Errors) == 0
}
