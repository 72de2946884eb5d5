// internal/plan/report.go
package plan

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/xkilldash9x/pagesync/internal/faults"
)

// Report records what happened to every executed step of one plan run.
type Report struct {
	RunID     string       `json:"run_id"`
	Plan      string       `json:"plan"`
	URL       string       `json:"url,omitempty"`
	StartedAt time.Time    `json:"started_at"`
	Duration  Duration     `json:"duration"`
	Succeeded bool         `json:"succeeded"`
	Steps     []StepResult `json:"steps"`
}

// StepResult is the outcome of one step. State is the terminal lifecycle state.
type StepResult struct {
	Index     int      `json:"index"`
	Label     string   `json:"label"`
	Action    string   `json:"action"`
	State     string   `json:"state"`
	Completed bool     `json:"completed"`
	Error     string   `json:"error,omitempty"`
	Fault     string   `json:"fault,omitempty"`
	Values    []string `json:"values,omitempty"`
	Duration  Duration `json:"duration"`
}

func newReport(p *Plan, now time.Time) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		Plan:      p.Name,
		URL:       p.URL,
		StartedAt: now,
		Succeeded: true,
		Steps:     make([]StepResult, 0, len(p.Steps)),
	}
}

func (r *Report) record(res StepResult, err error) {
	if err != nil {
		res.Error = err.Error()
		res.Fault = faults.Classify(err).String()
		r.Succeeded = false
	}
	r.Steps = append(r.Steps, res)
}

// Timeouts counts steps that ended without observing completion.
func (r *Report) Timeouts() int {
	n := 0
	for _, s := range r.Steps {
		if !s.Completed && s.Error == "" {
			n++
		}
	}
	return n
}

// WriteReports encodes reports as an indented JSON array.
func WriteReports(w io.Writer, reports []*Report) error {
	data, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode reports: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write reports: %w", err)
	}
	return nil
}
