package ops

import (
	"context"
	"strings"

	"github.com/jmorand/pyforge/internal/errors"
)

// BuildInput contains parameters for the Build operation.
type BuildInput struct {
	Name string

	// Prompt is the natural-language goal. Empty means re-run and correct
	// the project's existing source.
	Prompt string
}

// BuildOutput contains the result of the Build operation.
type BuildOutput struct {
	Project     ProjectSummary `json:"project"`
	State       string         `json:"state"`
	Corrections int            `json:"corrections"`
	RevisionSeq int            `json:"revision_seq,omitempty"`
	Accepted    bool           `json:"accepted"`
	Run         *RunReport     `json:"run,omitempty"`
}

// Build runs the full generate/run/correct cycle for the project. Terminal
// failure states (budget exhausted, cancelled, environment failure) surface
// as errors; the CLI and MCP layers render them with their details.
func Build(ctx context.Context, d *Deps, input BuildInput) (*BuildOutput, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errors.NewInvalidRequest("name must not be empty")
	}

	result, err := d.Loop.Build(ctx, name, strings.TrimSpace(input.Prompt))
	if err != nil {
		return nil, err
	}

	out := &BuildOutput{
		Project:     summarize(result.Project),
		State:       string(result.State),
		Corrections: result.Corrections,
		Run:         report(result.Outcome),
	}
	if result.Revision != nil {
		out.RevisionSeq = result.Revision.Seq
		out.Accepted = result.Revision.Accepted
	}
	return out, nil
}

// CancelBuild requests cancellation of an in-flight build.
func CancelBuild(d *Deps, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.NewInvalidRequest("name must not be empty")
	}
	if !d.Loop.Cancel(name) {
		return errors.NewNotFound(name + " (no build in flight)")
	}
	return nil
}
