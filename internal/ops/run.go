package ops

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jmorand/pyforge/internal/db"
	"github.com/jmorand/pyforge/internal/errors"
	"github.com/jmorand/pyforge/internal/runner"
)

// RunInput contains parameters for the Run operation.
type RunInput struct {
	Name string

	// TimeoutSecs overrides the configured run timeout when positive.
	TimeoutSecs int
}

// RunOutput contains the result of the Run operation.
type RunOutput struct {
	Project ProjectSummary `json:"project"`
	Run     *RunReport     `json:"run"`
	Success bool           `json:"success"`
}

// Run executes the project's entry script once, with no generation and no
// correction. The environment is created on demand if missing.
func Run(ctx context.Context, d *Deps, input RunInput) (*RunOutput, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errors.NewInvalidRequest("name must not be empty")
	}

	p, err := db.GetProjectByName(d.DB, name)
	if err != nil {
		return nil, err
	}
	if d.buildInFlight(p.Name) {
		return nil, errors.NewBuildInProgress(p.Name)
	}
	if _, err := os.Stat(p.EntryScriptPath()); err != nil {
		return nil, errors.NewInvalidRequest(
			fmt.Sprintf("project %q has no %s yet; build it first", p.Name, p.EntryScript))
	}

	if err := d.Env.Ensure(ctx, p); err != nil {
		return nil, err
	}

	timeout := time.Duration(input.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = time.Duration(d.Cfg.RunTimeoutSecs) * time.Second
	}
	outcome, err := d.Run.Run(ctx, runner.Spec{
		Command: []string{p.PythonPath(), p.EntryScript},
		Dir:     p.RootPath,
		Timeout: timeout,
	}, d.logf())
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if outcome.Cancelled {
		return nil, errors.NewCancelled(p.Name)
	}

	return &RunOutput{
		Project: summarize(p),
		Run:     report(outcome),
		Success: outcome.Success(),
	}, nil
}
