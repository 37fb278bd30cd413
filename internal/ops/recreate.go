package ops

import (
	"context"
	"strings"

	"github.com/jmorand/pyforge/internal/db"
	"github.com/jmorand/pyforge/internal/errors"
)

// RecreateInput contains parameters for the Recreate operation.
type RecreateInput struct {
	Name string
}

// RecreateOutput contains the result of the Recreate operation.
type RecreateOutput struct {
	Project     ProjectSummary `json:"project"`
	Reinstalled []string       `json:"reinstalled,omitempty"`
}

// Recreate deletes and rebuilds the project's environment, then reinstalls
// its declared dependencies. The repair path for a stale or failed env.
func Recreate(ctx context.Context, d *Deps, input RecreateInput) (*RecreateOutput, error) {
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

	if err := d.Env.Remove(ctx, p); err != nil {
		return nil, err
	}
	if err := d.Env.Ensure(ctx, p); err != nil {
		return nil, err
	}

	out := &RecreateOutput{}
	if len(p.Dependencies) > 0 {
		result, err := d.Env.Install(ctx, p, nil)
		if err != nil {
			return nil, err
		}
		if !result.OK {
			return nil, errors.NewDepInstallFailed(p.Dependencies, result.Log)
		}
		out.Reinstalled = result.Packages
	}

	out.Project = summarize(p)
	return out, nil
}
