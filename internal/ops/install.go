package ops

import (
	"context"
	"strings"

	"github.com/jmorand/pyforge/internal/db"
	"github.com/jmorand/pyforge/internal/errors"
)

// InstallInput contains parameters for the Install operation.
type InstallInput struct {
	Name     string
	Packages []string
}

// InstallOutput contains the result of the Install operation.
type InstallOutput struct {
	Project   ProjectSummary `json:"project"`
	Installed []string       `json:"installed"`
}

// Install adds packages to the project's environment and, on success, to its
// declared dependency set.
func Install(ctx context.Context, d *Deps, input InstallInput) (*InstallOutput, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errors.NewInvalidRequest("name must not be empty")
	}

	packages := make([]string, 0, len(input.Packages))
	for _, pkg := range input.Packages {
		if pkg = strings.TrimSpace(pkg); pkg != "" {
			packages = append(packages, pkg)
		}
	}
	if len(packages) == 0 {
		return nil, errors.NewInvalidRequest("no packages given")
	}

	p, err := db.GetProjectByName(d.DB, name)
	if err != nil {
		return nil, err
	}
	if d.buildInFlight(p.Name) {
		return nil, errors.NewBuildInProgress(p.Name)
	}

	result, err := d.Env.Install(ctx, p, packages)
	if err != nil {
		return nil, err
	}
	if !result.OK {
		return nil, errors.NewDepInstallFailed(packages, result.Log)
	}

	return &InstallOutput{
		Project:   summarize(p),
		Installed: packages,
	}, nil
}
