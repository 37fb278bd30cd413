package ops

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jmorand/pyforge/internal/db"
	"github.com/jmorand/pyforge/internal/errors"
	"github.com/jmorand/pyforge/internal/project"
)

// DeleteInput contains parameters for the Delete operation.
type DeleteInput struct {
	Name string

	// KeepFiles leaves the project directory on disk; only the registry
	// entry and history go away.
	KeepFiles bool
}

// DeleteOutput contains the result of the Delete operation.
type DeleteOutput struct {
	Deleted      bool   `json:"deleted"`
	ID           string `json:"id"`
	FilesRemoved bool   `json:"files_removed"`
}

// Delete removes a project: its registry row, its history, and (unless
// KeepFiles) its directory with the environment inside.
func Delete(ctx context.Context, d *Deps, input DeleteInput) (*DeleteOutput, error) {
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

	if err := db.DeleteProject(d.DB, p.ID); err != nil {
		return nil, err
	}

	out := &DeleteOutput{Deleted: true, ID: p.ID}
	if input.KeepFiles {
		return out, nil
	}

	// Refuse to remove anything that escaped the projects directory.
	if !project.ContainedIn(d.ProjectsDir, p.RootPath) {
		return nil, errors.NewInternal(
			fmt.Errorf("project directory %q is outside %q; not removing files", p.RootPath, d.ProjectsDir))
	}
	if err := os.RemoveAll(p.RootPath); err != nil {
		return nil, errors.NewInternal(err)
	}
	out.FilesRemoved = true
	return out, nil
}
