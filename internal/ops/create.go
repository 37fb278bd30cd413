package ops

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmorand/pyforge/internal/db"
	"github.com/jmorand/pyforge/internal/errors"
	"github.com/jmorand/pyforge/internal/project"
)

// CreateInput contains parameters for the Create operation.
type CreateInput struct {
	Name string
}

// CreateOutput contains the result of the Create operation.
type CreateOutput struct {
	Project ProjectSummary `json:"project"`
}

// Create registers a new empty project and its directory. The environment is
// not created here; the first build or an explicit recreate does that.
func Create(ctx context.Context, d *Deps, input CreateInput) (*CreateOutput, error) {
	name, err := project.SanitizeName(input.Name)
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	p := &project.Project{
		ID:          ulid.Make().String(),
		Name:        name,
		RootPath:    filepath.Join(d.ProjectsDir, name),
		EntryScript: project.DefaultEntryScript,
		EnvStatus:   project.EnvAbsent,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := db.InsertProject(d.DB, p); err != nil {
		if err == db.ErrUniqueConstraint {
			return nil, errors.NewNameAlreadyExists(name)
		}
		return nil, err
	}

	if err := os.MkdirAll(p.RootPath, 0700); err != nil {
		// Roll the registration back so a retry can succeed.
		_ = db.DeleteProject(d.DB, p.ID)
		return nil, errors.NewInternal(err)
	}

	return &CreateOutput{Project: summarize(p)}, nil
}
