package ops

import (
	"context"

	"github.com/jmorand/pyforge/internal/db"
)

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Projects []ProjectSummary `json:"projects"`
	Total    int              `json:"total"`
}

// List returns all projects, most recently updated first.
func List(ctx context.Context, d *Deps) (*ListOutput, error) {
	projects, err := db.ListProjects(d.DB)
	if err != nil {
		return nil, err
	}

	out := &ListOutput{
		Projects: make([]ProjectSummary, 0, len(projects)),
		Total:    len(projects),
	}
	for _, p := range projects {
		out.Projects = append(out.Projects, summarize(p))
	}
	return out, nil
}
