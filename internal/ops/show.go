package ops

import (
	"context"
	"strings"

	"github.com/jmorand/pyforge/internal/db"
	"github.com/jmorand/pyforge/internal/errors"
)

// ShowInput contains parameters for the Show operation.
type ShowInput struct {
	Name string

	// WithSource includes the newest revision's source text.
	WithSource bool
}

// ShowOutput contains the result of the Show operation.
type ShowOutput struct {
	Project ProjectSummary `json:"project"`

	// Revisions is the size of the project's history.
	Revisions int `json:"revisions"`

	// LatestSeq and LatestAccepted describe the newest revision, when any.
	LatestSeq      int  `json:"latest_seq,omitempty"`
	LatestAccepted bool `json:"latest_accepted,omitempty"`

	// BuildInFlight reports an active correction loop.
	BuildInFlight bool `json:"build_in_flight,omitempty"`

	Source string `json:"source,omitempty"`
}

// Show returns one project with its history summary.
func Show(ctx context.Context, d *Deps, input ShowInput) (*ShowOutput, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errors.NewInvalidRequest("name must not be empty")
	}

	p, err := db.GetProjectByName(d.DB, name)
	if err != nil {
		return nil, err
	}

	revs, err := db.ListRevisions(d.DB, p.ID)
	if err != nil {
		return nil, err
	}

	out := &ShowOutput{
		Project:       summarize(p),
		Revisions:     len(revs),
		BuildInFlight: d.buildInFlight(p.Name),
	}
	if len(revs) > 0 {
		latest := revs[len(revs)-1]
		out.LatestSeq = latest.Seq
		out.LatestAccepted = latest.Accepted
		if input.WithSource {
			out.Source = latest.Source
		}
	}
	return out, nil
}
