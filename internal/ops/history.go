package ops

import (
	"context"
	"strings"

	"github.com/jmorand/pyforge/internal/db"
	"github.com/jmorand/pyforge/internal/errors"
)

// HistoryInput contains parameters for the History operation.
type HistoryInput struct {
	Name string

	// WithSource includes full source text per revision. Off by default;
	// histories get large.
	WithSource bool

	// Seq selects a single revision when positive.
	Seq int
}

// RevisionSummary is the JSON-facing projection of one revision.
type RevisionSummary struct {
	Seq       int    `json:"seq"`
	Origin    string `json:"origin"`
	Note      string `json:"note,omitempty"`
	Accepted  bool   `json:"accepted"`
	CreatedAt int64  `json:"created_at"`
	Source    string `json:"source,omitempty"`
}

// HistoryOutput contains the result of the History operation.
type HistoryOutput struct {
	Project   string            `json:"project"`
	Revisions []RevisionSummary `json:"revisions"`
	Total     int               `json:"total"`
}

// History returns the project's revision history in order.
func History(ctx context.Context, d *Deps, input HistoryInput) (*HistoryOutput, error) {
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

	out := &HistoryOutput{Project: p.Name}
	for _, r := range revs {
		if input.Seq > 0 && r.Seq != input.Seq {
			continue
		}
		s := RevisionSummary{
			Seq:       r.Seq,
			Origin:    string(r.Origin),
			Note:      r.Note,
			Accepted:  r.Accepted,
			CreatedAt: r.CreatedAt,
		}
		// A single-revision request always carries its source.
		if input.WithSource || input.Seq > 0 {
			s.Source = r.Source
		}
		out.Revisions = append(out.Revisions, s)
	}
	if input.Seq > 0 && len(out.Revisions) == 0 {
		return nil, errors.NewNotFound(name)
	}
	out.Total = len(out.Revisions)
	return out, nil
}
