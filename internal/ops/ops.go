// Package ops implements the application operations shared by the CLI and
// the MCP server. Each operation takes an input struct, validates it, and
// returns an output struct ready for JSON encoding.
package ops

import (
	"context"
	"database/sql"

	"github.com/jmorand/pyforge/internal/config"
	"github.com/jmorand/pyforge/internal/loop"
	"github.com/jmorand/pyforge/internal/project"
	"github.com/jmorand/pyforge/internal/runner"
)

// EnvManager is the slice of the environment manager operations need.
type EnvManager interface {
	loop.EnvManager
	Remove(ctx context.Context, p *project.Project) error
}

// Builder runs and cancels correction-loop builds.
type Builder interface {
	Build(ctx context.Context, name, prompt string) (*loop.Result, error)
	Cancel(name string) bool
	Active() []string
}

// Deps bundles the collaborators operations draw on. The CLI and MCP server
// construct one Deps at startup and share it across requests.
type Deps struct {
	DB   *sql.DB
	Cfg  *config.Config
	Env  EnvManager
	Loop Builder
	Run  loop.ScriptRunner
	Log  runner.Logf

	// ProjectsDir is where new project directories are created.
	ProjectsDir string
}

// logf returns a usable log sink even when none was configured.
func (d *Deps) logf() runner.Logf {
	if d.Log != nil {
		return d.Log
	}
	return func(string) {}
}

// ProjectSummary is the JSON-facing projection of a project record.
type ProjectSummary struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	RootPath     string   `json:"root_path"`
	EntryScript  string   `json:"entry_script"`
	Dependencies []string `json:"dependencies,omitempty"`
	EnvStatus    string   `json:"env_status"`
	CreatedAt    int64    `json:"created_at"`
	UpdatedAt    int64    `json:"updated_at"`
}

func summarize(p *project.Project) ProjectSummary {
	return ProjectSummary{
		ID:           p.ID,
		Name:         p.Name,
		RootPath:     p.RootPath,
		EntryScript:  p.EntryScript,
		Dependencies: p.Dependencies,
		EnvStatus:    string(p.EnvStatus),
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

// RunReport is the JSON-facing projection of a run outcome.
type RunReport struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
	TimedOut bool   `json:"timed_out,omitempty"`
	Duration string `json:"duration"`
}

func report(o *runner.Outcome) *RunReport {
	if o == nil {
		return nil
	}
	return &RunReport{
		ExitCode: o.ExitCode,
		Stdout:   o.Stdout,
		Stderr:   o.Stderr,
		TimedOut: o.TimedOut,
		Duration: o.Duration.String(),
	}
}

// buildInFlight reports whether a build is currently running for name.
func (d *Deps) buildInFlight(name string) bool {
	if d.Loop == nil {
		return false
	}
	for _, active := range d.Loop.Active() {
		if active == name {
			return true
		}
	}
	return false
}
