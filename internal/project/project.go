package project

import (
	"path/filepath"
	"runtime"
)

// DefaultEntryScript is the script name the runner executes unless a
// revision rewrites it.
const DefaultEntryScript = "main.py"

// EnvStatus tracks the lifecycle of a project's isolated environment.
// Only the environment manager transitions this field.
type EnvStatus string

const (
	EnvAbsent   EnvStatus = "absent"
	EnvCreating EnvStatus = "creating"
	EnvReady    EnvStatus = "ready"
	EnvStale    EnvStatus = "stale"
	EnvFailed   EnvStatus = "failed"
)

// Project is the persisted description of one generated Python project.
// One project owns exactly one environment under RootPath.
type Project struct {
	// ID is a ULID that uniquely identifies this project
	ID string

	// Name is the unique human-readable identifier; immutable after creation
	Name string

	// RootPath is the directory owning the project's files and environment
	RootPath string

	// EntryScript is the file the runner executes, relative to RootPath
	EntryScript string

	// Dependencies is the set of package names known to be required.
	// It grows only when an install fully succeeds.
	Dependencies []string

	// EnvStatus is owned exclusively by the environment manager
	EnvStatus EnvStatus

	// CreatedAt is the Unix timestamp when the project was created
	CreatedAt int64

	// UpdatedAt is the Unix timestamp when the project was last updated
	UpdatedAt int64
}

// RevisionOrigin describes what produced a revision.
type RevisionOrigin string

const (
	OriginPrompt     RevisionOrigin = "prompt"     // initial generation from a user prompt
	OriginCorrection RevisionOrigin = "correction" // model fix after a failed run
	OriginManual     RevisionOrigin = "manual"     // user-supplied source
)

// Revision is one generated or corrected version of the project's source.
// Revisions are append-only; the entry script on disk always matches the
// newest one.
type Revision struct {
	ID        string
	ProjectID string

	// Seq is the 1-based position in the project's history
	Seq int

	Source string
	Origin RevisionOrigin

	// Note carries the originating prompt or the diagnosis that triggered
	// the correction
	Note string

	// Accepted marks the revision whose run exited 0
	Accepted bool

	CreatedAt int64
}

// VenvPath returns the project's virtual environment directory.
func (p *Project) VenvPath() string {
	return filepath.Join(p.RootPath, ".venv")
}

// VenvIndicator returns the file whose presence marks a created environment.
func (p *Project) VenvIndicator() string {
	return filepath.Join(p.VenvPath(), "pyvenv.cfg")
}

// PythonPath returns the interpreter bound to the project's environment.
func (p *Project) PythonPath() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(p.VenvPath(), "Scripts", "python.exe")
	}
	return filepath.Join(p.VenvPath(), "bin", "python")
}

// EntryScriptPath returns the absolute path of the entry script.
func (p *Project) EntryScriptPath() string {
	return filepath.Join(p.RootPath, p.EntryScript)
}

// HasDependency reports whether name is already declared.
func (p *Project) HasDependency(name string) bool {
	for _, d := range p.Dependencies {
		if d == name {
			return true
		}
	}
	return false
}
