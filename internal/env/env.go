// Package env manages one isolated uv virtual environment per project.
// It is the only component that transitions a project's environment status.
package env

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"github.com/jmorand/pyforge/internal/db"
	"github.com/jmorand/pyforge/internal/errors"
	"github.com/jmorand/pyforge/internal/project"
	"github.com/jmorand/pyforge/internal/runner"
)

// envOpTimeout bounds a single uv invocation. Package resolution can be
// slow on cold caches, so this is generous.
const envOpTimeout = 10 * time.Minute

// InstallResult reports a dependency install attempt. On failure Log carries
// the installer's raw diagnostic text; the caller decides whether to retry,
// substitute a package name, or abort.
type InstallResult struct {
	OK       bool
	Packages []string
	Log      string
}

// Manager creates, validates, and populates project environments.
type Manager struct {
	db  *sql.DB
	uv  string
	run *runner.Runner
	log runner.Logf
}

// NewManager returns a manager using the given uv executable. If uvPath is
// empty, uv is discovered from PATH and well-known install locations.
func NewManager(database *sql.DB, uvPath string, sink runner.Logf) (*Manager, error) {
	uv, err := DiscoverUV(uvPath)
	if err != nil {
		return nil, err
	}
	if sink == nil {
		sink = func(string) {}
	}
	return &Manager{db: database, uv: uv, run: runner.New(), log: sink}, nil
}

// UV returns the resolved uv executable path.
func (m *Manager) UV() string {
	return m.uv
}

// DiscoverUV resolves the uv executable. An explicit override wins; otherwise
// PATH is consulted, then the usual standalone-installer locations.
func DiscoverUV(override string) (string, error) {
	if override != "" {
		if _, err := os.Stat(override); err != nil {
			return "", fmt.Errorf("configured uv path %q: %w", override, err)
		}
		return override, nil
	}

	if path, err := exec.LookPath("uv"); err == nil {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	candidates := []string{
		filepath.Join(home, ".local", "bin", "uv"),
		filepath.Join(home, ".cargo", "bin", "uv"),
		"/usr/local/bin/uv",
		"/opt/homebrew/bin/uv",
	}
	for _, c := range candidates {
		if home == "" && c[0] != '/' {
			continue
		}
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}

	return "", fmt.Errorf("uv executable not found; install uv or set uv_path in config")
}

// Ensure makes sure the project's environment exists and is ready.
// Idempotent: a ready environment is returned as-is with no side effects.
func (m *Manager) Ensure(ctx context.Context, p *project.Project) error {
	if _, err := os.Stat(p.VenvIndicator()); err == nil {
		if p.EnvStatus != project.EnvReady {
			if err := m.setStatus(p, project.EnvReady); err != nil {
				return err
			}
		}
		return nil
	}

	if err := m.setStatus(p, project.EnvCreating); err != nil {
		return err
	}

	if err := os.MkdirAll(p.RootPath, 0700); err != nil {
		_ = m.setStatus(p, project.EnvFailed)
		return errors.NewEnvCreateFailed(p.Name, err.Error())
	}

	m.log(fmt.Sprintf("creating environment at %s", p.VenvPath()))
	outcome, err := m.uvCommand(ctx, p.RootPath, "venv", p.VenvPath(), "--seed")
	if err != nil {
		_ = m.setStatus(p, project.EnvFailed)
		return errors.NewEnvCreateFailed(p.Name, err.Error())
	}
	if !outcome.Success() {
		_ = m.setStatus(p, project.EnvFailed)
		return errors.NewEnvCreateFailed(p.Name, combinedLog(outcome))
	}

	// uv can exit 0 without producing a usable venv on some filesystems;
	// trust the indicator file, not the exit code.
	if _, err := os.Stat(p.VenvIndicator()); err != nil {
		_ = m.setStatus(p, project.EnvFailed)
		return errors.NewEnvCreateFailed(p.Name, "environment indicator missing after creation: "+combinedLog(outcome))
	}

	return m.setStatus(p, project.EnvReady)
}

// Install installs the union of the project's declared dependencies and
// names into its environment. On full success the new names are merged into
// the declared set; on failure nothing is mutated and the installer log is
// returned for the caller to act on.
func (m *Manager) Install(ctx context.Context, p *project.Project, names []string) (*InstallResult, error) {
	union := mergeNames(p.Dependencies, names)
	if len(union) == 0 {
		return &InstallResult{OK: true}, nil
	}

	if err := m.Ensure(ctx, p); err != nil {
		return nil, err
	}

	m.log(fmt.Sprintf("installing packages: %v", union))
	args := append([]string{"pip", "install"}, union...)
	outcome, err := m.uvCommand(ctx, p.RootPath, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	if !outcome.Success() {
		if err := m.setStatus(p, project.EnvStale); err != nil {
			return nil, err
		}
		return &InstallResult{OK: false, Packages: union, Log: combinedLog(outcome)}, nil
	}

	merged := mergeNames(p.Dependencies, names)
	if len(merged) != len(p.Dependencies) {
		if err := db.UpdateDependencies(m.db, p.ID, merged); err != nil {
			return nil, err
		}
		p.Dependencies = merged
	}
	if p.EnvStatus != project.EnvReady {
		if err := m.setStatus(p, project.EnvReady); err != nil {
			return nil, err
		}
	}

	return &InstallResult{OK: true, Packages: union, Log: combinedLog(outcome)}, nil
}

// Remove deletes the environment directory and marks the project absent.
// Used only on explicit user request or irrecoverable corruption, never
// automatically.
func (m *Manager) Remove(ctx context.Context, p *project.Project) error {
	if err := os.RemoveAll(p.VenvPath()); err != nil {
		return errors.NewInternal(err)
	}
	return m.setStatus(p, project.EnvAbsent)
}

// setStatus persists and mirrors an environment status transition.
func (m *Manager) setStatus(p *project.Project, status project.EnvStatus) error {
	if err := db.UpdateEnvStatus(m.db, p.ID, status); err != nil {
		return err
	}
	p.EnvStatus = status
	return nil
}

// uvCommand runs uv with the given arguments inside dir, streaming output
// to the manager's log sink.
func (m *Manager) uvCommand(ctx context.Context, dir string, args ...string) (*runner.Outcome, error) {
	spec := runner.Spec{
		Command: append([]string{m.uv}, args...),
		Dir:     dir,
		Timeout: envOpTimeout,
	}
	return m.run.Run(ctx, spec, m.log)
}

// combinedLog joins captured stdout and stderr for diagnostics.
func combinedLog(o *runner.Outcome) string {
	if o.Stdout == "" {
		return o.Stderr
	}
	if o.Stderr == "" {
		return o.Stdout
	}
	return o.Stdout + "\n" + o.Stderr
}

// mergeNames unions two dependency lists, deduplicated and sorted.
func mergeNames(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, name := range list {
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}
