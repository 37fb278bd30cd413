package env

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jmorand/pyforge/internal/db"
	"github.com/jmorand/pyforge/internal/errors"
	"github.com/jmorand/pyforge/internal/project"
)

// fakeUV writes an executable shell script standing in for uv.
func fakeUV(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake uv uses shell scripts")
	}
	path := filepath.Join(t.TempDir(), "uv")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0700); err != nil {
		t.Fatal(err)
	}
	return path
}

func setup(t *testing.T, uvScript string) (*sql.DB, *Manager, *project.Project) {
	t.Helper()
	baseDir := t.TempDir()
	database, err := db.Init(baseDir)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })

	mgr, err := NewManager(database, fakeUV(t, uvScript), nil)
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now().Unix()
	p := &project.Project{
		ID:          "01ENVTEST",
		Name:        "demo",
		RootPath:    filepath.Join(baseDir, "projects", "demo"),
		EntryScript: project.DefaultEntryScript,
		EnvStatus:   project.EnvAbsent,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.InsertProject(database, p); err != nil {
		t.Fatal(err)
	}
	return database, mgr, p
}

// venvScript emulates `uv venv <path> --seed` by dropping the indicator file.
const venvScript = `
if [ "$1" = "venv" ]; then
  mkdir -p "$2" && touch "$2/pyvenv.cfg"
  exit 0
fi
exit 0
`

func TestDiscoverUV_Override(t *testing.T) {
	path := fakeUV(t, "exit 0")
	got, err := DiscoverUV(path)
	if err != nil {
		t.Fatalf("DiscoverUV() error = %v", err)
	}
	if got != path {
		t.Errorf("DiscoverUV() = %q, want %q", got, path)
	}

	if _, err := DiscoverUV("/nonexistent/uv"); err == nil {
		t.Error("DiscoverUV() expected error for missing override")
	}
}

func TestEnsure_CreatesEnvironment(t *testing.T) {
	database, mgr, p := setup(t, venvScript)

	if err := mgr.Ensure(context.Background(), p); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if p.EnvStatus != project.EnvReady {
		t.Errorf("EnvStatus = %q, want ready", p.EnvStatus)
	}
	if _, err := os.Stat(p.VenvIndicator()); err != nil {
		t.Errorf("indicator missing: %v", err)
	}

	// Persisted status must match
	stored, err := db.GetProjectByID(database, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.EnvStatus != project.EnvReady {
		t.Errorf("stored EnvStatus = %q, want ready", stored.EnvStatus)
	}
}

func TestEnsure_Idempotent(t *testing.T) {
	_, mgr, p := setup(t, venvScript)

	if err := mgr.Ensure(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	created, err := os.Stat(p.VenvIndicator())
	if err != nil {
		t.Fatal(err)
	}

	// Second call must not recreate anything
	if err := mgr.Ensure(context.Background(), p); err != nil {
		t.Fatalf("second Ensure() error = %v", err)
	}
	after, err := os.Stat(p.VenvIndicator())
	if err != nil {
		t.Fatal(err)
	}
	if !created.ModTime().Equal(after.ModTime()) {
		t.Error("indicator was touched on second Ensure")
	}
}

func TestEnsure_Failure_SetsFailedStatus(t *testing.T) {
	database, mgr, p := setup(t, "echo 'uv venv exploded' >&2\nexit 1")

	err := mgr.Ensure(context.Background(), p)
	if !errors.Is(err, errors.ErrEnvCreateFailed) {
		t.Fatalf("Ensure() error = %v, want ENV_CREATE_FAILED", err)
	}

	stored, getErr := db.GetProjectByID(database, p.ID)
	if getErr != nil {
		t.Fatal(getErr)
	}
	if stored.EnvStatus != project.EnvFailed {
		t.Errorf("stored EnvStatus = %q, want failed", stored.EnvStatus)
	}
}

func TestInstall_Success_MergesDependencies(t *testing.T) {
	database, mgr, p := setup(t, venvScript)
	p.Dependencies = []string{"rich"}
	if err := db.UpdateDependencies(database, p.ID, p.Dependencies); err != nil {
		t.Fatal(err)
	}

	result, err := mgr.Install(context.Background(), p, []string{"requests"})
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if !result.OK {
		t.Fatalf("result = %+v, want OK", result)
	}

	stored, err := db.GetProjectByID(database, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"requests", "rich"}
	if len(stored.Dependencies) != 2 || stored.Dependencies[0] != want[0] || stored.Dependencies[1] != want[1] {
		t.Errorf("Dependencies = %v, want %v", stored.Dependencies, want)
	}
}

func TestInstall_Failure_LeavesDependencies(t *testing.T) {
	database, mgr, p := setup(t, `
if [ "$1" = "venv" ]; then
  mkdir -p "$2" && touch "$2/pyvenv.cfg"
  exit 0
fi
echo 'No solution found when resolving dependencies' >&2
exit 1
`)

	result, err := mgr.Install(context.Background(), p, []string{"no-such-package"})
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if result.OK {
		t.Fatal("install should have failed")
	}
	if result.Log == "" {
		t.Error("failure must carry the installer log")
	}

	stored, getErr := db.GetProjectByID(database, p.ID)
	if getErr != nil {
		t.Fatal(getErr)
	}
	if len(stored.Dependencies) != 0 {
		t.Errorf("Dependencies = %v, want unchanged (empty)", stored.Dependencies)
	}
	if stored.EnvStatus != project.EnvStale {
		t.Errorf("EnvStatus = %q, want stale", stored.EnvStatus)
	}
}

func TestInstall_NothingToInstall(t *testing.T) {
	_, mgr, p := setup(t, "exit 1") // uv must never be invoked

	result, err := mgr.Install(context.Background(), p, nil)
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if !result.OK {
		t.Fatal("empty install should trivially succeed")
	}
}

func TestRemove(t *testing.T) {
	database, mgr, p := setup(t, venvScript)

	if err := mgr.Ensure(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	if err := mgr.Remove(context.Background(), p); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	if _, err := os.Stat(p.VenvPath()); !os.IsNotExist(err) {
		t.Error("venv directory still present after Remove")
	}
	stored, err := db.GetProjectByID(database, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.EnvStatus != project.EnvAbsent {
		t.Errorf("EnvStatus = %q, want absent", stored.EnvStatus)
	}
}
