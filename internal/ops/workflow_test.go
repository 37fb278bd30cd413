package ops

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jmorand/pyforge/internal/config"
	"github.com/jmorand/pyforge/internal/db"
	"github.com/jmorand/pyforge/internal/env"
	"github.com/jmorand/pyforge/internal/errors"
	"github.com/jmorand/pyforge/internal/loop"
	"github.com/jmorand/pyforge/internal/project"
	"github.com/jmorand/pyforge/internal/runner"
)

// stubEnv satisfies EnvManager without running uv.
type stubEnv struct {
	installOK  bool
	installLog string
	installs   [][]string
}

func (s *stubEnv) Ensure(_ context.Context, p *project.Project) error {
	p.EnvStatus = project.EnvReady
	return nil
}

func (s *stubEnv) Install(_ context.Context, _ *project.Project, names []string) (*env.InstallResult, error) {
	s.installs = append(s.installs, names)
	return &env.InstallResult{OK: s.installOK, Packages: names}, nil
}

func (s *stubEnv) Remove(_ context.Context, p *project.Project) error {
	p.EnvStatus = project.EnvAbsent
	return nil
}

// stubBuilder reports a fixed set of active builds.
type stubBuilder struct {
	active []string
}

func (s *stubBuilder) Build(_ context.Context, name, _ string) (*loop.Result, error) {
	return nil, errors.NewInternal(nil)
}
func (s *stubBuilder) Cancel(string) bool { return false }
func (s *stubBuilder) Active() []string   { return s.active }

// stubRunner returns a fixed outcome.
type stubRunner struct {
	outcome *runner.Outcome
}

func (s *stubRunner) Run(_ context.Context, _ runner.Spec, _ runner.Logf) (*runner.Outcome, error) {
	return s.outcome, nil
}

func newDeps(t *testing.T) *Deps {
	t.Helper()
	baseDir := t.TempDir()
	database, err := db.Init(baseDir)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	return &Deps{
		DB:          database,
		Cfg:         config.DefaultConfig(),
		Env:         &stubEnv{installOK: true},
		Loop:        &stubBuilder{},
		Run:         &stubRunner{outcome: &runner.Outcome{ExitCode: 0, Stdout: "hi\n"}},
		ProjectsDir: filepath.Join(baseDir, "projects"),
	}
}

// TestProjectLifecycle exercises create → list → show → install → history →
// export → delete.
func TestProjectLifecycle(t *testing.T) {
	ctx := context.Background()
	d := newDeps(t)

	// 1. Create
	created, err := Create(ctx, d, CreateInput{Name: "weather-report"})
	require.NoError(t, err)
	require.Equal(t, "weather-report", created.Project.Name)
	require.Equal(t, string(project.EnvAbsent), created.Project.EnvStatus)
	require.DirExists(t, created.Project.RootPath)

	// 2. Duplicate name is rejected
	_, err = Create(ctx, d, CreateInput{Name: "weather-report"})
	require.True(t, errors.Is(err, errors.ErrNameAlreadyExists), "err = %v", err)

	// 3. List
	listed, err := List(ctx, d)
	require.NoError(t, err)
	require.Equal(t, 1, listed.Total)
	require.Equal(t, "weather-report", listed.Projects[0].Name)

	// 4. Show, empty history
	shown, err := Show(ctx, d, ShowInput{Name: "weather-report"})
	require.NoError(t, err)
	require.Zero(t, shown.Revisions)
	require.False(t, shown.BuildInFlight)

	// 5. Install a package
	installed, err := Install(ctx, d, InstallInput{Name: "weather-report", Packages: []string{"requests"}})
	require.NoError(t, err)
	require.Equal(t, []string{"requests"}, installed.Installed)

	// 6. Write some source and export it
	p, err := db.GetProjectByName(d.DB, "weather-report")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(p.EntryScriptPath(), []byte("print('hi')"), 0600))
	require.NoError(t, os.MkdirAll(p.VenvPath(), 0700))
	require.NoError(t, os.WriteFile(p.VenvIndicator(), nil, 0600))

	dest := filepath.Join(t.TempDir(), "out.zip")
	exported, err := Export(ctx, d, ExportInput{Name: "weather-report", Dest: dest})
	require.NoError(t, err)
	require.Equal(t, 1, exported.Files, "the environment must not be exported")

	zr, err := zip.OpenReader(exported.Path)
	require.NoError(t, err)
	defer zr.Close()
	require.Len(t, zr.File, 1)
	require.Equal(t, "main.py", zr.File[0].Name)

	// 7. Delete with files
	deleted, err := Delete(ctx, d, DeleteInput{Name: "weather-report"})
	require.NoError(t, err)
	require.True(t, deleted.Deleted)
	require.True(t, deleted.FilesRemoved)
	require.NoDirExists(t, p.RootPath)

	_, err = Show(ctx, d, ShowInput{Name: "weather-report"})
	require.True(t, errors.Is(err, errors.ErrNotFound), "err = %v", err)
}

func TestCreate_SanitizesName(t *testing.T) {
	ctx := context.Background()
	d := newDeps(t)

	created, err := Create(ctx, d, CreateInput{Name: "  my cool app!  "})
	require.NoError(t, err)
	require.Equal(t, "my_cool_app", created.Project.Name)

	_, err = Create(ctx, d, CreateInput{Name: "../.."})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest), "err = %v", err)
}

func TestRun_ExecutesEntryScript(t *testing.T) {
	ctx := context.Background()
	d := newDeps(t)

	created, err := Create(ctx, d, CreateInput{Name: "runnable"})
	require.NoError(t, err)

	// No source yet
	_, err = Run(ctx, d, RunInput{Name: "runnable"})
	require.True(t, errors.Is(err, errors.ErrInvalidRequest), "err = %v", err)

	script := filepath.Join(created.Project.RootPath, "main.py")
	require.NoError(t, os.WriteFile(script, []byte("print('hi')"), 0600))

	out, err := Run(ctx, d, RunInput{Name: "runnable"})
	require.NoError(t, err)
	require.True(t, out.Success)
	require.Equal(t, "hi\n", out.Run.Stdout)
}

func TestMutationsRejectedWhileBuildInFlight(t *testing.T) {
	ctx := context.Background()
	d := newDeps(t)

	created, err := Create(ctx, d, CreateInput{Name: "busy"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(
		filepath.Join(created.Project.RootPath, "main.py"), []byte("print('hi')"), 0600))

	d.Loop = &stubBuilder{active: []string{"busy"}}

	_, err = Run(ctx, d, RunInput{Name: "busy"})
	require.True(t, errors.Is(err, errors.ErrBuildInProgress), "Run err = %v", err)

	_, err = Install(ctx, d, InstallInput{Name: "busy", Packages: []string{"requests"}})
	require.True(t, errors.Is(err, errors.ErrBuildInProgress), "Install err = %v", err)

	_, err = Recreate(ctx, d, RecreateInput{Name: "busy"})
	require.True(t, errors.Is(err, errors.ErrBuildInProgress), "Recreate err = %v", err)

	_, err = Delete(ctx, d, DeleteInput{Name: "busy"})
	require.True(t, errors.Is(err, errors.ErrBuildInProgress), "Delete err = %v", err)
}

func TestInstall_FailureSurfacesInstallerLog(t *testing.T) {
	ctx := context.Background()
	d := newDeps(t)
	d.Env = &stubEnv{installOK: false, installLog: "No solution found"}

	_, err := Create(ctx, d, CreateInput{Name: "broken"})
	require.NoError(t, err)

	_, err = Install(ctx, d, InstallInput{Name: "broken", Packages: []string{"no-such-pkg"}})
	require.True(t, errors.Is(err, errors.ErrDepInstallFailed), "err = %v", err)
}

func TestHistory_SingleRevisionCarriesSource(t *testing.T) {
	ctx := context.Background()
	d := newDeps(t)

	created, err := Create(ctx, d, CreateInput{Name: "historic"})
	require.NoError(t, err)

	for i, src := range []string{"print(1)", "print(2)"} {
		rev := &project.Revision{
			ID:        created.Project.ID + string(rune('a'+i)),
			ProjectID: created.Project.ID,
			Source:    src,
			Origin:    project.OriginPrompt,
			Note:      "print a number",
			CreatedAt: time.Now().Unix(),
		}
		require.NoError(t, db.AppendRevision(d.DB, rev))
	}

	// Full history omits source by default
	all, err := History(ctx, d, HistoryInput{Name: "historic"})
	require.NoError(t, err)
	require.Equal(t, 2, all.Total)
	require.Empty(t, all.Revisions[0].Source)

	// A single revision always carries it
	one, err := History(ctx, d, HistoryInput{Name: "historic", Seq: 2})
	require.NoError(t, err)
	require.Equal(t, 1, one.Total)
	require.Equal(t, "print(2)", one.Revisions[0].Source)

	_, err = History(ctx, d, HistoryInput{Name: "historic", Seq: 99})
	require.True(t, errors.Is(err, errors.ErrNotFound), "err = %v", err)
}

func TestDelete_KeepFiles(t *testing.T) {
	ctx := context.Background()
	d := newDeps(t)

	created, err := Create(ctx, d, CreateInput{Name: "keeper"})
	require.NoError(t, err)

	deleted, err := Delete(ctx, d, DeleteInput{Name: "keeper", KeepFiles: true})
	require.NoError(t, err)
	require.True(t, deleted.Deleted)
	require.False(t, deleted.FilesRemoved)
	require.DirExists(t, created.Project.RootPath)
}
