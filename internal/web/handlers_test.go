package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jmorand/pyforge/internal/config"
	"github.com/jmorand/pyforge/internal/db"
	"github.com/jmorand/pyforge/internal/env"
	"github.com/jmorand/pyforge/internal/loop"
	"github.com/jmorand/pyforge/internal/ops"
	"github.com/jmorand/pyforge/internal/project"
	"github.com/jmorand/pyforge/internal/runner"
)

type stubEnv struct{}

func (stubEnv) Ensure(_ context.Context, p *project.Project) error {
	p.EnvStatus = project.EnvReady
	return nil
}

func (stubEnv) Install(_ context.Context, _ *project.Project, names []string) (*env.InstallResult, error) {
	return &env.InstallResult{OK: true, Packages: names}, nil
}

func (stubEnv) Remove(_ context.Context, p *project.Project) error {
	p.EnvStatus = project.EnvAbsent
	return nil
}

type stubBuilder struct{ active []string }

func (s stubBuilder) Build(_ context.Context, _, _ string) (*loop.Result, error) { return nil, nil }
func (s stubBuilder) Cancel(string) bool                                         { return false }
func (s stubBuilder) Active() []string                                           { return s.active }

type stubRunner struct{}

func (stubRunner) Run(_ context.Context, _ runner.Spec, _ runner.Logf) (*runner.Outcome, error) {
	return &runner.Outcome{ExitCode: 0}, nil
}

func testServer(t *testing.T) (http.Handler, *ops.Deps) {
	t.Helper()
	baseDir := t.TempDir()
	database, err := db.Init(baseDir)
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	deps := &ops.Deps{
		DB:          database,
		Cfg:         config.DefaultConfig(),
		Env:         stubEnv{},
		Loop:        stubBuilder{},
		Run:         stubRunner{},
		ProjectsDir: filepath.Join(baseDir, "projects"),
	}
	return NewServer(deps, "test", "127.0.0.1", 0).Handler, deps
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHandleList_Empty(t *testing.T) {
	h, _ := testServer(t)

	rec := get(t, h, "/projects")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No projects yet") {
		t.Error("empty state missing from list page")
	}
}

func TestHandleList_ShowsProjects(t *testing.T) {
	h, deps := testServer(t)
	_, err := ops.Create(context.Background(), deps, ops.CreateInput{Name: "weather"})
	if err != nil {
		t.Fatal(err)
	}

	body := get(t, h, "/projects").Body.String()
	if !strings.Contains(body, "weather") {
		t.Error("project name missing from list page")
	}
	if !strings.Contains(body, "absent") {
		t.Error("environment status missing from list page")
	}
}

func TestHandleDetail(t *testing.T) {
	h, deps := testServer(t)
	created, err := ops.Create(context.Background(), deps, ops.CreateInput{Name: "detailed"})
	if err != nil {
		t.Fatal(err)
	}
	rev := &project.Revision{
		ID:        "01WEBTEST",
		ProjectID: created.Project.ID,
		Source:    "print('from the web test')",
		Origin:    project.OriginPrompt,
		Note:      "a test prompt",
		CreatedAt: time.Now().Unix(),
	}
	if err := db.AppendRevision(deps.DB, rev); err != nil {
		t.Fatal(err)
	}

	rec := get(t, h, "/projects/detailed")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "print(&#39;from the web test&#39;)") {
		t.Error("source missing from detail page")
	}
	if !strings.Contains(body, "a test prompt") {
		t.Error("revision note missing from detail page")
	}
}

func TestHandleDetail_NotFound(t *testing.T) {
	h, _ := testServer(t)

	rec := get(t, h, "/projects/ghost")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleDetail_NotFound_JSON(t *testing.T) {
	h, _ := testServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/projects/ghost", nil)
	req.Header.Set("Accept", "application/json")
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var payload map[string]map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if payload["error"]["code"] != "NOT_FOUND" {
		t.Errorf("code = %v, want NOT_FOUND", payload["error"]["code"])
	}
}

func TestHandleRevision(t *testing.T) {
	h, deps := testServer(t)
	created, err := ops.Create(context.Background(), deps, ops.CreateInput{Name: "revved"})
	if err != nil {
		t.Fatal(err)
	}
	rev := &project.Revision{
		ID:        "01WEBREV",
		ProjectID: created.Project.ID,
		Source:    "print(42)",
		Origin:    project.OriginCorrection,
		Note:      "ZeroDivisionError: division by zero",
		CreatedAt: time.Now().Unix(),
	}
	if err := db.AppendRevision(deps.DB, rev); err != nil {
		t.Fatal(err)
	}

	rec := get(t, h, "/projects/revved/revisions/1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "print(42)") {
		t.Error("source missing from revision page")
	}

	if rec := get(t, h, "/projects/revved/revisions/banana"); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for non-numeric seq", rec.Code)
	}
	if rec := get(t, h, "/projects/revved/revisions/99"); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for missing seq", rec.Code)
	}
}

func TestHandleDelete(t *testing.T) {
	h, deps := testServer(t)
	if _, err := ops.Create(context.Background(), deps, ops.CreateInput{Name: "doomed"}); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/projects/doomed", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	if rec := get(t, h, "/projects/doomed"); rec.Code != http.StatusNotFound {
		t.Errorf("status after delete = %d, want 404", rec.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	h, _ := testServer(t)

	rec := get(t, h, "/projects")
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("X-Frame-Options missing")
	}
	if rec.Header().Get("Content-Security-Policy") == "" {
		t.Error("Content-Security-Policy missing")
	}
}

func TestRootRedirects(t *testing.T) {
	h, _ := testServer(t)

	rec := get(t, h, "/")
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/projects" {
		t.Errorf("Location = %q, want /projects", loc)
	}
}
