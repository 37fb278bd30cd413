package project

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"plain", "snake-game", "snake-game", false},
		{"spaces", "my cool app", "my_cool_app", false},
		{"path traversal stripped", "../../etc/passwd", "passwd", false},
		{"unicode collapsed", "café☕app", "caf_app", false},
		{"dots kept", "app.v2", "app.v2", false},
		{"leading underscores trimmed", "__hidden__", "hidden", false},
		{"empty", "", "", true},
		{"only junk", "///", "", true},
		{"dot", ".", "", true},
		{"dotdot", "..", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeName(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("SanitizeName(%q) expected error, got %q", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("SanitizeName(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestContainedIn(t *testing.T) {
	root := t.TempDir()
	inside := filepath.Join(root, "proj")
	if err := os.MkdirAll(inside, 0700); err != nil {
		t.Fatal(err)
	}

	if !ContainedIn(root, inside) {
		t.Error("expected inside dir to be contained")
	}
	if ContainedIn(root, root) {
		t.Error("root itself must not count as contained")
	}
	outside := t.TempDir()
	if ContainedIn(root, outside) {
		t.Error("sibling temp dir must not be contained")
	}
}

func TestProjectPaths(t *testing.T) {
	p := &Project{RootPath: filepath.Join("/data", "proj"), EntryScript: DefaultEntryScript}

	if got := p.VenvPath(); got != filepath.Join("/data", "proj", ".venv") {
		t.Errorf("VenvPath() = %q", got)
	}
	if got := p.VenvIndicator(); got != filepath.Join("/data", "proj", ".venv", "pyvenv.cfg") {
		t.Errorf("VenvIndicator() = %q", got)
	}
	if got := p.EntryScriptPath(); got != filepath.Join("/data", "proj", "main.py") {
		t.Errorf("EntryScriptPath() = %q", got)
	}
}

func TestHasDependency(t *testing.T) {
	p := &Project{Dependencies: []string{"requests", "rich"}}
	if !p.HasDependency("requests") {
		t.Error("expected requests to be declared")
	}
	if p.HasDependency("numpy") {
		t.Error("numpy should not be declared")
	}
}
