package ops

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmorand/pyforge/internal/db"
	"github.com/jmorand/pyforge/internal/errors"
)

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Name string

	// Dest is the zip file to write. Empty means <name>.zip in the
	// working directory.
	Dest string
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path  string `json:"path"`
	Files int    `json:"files"`
}

// skipExportDir names directories never included in an export. The
// environment is machine-specific and reproducible from the dependency list;
// caches are noise.
func skipExportDir(name string) bool {
	return name == ".venv" || name == "__pycache__"
}

// Export writes the project's files to a zip archive, leaving out the
// environment and interpreter caches.
func Export(ctx context.Context, d *Deps, input ExportInput) (*ExportOutput, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errors.NewInvalidRequest("name must not be empty")
	}

	p, err := db.GetProjectByName(d.DB, name)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(p.RootPath); err != nil {
		return nil, errors.NewInvalidRequest(
			fmt.Sprintf("project %q has no files to export", p.Name))
	}

	dest := strings.TrimSpace(input.Dest)
	if dest == "" {
		dest = p.Name + ".zip"
	}
	if !strings.HasSuffix(dest, ".zip") {
		dest += ".zip"
	}

	f, err := os.Create(dest)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	files := 0
	walkErr := filepath.WalkDir(p.RootPath, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if skipExportDir(entry.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(p.RootPath, path)
		if err != nil {
			return err
		}

		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		if _, err := io.Copy(w, src); err != nil {
			return err
		}
		files++
		return nil
	})
	if walkErr != nil {
		zw.Close()
		return nil, errors.NewInternal(walkErr)
	}
	if err := zw.Close(); err != nil {
		return nil, errors.NewInternal(err)
	}

	abs, err := filepath.Abs(dest)
	if err != nil {
		abs = dest
	}
	return &ExportOutput{Path: abs, Files: files}, nil
}
