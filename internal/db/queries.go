package db

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/jmorand/pyforge/internal/errors"
	"github.com/jmorand/pyforge/internal/project"
)

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = &errors.ForgeError{
	Code:    "UNIQUE_CONSTRAINT",
	Status:  409,
	Message: "unique constraint violation",
}

// InsertProject stores a new project in the registry.
func InsertProject(db *sql.DB, p *project.Project) error {
	depsJSON, err := marshalDeps(p.Dependencies)
	if err != nil {
		return errors.NewInternal(err)
	}

	query := `
		INSERT INTO projects (
			id, name, root_path, entry_script, deps_json,
			env_status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = db.Exec(query,
		p.ID, p.Name, p.RootPath, p.EntryScript, depsJSON,
		string(p.EnvStatus), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}

	return nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite returns "UNIQUE constraint failed: ..." for unique violations
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// GetProjectByName retrieves a project by its unique name.
func GetProjectByName(db *sql.DB, name string) (*project.Project, error) {
	row := db.QueryRow(projectSelect+" WHERE name = ?", name)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(name)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return p, nil
}

// GetProjectByID retrieves a project by its ULID.
func GetProjectByID(db *sql.DB, id string) (*project.Project, error) {
	row := db.QueryRow(projectSelect+" WHERE id = ?", id)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return p, nil
}

// ListProjects returns all projects, most recently updated first.
func ListProjects(db *sql.DB) ([]*project.Project, error) {
	rows, err := db.Query(projectSelect + " ORDER BY updated_at DESC")
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []*project.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// UpdateEnvStatus sets the project's environment status.
// Called only by the environment manager, which owns this field.
func UpdateEnvStatus(db *sql.DB, projectID string, status project.EnvStatus) error {
	return execTouch(db, `UPDATE projects SET env_status = ?, updated_at = ? WHERE id = ?`,
		string(status), projectID)
}

// UpdateDependencies replaces the declared dependency set.
func UpdateDependencies(db *sql.DB, projectID string, deps []string) error {
	depsJSON, err := marshalDeps(deps)
	if err != nil {
		return errors.NewInternal(err)
	}
	return execTouch(db, `UPDATE projects SET deps_json = ?, updated_at = ? WHERE id = ?`,
		depsJSON, projectID)
}

// UpdateEntryScript records a new entry script path for the project.
func UpdateEntryScript(db *sql.DB, projectID, entryScript string) error {
	return execTouch(db, `UPDATE projects SET entry_script = ?, updated_at = ? WHERE id = ?`,
		entryScript, projectID)
}

// execTouch runs an UPDATE whose last two placeholders are updated_at and id.
func execTouch(db *sql.DB, query string, value any, projectID string) error {
	result, err := db.Exec(query, value, time.Now().Unix(), projectID)
	if err != nil {
		return errors.NewInternal(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if affected == 0 {
		return errors.NewNotFound(projectID)
	}
	return nil
}

// DeleteProject removes the project and its revision history.
func DeleteProject(db *sql.DB, projectID string) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM revisions WHERE project_id = ?`, projectID); err != nil {
		return errors.NewInternal(err)
	}
	result, err := tx.Exec(`DELETE FROM projects WHERE id = ?`, projectID)
	if err != nil {
		return errors.NewInternal(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if affected == 0 {
		return errors.NewNotFound(projectID)
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// AppendRevision appends a revision to the project's history, assigning the
// next sequence number. History is append-only; rows are never rewritten.
func AppendRevision(db *sql.DB, r *project.Revision) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback()

	var maxSeq sql.NullInt64
	if err := tx.QueryRow(
		`SELECT MAX(seq) FROM revisions WHERE project_id = ?`, r.ProjectID,
	).Scan(&maxSeq); err != nil {
		return errors.NewInternal(err)
	}
	r.Seq = int(maxSeq.Int64) + 1

	note := sql.NullString{String: r.Note, Valid: r.Note != ""}
	_, err = tx.Exec(`
		INSERT INTO revisions (id, project_id, seq, source, origin, note, accepted, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		r.ID, r.ProjectID, r.Seq, r.Source, string(r.Origin), note, r.CreatedAt,
	)
	if err != nil {
		return errors.NewInternal(err)
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// MarkRevisionAccepted flags the given revision as the accepted one.
func MarkRevisionAccepted(db *sql.DB, projectID string, seq int) error {
	result, err := db.Exec(
		`UPDATE revisions SET accepted = 1 WHERE project_id = ? AND seq = ?`,
		projectID, seq,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if affected == 0 {
		return errors.NewNotFound(projectID)
	}
	return nil
}

// ListRevisions returns the project's history in order.
func ListRevisions(db *sql.DB, projectID string) ([]*project.Revision, error) {
	rows, err := db.Query(revisionSelect+" WHERE project_id = ? ORDER BY seq ASC", projectID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []*project.Revision
	for rows.Next() {
		r, err := scanRevision(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// LatestRevision returns the newest revision, or NotFound if history is empty.
func LatestRevision(db *sql.DB, projectID string) (*project.Revision, error) {
	row := db.QueryRow(revisionSelect+" WHERE project_id = ? ORDER BY seq DESC LIMIT 1", projectID)
	r, err := scanRevision(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(projectID)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return r, nil
}

const projectSelect = `
	SELECT id, name, root_path, entry_script, deps_json,
		env_status, created_at, updated_at
	FROM projects`

const revisionSelect = `
	SELECT id, project_id, seq, source, origin, note, accepted, created_at
	FROM revisions`

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanProject scans a single row into a Project struct.
func scanProject(row scanner) (*project.Project, error) {
	var (
		p         project.Project
		depsJSON  sql.NullString
		envStatus string
	)

	err := row.Scan(
		&p.ID, &p.Name, &p.RootPath, &p.EntryScript, &depsJSON,
		&envStatus, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.EnvStatus = project.EnvStatus(envStatus)

	if depsJSON.Valid && depsJSON.String != "" {
		if err := json.Unmarshal([]byte(depsJSON.String), &p.Dependencies); err != nil {
			return nil, err
		}
	}

	return &p, nil
}

// scanRevision scans a single row into a Revision struct.
func scanRevision(row scanner) (*project.Revision, error) {
	var (
		r        project.Revision
		origin   string
		note     sql.NullString
		accepted int
	)

	err := row.Scan(
		&r.ID, &r.ProjectID, &r.Seq, &r.Source, &origin, &note, &accepted, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Origin = project.RevisionOrigin(origin)
	r.Note = note.String
	r.Accepted = accepted != 0

	return &r, nil
}

// marshalDeps converts a dependency list to its JSON column value.
func marshalDeps(deps []string) (sql.NullString, error) {
	if len(deps) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(deps)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
