package web

import (
	"net/http"
	"strconv"

	"github.com/jmorand/pyforge/internal/errors"
	"github.com/jmorand/pyforge/internal/ops"
)

// Handlers holds dependencies for the web UI handlers.
type Handlers struct {
	deps     *ops.Deps
	renderer *Renderer
}

// HandleList renders the project list page.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	out, err := ops.List(r.Context(), h.deps)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "list", ListPageData{
		PageData: PageData{
			Title:   "Projects",
			Version: h.renderer.version,
			Nav:     "projects",
		},
		Projects: out.Projects,
		Total:    out.Total,
	})
}

// HandleDetail renders one project with its newest source and history.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	shown, err := ops.Show(r.Context(), h.deps, ops.ShowInput{Name: name, WithSource: true})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	history, err := ops.History(r.Context(), h.deps, ops.HistoryInput{Name: name})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData: PageData{
			Title:   shown.Project.Name,
			Version: h.renderer.version,
			Nav:     "projects",
		},
		Project:       shown.Project,
		BuildInFlight: shown.BuildInFlight,
		Revisions:     history.Revisions,
		Source:        shown.Source,
	})
}

// HandleRevision renders a single revision with its source.
func (h *Handlers) HandleRevision(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	seq, err := strconv.Atoi(r.PathValue("seq"))
	if err != nil || seq <= 0 {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid revision number"))
		return
	}

	out, err := ops.History(r.Context(), h.deps, ops.HistoryInput{Name: name, Seq: seq})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	rev := out.Revisions[0]

	h.renderer.renderPage(w, r, "revision", RevisionPageData{
		PageData: PageData{
			Title:   name,
			Version: h.renderer.version,
			Nav:     "projects",
		},
		ProjectName: name,
		Revision:    rev,
		NoteHTML:    renderMarkdown(rev.Note),
	})
}

// HandleDelete deletes a project and responds with JSON.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	out, err := ops.Delete(r.Context(), h.deps, ops.DeleteInput{Name: name})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// HandleCancel cancels a project's in-flight build and responds with JSON.
func (h *Handlers) HandleCancel(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	if err := ops.CancelBuild(h.deps, name); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]any{"cancelled": true, "name": name})
}
