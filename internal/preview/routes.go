package preview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/draw2ui/internal/state"
	"github.com/ziadkadry99/draw2ui/internal/store"
)

// ProjectSource reads the projects being previewed.
type ProjectSource interface {
	ListProjects(ctx context.Context) ([]store.Project, error)
	GetProjectData(ctx context.Context, id string) (*store.ProjectData, error)
}

// RegisterRoutes mounts the preview page and the export endpoints. Preview
// settings and theme come from the session state.
func RegisterRoutes(r chi.Router, projects ProjectSource, st *state.State) {
	r.Get("/preview/{id}", handlePreview(projects, st))
	r.Get("/api/projects/{id}/export.html", handleExport(projects, st))
	r.Get("/api/projects/{id}/code", handleCode(projects, st))
}

func handlePreview(projects ProjectSource, st *state.State) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, ok := loadData(w, r, projects)
		if !ok {
			return
		}

		doc, err := Document(data.GeneratedHTML, st.Preview.Get(), st.Theme.Get())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}

		// The generated markup is untrusted; sandbox it away from the app origin.
		w.Header().Set("Content-Security-Policy", "sandbox allow-scripts")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(doc))
	}
}

func handleExport(projects ProjectSource, st *state.State) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, ok := loadData(w, r, projects)
		if !ok {
			return
		}
		if data.GeneratedHTML == "" {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "nothing generated yet"})
			return
		}

		title := projectName(r.Context(), projects, data.ID)
		doc, err := Export(data.GeneratedHTML, title, st.Preview.Get(), st.Theme.Get())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.html"`, fileSlug(title)))
		w.Write([]byte(doc))
	}
}

type codeResponse struct {
	HTML        string `json:"html"`
	Highlighted string `json:"highlighted"`
}

func handleCode(projects ProjectSource, st *state.State) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, ok := loadData(w, r, projects)
		if !ok {
			return
		}

		processed := Process(data.GeneratedHTML, st.Preview.Get())
		highlighted, err := Highlight(processed)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, codeResponse{HTML: processed, Highlighted: highlighted})
	}
}

func loadData(w http.ResponseWriter, r *http.Request, projects ProjectSource) (*store.ProjectData, bool) {
	id := chi.URLParam(r, "id")
	data, err := projects.GetProjectData(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "project not found"})
		return nil, false
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return nil, false
	}
	return data, true
}

func projectName(ctx context.Context, projects ProjectSource, id string) string {
	list, err := projects.ListProjects(ctx)
	if err != nil {
		return ""
	}
	for _, p := range list {
		if p.ID == id {
			return p.Name
		}
	}
	return ""
}

var slugUnsafe = regexp.MustCompile(`[^a-zA-Z0-9]+`)

func fileSlug(name string) string {
	slug := strings.Trim(slugUnsafe.ReplaceAllString(name, "-"), "-")
	if slug == "" {
		return "ui-design"
	}
	return slug
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
