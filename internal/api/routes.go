// Package api exposes the workspace session over HTTP for the browser UI.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/draw2ui/internal/orchestrator"
	"github.com/ziadkadry99/draw2ui/internal/preview"
	"github.com/ziadkadry99/draw2ui/internal/state"
	"github.com/ziadkadry99/draw2ui/internal/store"
	"github.com/ziadkadry99/draw2ui/internal/usage"
	"github.com/ziadkadry99/draw2ui/internal/whiteboard"
	"github.com/ziadkadry99/draw2ui/internal/workspace"
)

const maxSceneBytes = 32 << 20

// RoutesDeps holds the dependencies of the workspace endpoints.
type RoutesDeps struct {
	Store        *store.Store
	Workspace    *workspace.Workspace
	Orchestrator *orchestrator.Orchestrator
	Usage        *usage.Limiter
	Canvas       *whiteboard.MemoryCanvas
}

// RegisterRoutes wires up the project, settings, state, whiteboard and usage
// endpoints.
func RegisterRoutes(r chi.Router, deps RoutesDeps) {
	h := &routeHandler{deps: deps}
	r.Route("/api/projects", func(r chi.Router) {
		r.Get("/", h.listProjects)
		r.Post("/", h.createProject)
		r.Patch("/{id}", h.renameProject)
		r.Delete("/{id}", h.deleteProject)
		r.Post("/{id}/select", h.selectProject)
		r.Get("/{id}/data", h.projectData)
	})
	r.Get("/api/settings", h.getSettings)
	r.Patch("/api/settings", h.updateSettings)
	r.Route("/api/state", func(r chi.Router) {
		r.Get("/", h.getState)
		r.Put("/view-mode", h.setViewMode)
		r.Put("/theme", h.setTheme)
		r.Patch("/preview", h.updatePreview)
	})
	r.Route("/api/whiteboard", func(r chi.Router) {
		r.Get("/scene", h.getScene)
		r.Put("/scene", h.putScene)
		r.Post("/dialog", h.dialog)
		r.Post("/generate", h.generate)
	})
	r.Get("/api/usage", h.getUsage)
}

type routeHandler struct {
	deps RoutesDeps
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (h *routeHandler) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.deps.Store.ListProjects(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing projects", err)
		return
	}
	writeJSON(w, http.StatusOK, store.SortByRecent(projects))
}

type nameRequest struct {
	Name string `json:"name"`
}

func (h *routeHandler) createProject(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
	}

	p, err := h.deps.Workspace.CreateProject(r.Context(), req.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "creating project", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *routeHandler) renameProject(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	p, err := h.deps.Workspace.RenameProject(r.Context(), chi.URLParam(r, "id"), req.Name)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, p)
	case errors.Is(err, store.ErrInvalidName):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "name is required"})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "project not found"})
	default:
		writeError(w, http.StatusInternalServerError, "renaming project", err)
	}
}

func (h *routeHandler) deleteProject(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Workspace.DeleteProject(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusInternalServerError, "deleting project", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *routeHandler) selectProject(w http.ResponseWriter, r *http.Request) {
	err := h.deps.Workspace.SelectProject(r.Context(), chi.URLParam(r, "id"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, h.deps.Workspace.State().Snapshot())
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "project not found"})
	default:
		writeError(w, http.StatusInternalServerError, "selecting project", err)
	}
}

func (h *routeHandler) projectData(w http.ResponseWriter, r *http.Request) {
	data, err := h.deps.Store.GetProjectData(r.Context(), chi.URLParam(r, "id"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, data)
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "project not found"})
	default:
		writeError(w, http.StatusInternalServerError, "loading project data", err)
	}
}

func (h *routeHandler) getSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.deps.Store.GetSettings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading settings", err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *routeHandler) updateSettings(w http.ResponseWriter, r *http.Request) {
	var patch store.SettingsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	ctx := r.Context()
	if patch.Theme != nil {
		if err := h.deps.Workspace.SetTheme(ctx, *patch.Theme); err != nil {
			writeSettingsError(w, err)
			return
		}
		patch.Theme = nil
	}
	settings, err := h.deps.Store.UpdateSettings(ctx, patch)
	if err != nil {
		writeSettingsError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func writeSettingsError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrInvalidTheme) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "theme must be light or dark"})
		return
	}
	writeError(w, http.StatusInternalServerError, "saving settings", err)
}

func (h *routeHandler) getState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Workspace.State().Snapshot())
}

func (h *routeHandler) setViewMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode state.ViewMode `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := h.deps.Workspace.SetViewMode(req.Mode); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]state.ViewMode{"mode": req.Mode})
}

func (h *routeHandler) setTheme(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Theme store.Theme `json:"theme"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := h.deps.Workspace.SetTheme(r.Context(), req.Theme); err != nil {
		writeSettingsError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]store.Theme{"theme": req.Theme})
}

// previewRequest extends PreviewPatch with zoom actions.
type previewRequest struct {
	state.PreviewPatch
	Zoom string `json:"zoom,omitempty"`
}

func (h *routeHandler) updatePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	ws := h.deps.Workspace
	settings, err := ws.UpdatePreview(req.PreviewPatch)
	if errors.Is(err, preview.ErrInvalidSettings) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "updating preview", err)
		return
	}

	switch req.Zoom {
	case "":
	case "in":
		settings = ws.ZoomIn()
	case "out":
		settings = ws.ZoomOut()
	case "reset":
		settings = ws.ResetZoom()
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "zoom must be in, out or reset"})
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *routeHandler) getScene(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Canvas.Scene())
}

func (h *routeHandler) putScene(w http.ResponseWriter, r *http.Request) {
	var scene whiteboard.Scene
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSceneBytes)).Decode(&scene); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid scene", Details: err.Error()})
		return
	}
	h.deps.Canvas.Apply(scene)
	w.WriteHeader(http.StatusNoContent)
}

func (h *routeHandler) dialog(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Open bool `json:"open"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	if !req.Open {
		h.deps.Orchestrator.CloseDialog()
		writeJSON(w, http.StatusOK, map[string]bool{"open": false})
		return
	}
	if err := h.deps.Orchestrator.OpenDialog(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"open": true})
}

type generateResponse struct {
	HTML string `json:"html"`
}

func (h *routeHandler) generate(w http.ResponseWriter, r *http.Request) {
	var in orchestrator.Input
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSceneBytes)).Decode(&in); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
	}

	ctx := r.Context()
	html, err := h.deps.Orchestrator.Generate(ctx, in)
	switch {
	case err == nil:
		h.deps.Workspace.RefreshProjects(ctx)
		writeJSON(w, http.StatusOK, generateResponse{HTML: html})
	case errors.Is(err, orchestrator.ErrEmptySketch), errors.Is(err, orchestrator.ErrNoProject):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, orchestrator.ErrQuotaExhausted):
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: err.Error()})
	case errors.Is(err, orchestrator.ErrBusy):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "Failed to generate UI", Details: err.Error()})
	}
}

type usageResponse struct {
	usage.Status
	History map[string]int `json:"history"`
}

func (h *routeHandler) getUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status, err := h.deps.Usage.Check(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "checking usage", err)
		return
	}
	history, err := h.deps.Usage.History(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "reading usage history", err)
		return
	}
	writeJSON(w, http.StatusOK, usageResponse{Status: status, History: history})
}

func writeError(w http.ResponseWriter, status int, action string, err error) {
	log.Printf("api: %s: %v", action, err)
	writeJSON(w, status, errorResponse{Error: action + " failed", Details: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
