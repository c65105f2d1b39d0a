// Package workspace implements the page-session actions that tie the
// project store, the shared state cells and the whiteboard together.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/ziadkadry99/draw2ui/internal/preview"
	"github.com/ziadkadry99/draw2ui/internal/state"
	"github.com/ziadkadry99/draw2ui/internal/store"
	"github.com/ziadkadry99/draw2ui/internal/whiteboard"
)

// ErrInvalidViewMode is returned by SetViewMode for an unknown mode.
var ErrInvalidViewMode = errors.New("invalid view mode")

// Workspace is one page session. Every action reports failures on the
// Notice cell as well as returning them.
type Workspace struct {
	store  *store.Store
	state  *state.State
	board  *whiteboard.Adapter
	canvas whiteboard.Canvas

	// selectMu serializes project selection so the adapter and the
	// CurrentProject cells always agree.
	selectMu sync.Mutex
}

// New creates a workspace. The board is attached to canvas by Load.
func New(st *store.Store, s *state.State, board *whiteboard.Adapter, canvas whiteboard.Canvas) *Workspace {
	w := &Workspace{store: st, state: s, board: board, canvas: canvas}
	board.OnSaved(w.handleSaved)
	return w
}

// State returns the cells this workspace drives.
func (w *Workspace) State() *state.State { return w.state }

// Load reads projects and settings into the state and binds the whiteboard
// to the selected project, choosing the most recent one if none is selected.
func (w *Workspace) Load(ctx context.Context) error {
	projects, err := w.store.ListProjects(ctx)
	if err != nil {
		return w.fail("Failed to load projects", fmt.Errorf("loading projects: %w", err))
	}
	projects = store.SortByRecent(projects)
	w.state.Projects.Set(projects)

	settings, err := w.store.GetSettings(ctx)
	if err != nil {
		return w.fail("Failed to load settings", fmt.Errorf("loading settings: %w", err))
	}
	w.state.Theme.Set(settings.Theme)

	w.selectMu.Lock()
	defer w.selectMu.Unlock()

	id := w.state.CurrentProjectID.Get()
	if id != "" && !containsProject(projects, id) {
		id = ""
	}
	if id == "" && len(projects) > 0 {
		id = projects[0].ID
	}
	w.state.CurrentProjectID.Set(id)
	if err := w.loadData(ctx, id); err != nil {
		return w.fail("Failed to load project", err)
	}

	if err := w.board.Attach(ctx, w.canvas, id); err != nil {
		return w.fail("Failed to load drawing", err)
	}
	return nil
}

// CreateProject creates a project, puts it first in the list and selects
// it. An empty name becomes "Project N".
func (w *Workspace) CreateProject(ctx context.Context, name string) (store.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("Project %d", len(w.state.Projects.Get())+1)
	}

	p, err := w.store.CreateProject(ctx, name)
	if err != nil {
		return store.Project{}, w.fail("Failed to create project", fmt.Errorf("creating project: %w", err))
	}
	w.state.Projects.Update(func(list []store.Project) []store.Project {
		return append([]store.Project{p}, list...)
	})

	if err := w.SelectProject(ctx, p.ID); err != nil {
		return p, err
	}
	return p, nil
}

// SelectProject makes id the current project. Pending drawing edits of the
// previous project are saved before the new drawing is loaded.
func (w *Workspace) SelectProject(ctx context.Context, id string) error {
	projects, err := w.store.ListProjects(ctx)
	if err != nil {
		return w.fail("Failed to load projects", fmt.Errorf("loading projects: %w", err))
	}
	if !containsProject(projects, id) {
		return w.fail("Project not found", fmt.Errorf("selecting %q: %w", id, store.ErrNotFound))
	}

	w.selectMu.Lock()
	defer w.selectMu.Unlock()
	return w.switchTo(ctx, id)
}

// switchTo must be called with selectMu held.
func (w *Workspace) switchTo(ctx context.Context, id string) error {
	w.state.CurrentProjectID.Set(id)
	if err := w.loadData(ctx, id); err != nil {
		return w.fail("Failed to load project", err)
	}
	if err := w.board.SwitchProject(ctx, id); err != nil {
		return w.fail("Failed to load drawing", fmt.Errorf("switching whiteboard: %w", err))
	}
	return nil
}

func (w *Workspace) loadData(ctx context.Context, id string) error {
	if id == "" {
		w.state.CurrentProjectData.Set(nil)
		return nil
	}
	data, err := w.store.GetProjectData(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		w.state.CurrentProjectData.Set(nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading project data for %s: %w", id, err)
	}
	w.state.CurrentProjectData.Set(data)
	return nil
}

// DeleteProject removes a project. When it was selected, the most recently
// updated remaining project is selected instead, or none.
func (w *Workspace) DeleteProject(ctx context.Context, id string) error {
	w.selectMu.Lock()
	defer w.selectMu.Unlock()

	// The drawing's pending autosave must land before the delete, never after.
	released := w.board.Release(id)
	if err := w.store.DeleteProject(ctx, id); err != nil {
		if released {
			if serr := w.board.SwitchProject(ctx, id); serr != nil {
				log.Printf("workspace: rebinding %s after failed delete: %v", id, serr)
			}
		}
		return w.fail("Failed to delete project", fmt.Errorf("deleting project: %w", err))
	}

	projects, err := w.store.ListProjects(ctx)
	if err != nil {
		return w.fail("Failed to load projects", fmt.Errorf("loading projects: %w", err))
	}
	projects = store.SortByRecent(projects)
	w.state.Projects.Set(projects)

	if w.state.CurrentProjectID.Get() != id {
		return nil
	}

	next := ""
	if len(projects) > 0 {
		next = projects[0].ID
	}
	return w.switchTo(ctx, next)
}

// RenameProject changes a project's display name.
func (w *Workspace) RenameProject(ctx context.Context, id, name string) (store.Project, error) {
	p, err := w.store.RenameProject(ctx, id, name)
	if err != nil {
		return store.Project{}, w.fail("Failed to rename project", fmt.Errorf("renaming project: %w", err))
	}
	w.state.Projects.Update(func(list []store.Project) []store.Project {
		out := make([]store.Project, len(list))
		copy(out, list)
		for i := range out {
			if out[i].ID == id {
				out[i] = p
			}
		}
		return out
	})
	return p, nil
}

// RefreshProjects re-reads the project list, picking up UpdatedAt changes
// made by saves.
func (w *Workspace) RefreshProjects(ctx context.Context) error {
	projects, err := w.store.ListProjects(ctx)
	if err != nil {
		return w.fail("Failed to load projects", fmt.Errorf("loading projects: %w", err))
	}
	w.state.Projects.Set(store.SortByRecent(projects))
	return nil
}

// RefreshProjectData re-reads the current project's data from the store.
func (w *Workspace) RefreshProjectData(ctx context.Context) error {
	id := w.state.CurrentProjectID.Get()
	if err := w.loadData(ctx, id); err != nil {
		return w.fail("Failed to load project", err)
	}
	return nil
}

// SetTheme switches the theme and persists it.
func (w *Workspace) SetTheme(ctx context.Context, theme store.Theme) error {
	if !theme.Valid() {
		return w.fail("Unknown theme", fmt.Errorf("setting theme %q: %w", theme, store.ErrInvalidTheme))
	}
	w.state.Theme.Set(theme)
	if _, err := w.store.UpdateSettings(ctx, store.SettingsPatch{Theme: &theme}); err != nil {
		return w.fail("Failed to save settings", fmt.Errorf("saving theme: %w", err))
	}
	return nil
}

// SetViewMode selects which panes are shown.
func (w *Workspace) SetViewMode(mode state.ViewMode) error {
	if !mode.Valid() {
		return w.fail("Unknown view mode", fmt.Errorf("%w: %q", ErrInvalidViewMode, mode))
	}
	w.state.ViewMode.Set(mode)
	return nil
}

// UpdatePreview merges patch into the preview settings.
func (w *Workspace) UpdatePreview(patch state.PreviewPatch) (state.PreviewSettings, error) {
	if err := preview.ValidatePatch(patch); err != nil {
		return w.state.Preview.Get(), w.fail("Invalid preview settings", err)
	}
	return w.state.MergePreview(patch), nil
}

// ZoomIn enlarges the preview by one step.
func (w *Workspace) ZoomIn() state.PreviewSettings {
	return w.zoomBy(state.ZoomStep)
}

// ZoomOut shrinks the preview by one step.
func (w *Workspace) ZoomOut() state.PreviewSettings {
	return w.zoomBy(-state.ZoomStep)
}

// ResetZoom returns the preview to its natural size.
func (w *Workspace) ResetZoom() state.PreviewSettings {
	scale := 1.0
	return w.state.MergePreview(state.PreviewPatch{Scale: &scale})
}

func (w *Workspace) zoomBy(delta float64) state.PreviewSettings {
	return w.state.Preview.Update(func(p state.PreviewSettings) state.PreviewSettings {
		p.Scale = state.ClampScale(p.Scale + delta)
		return p
	})
}

// Close saves pending drawing edits and detaches the whiteboard.
func (w *Workspace) Close() {
	w.board.Close()
}

func (w *Workspace) handleSaved(projectID string, err error) {
	if err != nil {
		w.notify(state.NoticeError, "Failed to save drawing")
		return
	}
	if err := w.RefreshProjects(context.Background()); err != nil {
		log.Printf("workspace: refreshing projects after saving %s: %v", projectID, err)
	}
}

func (w *Workspace) fail(message string, err error) error {
	log.Printf("workspace: %v", err)
	w.notify(state.NoticeError, message)
	return err
}

func (w *Workspace) notify(level state.NoticeLevel, msg string) {
	w.state.Notice.Set(state.Notice{Level: level, Message: msg})
}

func containsProject(projects []store.Project, id string) bool {
	for _, p := range projects {
		if p.ID == id {
			return true
		}
	}
	return false
}
