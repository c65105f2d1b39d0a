package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ziadkadry99/draw2ui/internal/db"
	"github.com/ziadkadry99/draw2ui/internal/kv"
	"github.com/ziadkadry99/draw2ui/internal/preview"
	"github.com/ziadkadry99/draw2ui/internal/state"
	"github.com/ziadkadry99/draw2ui/internal/store"
	"github.com/ziadkadry99/draw2ui/internal/whiteboard"
)

type fixture struct {
	ws     *Workspace
	store  *store.Store
	state  *state.State
	board  *whiteboard.Adapter
	canvas *whiteboard.MemoryCanvas
	now    time.Time
}

func setup(t *testing.T) *fixture {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	backend := kv.NewSQLiteStore(database)
	t.Cleanup(func() { backend.Close() })

	f := &fixture{now: time.UnixMilli(1_700_000_000_000)}
	f.store = store.New(backend, store.WithClock(func() time.Time {
		f.now = f.now.Add(time.Second)
		return f.now
	}))
	f.state = state.New()
	f.canvas = whiteboard.NewMemoryCanvas()
	f.board = whiteboard.NewAdapter(f.store,
		whiteboard.WithAutosaveDelay(time.Hour),
		whiteboard.WithTheme(f.state.Theme.Get),
	)
	f.ws = New(f.store, f.state, f.board, f.canvas)
	t.Cleanup(f.ws.Close)
	return f
}

func rect(id string) json.RawMessage {
	return json.RawMessage(`{"id":"` + id + `","type":"rectangle","x":0,"y":0,"width":10,"height":10}`)
}

func TestLoadEmpty(t *testing.T) {
	f := setup(t)
	if err := f.ws.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := f.state.CurrentProjectID.Get(); got != "" {
		t.Errorf("current project = %q, want none", got)
	}
	if f.board.Status() != whiteboard.Ready {
		t.Errorf("board status = %v, want ready", f.board.Status())
	}
	if f.state.Theme.Get() != store.ThemeDark {
		t.Errorf("theme = %q", f.state.Theme.Get())
	}
}

func TestLoadSelectsMostRecent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	older, _ := f.store.CreateProject(ctx, "Older")
	newer, _ := f.store.CreateProject(ctx, "Newer")
	elements := []json.RawMessage{rect("a")}
	f.store.UpdateProjectData(ctx, newer.ID, store.ProjectDataPatch{Elements: &elements})

	if err := f.ws.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := f.state.CurrentProjectID.Get(); got != newer.ID {
		t.Errorf("current = %q, want %q", got, newer.ID)
	}
	projects := f.state.Projects.Get()
	if len(projects) != 2 || projects[0].ID != newer.ID || projects[1].ID != older.ID {
		t.Errorf("projects = %+v", projects)
	}
	if got := len(f.canvas.Scene().Elements); got != 1 {
		t.Errorf("canvas elements = %d, want 1", got)
	}
}

func TestCreateProjectDefaultsNameAndSelects(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.ws.Load(ctx)

	p1, err := f.ws.CreateProject(ctx, "")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if p1.Name != "Project 1" {
		t.Errorf("name = %q, want Project 1", p1.Name)
	}
	p2, _ := f.ws.CreateProject(ctx, "  ")
	if p2.Name != "Project 2" {
		t.Errorf("name = %q, want Project 2", p2.Name)
	}

	projects := f.state.Projects.Get()
	if len(projects) != 2 || projects[0].ID != p2.ID {
		t.Errorf("new project should be first: %+v", projects)
	}
	if f.state.CurrentProjectID.Get() != p2.ID {
		t.Error("new project should be selected")
	}
	if f.board.ProjectID() != p2.ID {
		t.Errorf("board bound to %q", f.board.ProjectID())
	}
	if data := f.state.CurrentProjectData.Get(); data == nil || data.ID != p2.ID {
		t.Errorf("current data = %+v", data)
	}
}

func TestSelectProjectFlushesPendingEdit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.ws.Load(ctx)
	a, _ := f.ws.CreateProject(ctx, "A")
	b, _ := f.ws.CreateProject(ctx, "B")
	f.ws.SelectProject(ctx, a.ID)

	f.canvas.Apply(whiteboard.Scene{Elements: []json.RawMessage{rect("x")}})
	if err := f.ws.SelectProject(ctx, b.ID); err != nil {
		t.Fatalf("SelectProject: %v", err)
	}

	data, err := f.store.GetProjectData(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetProjectData: %v", err)
	}
	if len(data.Elements) != 1 {
		t.Errorf("pending edit of A not saved: %d elements", len(data.Elements))
	}
	if len(f.canvas.Scene().Elements) != 0 {
		t.Error("canvas should show B's empty drawing")
	}
}

func TestSelectUnknownProject(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.ws.Load(ctx)

	err := f.ws.SelectProject(ctx, "nope")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if n := f.state.Notice.Get(); n.Level != state.NoticeError || n.Message != "Project not found" {
		t.Errorf("notice = %+v", n)
	}
}

func TestDeleteCurrentFallsBack(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.ws.Load(ctx)
	a, _ := f.ws.CreateProject(ctx, "A")
	b, _ := f.ws.CreateProject(ctx, "B")

	if err := f.ws.DeleteProject(ctx, b.ID); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	if got := f.state.CurrentProjectID.Get(); got != a.ID {
		t.Errorf("current = %q, want %q", got, a.ID)
	}

	if err := f.ws.DeleteProject(ctx, a.ID); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	if got := f.state.CurrentProjectID.Get(); got != "" {
		t.Errorf("current = %q, want none", got)
	}
	if f.state.CurrentProjectData.Get() != nil {
		t.Error("current data should be cleared")
	}
	if len(f.state.Projects.Get()) != 0 {
		t.Error("projects should be empty")
	}
}

func TestDeleteCurrentDropsPendingDrawing(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.ws.Load(ctx)
	a, _ := f.ws.CreateProject(ctx, "A")
	b, _ := f.ws.CreateProject(ctx, "B")

	f.canvas.Apply(whiteboard.Scene{
		Elements: []json.RawMessage{rect("unsaved")},
		AppState: map[string]any{},
	})
	if err := f.ws.DeleteProject(ctx, b.ID); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}

	if _, err := f.store.GetProjectData(ctx, b.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("deleted project data still readable: err=%v", err)
	}
	if f.board.Flush() {
		t.Error("no save should remain queued for the deleted project")
	}
	if _, err := f.store.GetProjectData(ctx, b.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("deleted project data recreated after flush: err=%v", err)
	}

	if got := f.board.ProjectID(); got != a.ID {
		t.Errorf("board bound to %q, want %q", got, a.ID)
	}
	data, err := f.store.GetProjectData(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetProjectData(A): %v", err)
	}
	if len(data.Elements) != 0 {
		t.Errorf("A picked up the deleted drawing: %d elements", len(data.Elements))
	}
}

func TestDeleteOtherKeepsSelection(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.ws.Load(ctx)
	a, _ := f.ws.CreateProject(ctx, "A")
	b, _ := f.ws.CreateProject(ctx, "B")

	f.ws.DeleteProject(ctx, a.ID)
	if got := f.state.CurrentProjectID.Get(); got != b.ID {
		t.Errorf("current = %q, want %q", got, b.ID)
	}
}

func TestRenameProject(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.ws.Load(ctx)
	p, _ := f.ws.CreateProject(ctx, "Old")

	if _, err := f.ws.RenameProject(ctx, p.ID, "  New  "); err != nil {
		t.Fatalf("RenameProject: %v", err)
	}
	if got := f.state.Projects.Get()[0].Name; got != "New" {
		t.Errorf("cached name = %q", got)
	}

	if _, err := f.ws.RenameProject(ctx, p.ID, ""); !errors.Is(err, store.ErrInvalidName) {
		t.Errorf("err = %v, want ErrInvalidName", err)
	}
}

func TestSetThemePersists(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	if err := f.ws.SetTheme(ctx, store.ThemeLight); err != nil {
		t.Fatalf("SetTheme: %v", err)
	}
	settings, _ := f.store.GetSettings(ctx)
	if settings.Theme != store.ThemeLight || f.state.Theme.Get() != store.ThemeLight {
		t.Errorf("theme not applied: settings=%q cell=%q", settings.Theme, f.state.Theme.Get())
	}
	if err := f.ws.SetTheme(ctx, "sepia"); err == nil {
		t.Error("expected error for unknown theme")
	}
}

func TestViewModeAndPreview(t *testing.T) {
	f := setup(t)

	if err := f.ws.SetViewMode(state.ViewCode); err != nil {
		t.Fatalf("SetViewMode: %v", err)
	}
	if err := f.ws.SetViewMode("grid"); !errors.Is(err, ErrInvalidViewMode) {
		t.Errorf("err = %v", err)
	}

	red := "red"
	p, err := f.ws.UpdatePreview(state.PreviewPatch{ThemeColor: &red})
	if err != nil || p.ThemeColor != "red" || p.Font != "font-sans" {
		t.Errorf("UpdatePreview = %+v, %v", p, err)
	}
	pink := "pink"
	if _, err := f.ws.UpdatePreview(state.PreviewPatch{ThemeColor: &pink}); !errors.Is(err, preview.ErrInvalidSettings) {
		t.Errorf("err = %v", err)
	}
}

func TestZoom(t *testing.T) {
	f := setup(t)

	if got := f.ws.ZoomIn().Scale; got != 1.1 {
		t.Errorf("ZoomIn = %v", got)
	}
	for i := 0; i < 30; i++ {
		f.ws.ZoomIn()
	}
	if got := f.state.Preview.Get().Scale; got != state.MaxScale {
		t.Errorf("scale = %v, want max", got)
	}
	for i := 0; i < 30; i++ {
		f.ws.ZoomOut()
	}
	if got := f.state.Preview.Get().Scale; got != state.MinScale {
		t.Errorf("scale = %v, want min", got)
	}
	if got := f.ws.ResetZoom().Scale; got != 1 {
		t.Errorf("ResetZoom = %v", got)
	}
}

func TestAutosaveRefreshesProjects(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.ws.Load(ctx)
	a, _ := f.ws.CreateProject(ctx, "A")
	b, _ := f.ws.CreateProject(ctx, "B")
	f.ws.SelectProject(ctx, a.ID)

	f.canvas.Apply(whiteboard.Scene{Elements: []json.RawMessage{rect("x")}})
	if !f.board.Flush() {
		t.Fatal("expected a pending save")
	}

	projects := f.state.Projects.Get()
	if projects[0].ID != a.ID || projects[1].ID != b.ID {
		t.Errorf("saved project should move to the top: %+v", projects)
	}
}

func TestRefreshProjectData(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.ws.Load(ctx)
	p, _ := f.ws.CreateProject(ctx, "A")

	html := "<div>hi</div>"
	f.store.UpdateProjectData(ctx, p.ID, store.ProjectDataPatch{GeneratedHTML: &html})
	if err := f.ws.RefreshProjectData(ctx); err != nil {
		t.Fatalf("RefreshProjectData: %v", err)
	}
	if got := f.state.CurrentProjectData.Get().GeneratedHTML; got != html {
		t.Errorf("generated html = %q", got)
	}
}
