package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ziadkadry99/draw2ui/internal/db"
	"github.com/ziadkadry99/draw2ui/internal/generate"
	"github.com/ziadkadry99/draw2ui/internal/kv"
	"github.com/ziadkadry99/draw2ui/internal/raster"
	"github.com/ziadkadry99/draw2ui/internal/state"
	"github.com/ziadkadry99/draw2ui/internal/store"
	"github.com/ziadkadry99/draw2ui/internal/usage"
	"github.com/ziadkadry99/draw2ui/internal/whiteboard"
)

type fakeBoard struct {
	scene whiteboard.Scene
}

func (b *fakeBoard) Snapshot() whiteboard.Scene { return b.scene }

// MockGenerator records requests and returns a canned result.
type MockGenerator struct {
	mu    sync.Mutex
	Calls []generate.Request
	HTML  string
	Err   error
}

func (m *MockGenerator) Generate(_ context.Context, req generate.Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, req)
	return m.HTML, m.Err
}

type fixture struct {
	orch    *Orchestrator
	state   *state.State
	store   *store.Store
	limiter *usage.Limiter
	board   *fakeBoard
	gen     *MockGenerator
}

func drawing() whiteboard.Scene {
	return whiteboard.Scene{
		Elements: []json.RawMessage{json.RawMessage(`{"type":"rectangle","x":0,"y":0,"width":120,"height":80}`)},
		AppState: map[string]any{},
	}
}

func setup(t *testing.T) *fixture {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	backend := kv.NewSQLiteStore(database)
	t.Cleanup(func() { backend.Close() })

	day := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	f := &fixture{
		state:   state.New(),
		store:   store.New(backend),
		limiter: usage.New(backend, usage.WithClock(func() time.Time { return day }), usage.WithLocation(time.UTC)),
		board:   &fakeBoard{scene: drawing()},
		gen:     &MockGenerator{HTML: "<div>ok</div>"},
	}
	f.orch = New(f.state, f.board, f.store, f.limiter, f.gen, raster.NewWireframe(0))
	return f
}

func (f *fixture) selectNew(t *testing.T, name string) store.Project {
	t.Helper()
	p, err := f.store.CreateProject(context.Background(), name)
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	f.state.CurrentProjectID.Set(p.ID)
	return p
}

func TestCreateThenGenerate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.selectNew(t, "Test")
	f.state.DialogOpen.Set(true)

	html, err := f.orch.Generate(ctx, Input{Prompt: "dashboard"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if html != "<div>ok</div>" {
		t.Errorf("html = %q", html)
	}

	data, _ := f.store.GetProjectData(ctx, p.ID)
	if data.GeneratedHTML != "<div>ok</div>" {
		t.Errorf("stored html = %q", data.GeneratedHTML)
	}
	if n, _ := f.limiter.Count(ctx); n != 1 {
		t.Errorf("usage = %d, want 1", n)
	}

	if got := f.state.CurrentProjectData.Get(); got == nil || got.GeneratedHTML != "<div>ok</div>" {
		t.Errorf("CurrentProjectData = %+v", got)
	}
	if f.state.ViewMode.Get() != state.ViewSplit {
		t.Errorf("ViewMode = %s, want split", f.state.ViewMode.Get())
	}
	if f.state.Generating.Get() || f.state.DialogOpen.Get() {
		t.Error("Generating and DialogOpen must be cleared")
	}
	if f.state.Notice.Get().Level != state.NoticeInfo {
		t.Errorf("Notice = %+v", f.state.Notice.Get())
	}

	req := f.gen.Calls[0]
	if req.Prompt != "dashboard" || req.Theme != "dark" {
		t.Errorf("request = %+v", req)
	}
	if !strings.HasPrefix(req.Image, "data:image/png;base64,") {
		t.Errorf("image is not a png data uri: %.40s", req.Image)
	}
}

func TestGenerateNarrowSelectsCodeView(t *testing.T) {
	f := setup(t)
	f.selectNew(t, "p")

	if _, err := f.orch.Generate(context.Background(), Input{Narrow: true}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if f.state.ViewMode.Get() != state.ViewCode {
		t.Errorf("ViewMode = %s, want code", f.state.ViewMode.Get())
	}
}

func TestGenerateUsesClientImage(t *testing.T) {
	f := setup(t)
	f.selectNew(t, "p")

	f.orch.Generate(context.Background(), Input{Image: "data:image/png;base64,QUJD"})
	if got := f.gen.Calls[0].Image; got != "data:image/png;base64,QUJD" {
		t.Errorf("image = %q", got)
	}
}

func TestEmptySketchRejected(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.selectNew(t, "p")
	f.board.scene = whiteboard.Scene{Elements: []json.RawMessage{
		json.RawMessage(`{"type":"rectangle","isDeleted":true}`),
	}}
	f.state.DialogOpen.Set(true)

	_, err := f.orch.Generate(ctx, Input{Prompt: "x"})
	if !errors.Is(err, ErrEmptySketch) {
		t.Fatalf("expected ErrEmptySketch, got %v", err)
	}
	if len(f.gen.Calls) != 0 {
		t.Error("remote endpoint must not be called")
	}
	if n, _ := f.limiter.Count(ctx); n != 0 {
		t.Errorf("usage = %d, want 0", n)
	}
	if f.state.Notice.Get().Level != state.NoticeError {
		t.Error("expected an error notice")
	}
	if f.state.ViewMode.Get() != state.ViewSplit || f.state.CurrentProjectData.Get() != nil {
		t.Error("state must not change")
	}
	if f.state.DialogOpen.Get() {
		t.Error("dialog should be closed after a rejection")
	}
}

func TestNoProjectRejected(t *testing.T) {
	f := setup(t)
	f.state.DialogOpen.Set(true)
	_, err := f.orch.Generate(context.Background(), Input{})
	if !errors.Is(err, ErrNoProject) {
		t.Errorf("expected ErrNoProject, got %v", err)
	}
	if len(f.gen.Calls) != 0 {
		t.Error("remote endpoint must not be called")
	}
	if f.state.DialogOpen.Get() || f.state.Generating.Get() {
		t.Error("dialog should be closed after a rejection")
	}
}

func TestQuotaExhausted(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.selectNew(t, "p")

	for i := 0; i < 3; i++ {
		if _, err := f.orch.Generate(ctx, Input{}); err != nil {
			t.Fatalf("generation %d: %v", i+1, err)
		}
	}

	f.state.DialogOpen.Set(true)
	_, err := f.orch.Generate(ctx, Input{})
	if !errors.Is(err, ErrQuotaExhausted) {
		t.Fatalf("expected ErrQuotaExhausted, got %v", err)
	}
	if len(f.gen.Calls) != 3 {
		t.Errorf("remote calls = %d, want 3", len(f.gen.Calls))
	}
	if f.state.DialogOpen.Get() || f.state.Generating.Get() {
		t.Error("dialog and generating flag must be cleared")
	}
}

func TestRemoteFailure(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := f.selectNew(t, "p")
	f.gen.Err = &generate.APIError{StatusCode: 500, Message: "Failed to generate UI"}
	f.state.DialogOpen.Set(true)

	_, err := f.orch.Generate(ctx, Input{})
	var apiErr *generate.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected wrapped APIError, got %v", err)
	}

	data, _ := f.store.GetProjectData(ctx, p.ID)
	if data.GeneratedHTML != "" {
		t.Error("nothing should be persisted on failure")
	}
	if n, _ := f.limiter.Count(ctx); n != 0 {
		t.Errorf("usage = %d, want 0", n)
	}
	if f.state.Generating.Get() || f.state.DialogOpen.Get() {
		t.Error("Generating and DialogOpen must be cleared")
	}
	if n := f.state.Notice.Get(); n.Level != state.NoticeError || n.Message != msgFailure {
		t.Errorf("Notice = %+v", n)
	}
}

func TestGeneratingFlagDuringCall(t *testing.T) {
	f := setup(t)
	f.selectNew(t, "p")

	var sawGenerating bool
	f.state.Generating.Subscribe(func(v bool) {
		if v {
			sawGenerating = true
		}
	})
	f.orch.Generate(context.Background(), Input{})
	if !sawGenerating {
		t.Error("Generating was never set")
	}
}

func TestOpenDialog(t *testing.T) {
	f := setup(t)
	if err := f.orch.OpenDialog(); err != nil {
		t.Fatalf("OpenDialog: %v", err)
	}
	if !f.state.DialogOpen.Get() {
		t.Error("dialog should be open")
	}
	f.orch.CloseDialog()
	if f.state.DialogOpen.Get() {
		t.Error("dialog should be closed")
	}

	f.board.scene = whiteboard.Scene{}
	if err := f.orch.OpenDialog(); !errors.Is(err, ErrEmptySketch) {
		t.Errorf("expected ErrEmptySketch, got %v", err)
	}
	if f.state.DialogOpen.Get() {
		t.Error("dialog must stay closed for an empty sketch")
	}
}
