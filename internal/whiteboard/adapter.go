package whiteboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ziadkadry99/draw2ui/internal/debounce"
	"github.com/ziadkadry99/draw2ui/internal/store"
)

// DefaultAutosaveDelay is the quiet period before a drawing change is saved.
const DefaultAutosaveDelay = time.Second

// ErrNotAttached is returned when switching projects before a canvas is
// attached.
var ErrNotAttached = errors.New("whiteboard: no canvas attached")

// DataStore is the persistence the adapter loads from and saves to.
type DataStore interface {
	GetProjectData(ctx context.Context, id string) (*store.ProjectData, error)
	UpdateProjectData(ctx context.Context, id string, patch store.ProjectDataPatch) error
}

// Status is the adapter's lifecycle state.
type Status int

const (
	Unloaded Status = iota
	Loading
	Ready
	SwitchingProject
)

func (s Status) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case SwitchingProject:
		return "switching"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Adapter loads a project's drawing into the canvas and autosaves user edits
// after a quiet period. Edits are only saved while the adapter is Ready, so
// scenes set during loading never echo back into storage.
type Adapter struct {
	store     DataStore
	theme     func() store.Theme
	debouncer *debounce.Debouncer

	mu          sync.Mutex
	status      Status
	projectID   string
	canvas      Canvas
	unsubscribe func()
	ctx         context.Context
	onSaved     func(projectID string, err error)
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithAutosaveDelay overrides DefaultAutosaveDelay.
func WithAutosaveDelay(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.debouncer = debounce.New(d)
		}
	}
}

// WithTheme supplies the theme used to pick the default background colour.
func WithTheme(theme func() store.Theme) Option {
	return func(a *Adapter) { a.theme = theme }
}

// NewAdapter creates an Unloaded adapter.
func NewAdapter(ds DataStore, opts ...Option) *Adapter {
	a := &Adapter{
		store:     ds,
		theme:     func() store.Theme { return store.ThemeDark },
		debouncer: debounce.New(DefaultAutosaveDelay),
		ctx:       context.Background(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// OnSaved registers a hook called after every autosave attempt.
func (a *Adapter) OnSaved(fn func(projectID string, err error)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onSaved = fn
}

// Status returns the current lifecycle state.
func (a *Adapter) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// ProjectID returns the project the canvas is bound to, or "".
func (a *Adapter) ProjectID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.projectID
}

// Attach binds the canvas once it signals readiness and loads projectID
// into it. An empty projectID leaves the canvas unbound; edits are then not
// saved.
func (a *Adapter) Attach(ctx context.Context, canvas Canvas, projectID string) error {
	a.mu.Lock()
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	a.canvas = canvas
	a.ctx = context.WithoutCancel(ctx)
	a.status = Loading
	a.unsubscribe = canvas.OnChange(a.handleChange)
	a.mu.Unlock()

	return a.load(ctx, projectID)
}

// SwitchProject saves any pending edit of the current project, then loads
// id into the canvas.
func (a *Adapter) SwitchProject(ctx context.Context, id string) error {
	a.mu.Lock()
	if a.canvas == nil {
		a.mu.Unlock()
		return ErrNotAttached
	}
	a.status = SwitchingProject
	a.mu.Unlock()

	a.debouncer.Flush()

	a.mu.Lock()
	a.status = Loading
	a.mu.Unlock()

	return a.load(ctx, id)
}

// Release unbinds the canvas from id and writes any pending edit of it, so
// no save for id can happen once Release returns. Later edits are not saved
// until the next SwitchProject. It reports whether the canvas was bound to id.
func (a *Adapter) Release(id string) bool {
	a.mu.Lock()
	if id == "" || a.projectID != id {
		a.mu.Unlock()
		return false
	}
	a.projectID = ""
	a.mu.Unlock()

	// Flush also waits for a timer-fired save that is already running.
	a.debouncer.Flush()
	return true
}

// load fills the canvas with the data of id and returns to Ready. The
// adapter must be in Loading.
func (a *Adapter) load(ctx context.Context, id string) error {
	scene := Scene{Elements: []json.RawMessage{}, AppState: DefaultAppState(a.theme())}
	var loadErr error

	if id != "" {
		data, err := a.store.GetProjectData(ctx, id)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			loadErr = fmt.Errorf("loading drawing for %s: %w", id, err)
			id = ""
		default:
			scene.Elements = data.Elements
			if len(data.AppState) > 0 {
				scene.AppState = SanitizeAppState(data.AppState)
			}
		}
	}

	a.mu.Lock()
	a.projectID = id
	canvas := a.canvas
	a.mu.Unlock()

	// SetScene fires change notifications, which are dropped while Loading.
	canvas.SetScene(scene)

	a.mu.Lock()
	a.status = Ready
	a.mu.Unlock()

	return loadErr
}

func (a *Adapter) handleChange(scene Scene) {
	a.mu.Lock()
	if a.status != Ready || a.projectID == "" {
		a.mu.Unlock()
		return
	}
	id := a.projectID
	ctx := a.ctx
	a.mu.Unlock()

	a.debouncer.Schedule(func() { a.save(ctx, id, scene) })
}

func (a *Adapter) save(ctx context.Context, id string, scene Scene) {
	elements := scene.Elements
	if elements == nil {
		elements = []json.RawMessage{}
	}
	appState := SanitizeAppState(scene.AppState)

	err := a.store.UpdateProjectData(ctx, id, store.ProjectDataPatch{
		Elements: &elements,
		AppState: &appState,
	})
	if err != nil {
		log.Printf("whiteboard: autosave of %s failed: %v", id, err)
	}

	a.mu.Lock()
	hook := a.onSaved
	a.mu.Unlock()
	if hook != nil {
		hook(id, err)
	}
}

// Snapshot returns the live canvas scene, which may be newer than what is
// persisted.
func (a *Adapter) Snapshot() Scene {
	a.mu.Lock()
	canvas := a.canvas
	a.mu.Unlock()

	if canvas == nil {
		return Scene{Elements: []json.RawMessage{}, AppState: map[string]any{}}
	}
	return canvas.Scene()
}

// Flush writes any pending autosave now. It reports whether one ran.
func (a *Adapter) Flush() bool {
	return a.debouncer.Flush()
}

// Close flushes pending edits and detaches from the canvas.
func (a *Adapter) Close() {
	a.debouncer.Flush()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
	}
	a.canvas = nil
	a.projectID = ""
	a.status = Unloaded
}
