// Package orchestrator runs the "generate UI from sketch" action end to end.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/ziadkadry99/draw2ui/internal/generate"
	"github.com/ziadkadry99/draw2ui/internal/raster"
	"github.com/ziadkadry99/draw2ui/internal/state"
	"github.com/ziadkadry99/draw2ui/internal/store"
	"github.com/ziadkadry99/draw2ui/internal/usage"
	"github.com/ziadkadry99/draw2ui/internal/whiteboard"
)

var (
	ErrEmptySketch    = errors.New("the whiteboard is empty, draw something first")
	ErrNoProject      = errors.New("select or create a project first")
	ErrQuotaExhausted = errors.New("daily generation limit reached, try again tomorrow")
	ErrBusy           = errors.New("a generation is already running")
)

// Messages shown to the user.
const (
	msgSuccess = "UI generated"
	msgFailure = "Failed to generate the UI. Check the logs for details."
)

// Snapshotter exposes the live whiteboard scene.
type Snapshotter interface {
	Snapshot() whiteboard.Scene
}

// ProjectStore persists generated markup.
type ProjectStore interface {
	GetProjectData(ctx context.Context, id string) (*store.ProjectData, error)
	UpdateProjectData(ctx context.Context, id string, patch store.ProjectDataPatch) error
}

// Quota is the daily usage cap.
type Quota interface {
	Check(ctx context.Context) (usage.Status, error)
	Increment(ctx context.Context) error
}

// Input is one generation request from the user.
type Input struct {
	Prompt string `json:"prompt"`
	// Narrow selects the code-only view on success, for small screens.
	Narrow bool `json:"narrow"`
	// Image is an optional client-rendered data URI of the sketch; when
	// empty the scene is rasterized server-side.
	Image string `json:"image,omitempty"`
}

// Orchestrator sequences validation, quota, rasterization, the remote
// call and persistence, and reports the outcome through the state cells.
type Orchestrator struct {
	state      *state.State
	board      Snapshotter
	projects   ProjectStore
	quota      Quota
	generator  generate.Generator
	rasterizer raster.Rasterizer
	running    atomic.Bool
}

// New wires an Orchestrator.
func New(st *state.State, board Snapshotter, projects ProjectStore, quota Quota, gen generate.Generator, r raster.Rasterizer) *Orchestrator {
	return &Orchestrator{
		state:      st,
		board:      board,
		projects:   projects,
		quota:      quota,
		generator:  gen,
		rasterizer: r,
	}
}

// OpenDialog opens the prompt dialog if the sketch can be generated from.
func (o *Orchestrator) OpenDialog() error {
	if o.board.Snapshot().IsEmpty() {
		o.notify(state.NoticeError, ErrEmptySketch.Error())
		return ErrEmptySketch
	}
	o.state.DialogOpen.Set(true)
	return nil
}

// CloseDialog dismisses the prompt dialog.
func (o *Orchestrator) CloseDialog() {
	o.state.DialogOpen.Set(false)
}

// Generate runs one generation and returns the persisted markup. Every
// failure is reported as an error notice; the Generating flag and the
// dialog are always cleared before returning.
func (o *Orchestrator) Generate(ctx context.Context, in Input) (string, error) {
	scene := o.board.Snapshot()
	if scene.IsEmpty() {
		o.finish()
		o.notify(state.NoticeError, ErrEmptySketch.Error())
		return "", ErrEmptySketch
	}

	projectID := o.state.CurrentProjectID.Get()
	if projectID == "" {
		o.finish()
		o.notify(state.NoticeError, ErrNoProject.Error())
		return "", ErrNoProject
	}

	if !o.running.CompareAndSwap(false, true) {
		return "", ErrBusy
	}
	defer o.running.Store(false)

	status, err := o.quota.Check(ctx)
	if err != nil {
		log.Printf("orchestrator: checking usage: %v", err)
		o.finish()
		o.notify(state.NoticeError, msgFailure)
		return "", fmt.Errorf("checking usage: %w", err)
	}
	if !status.Allowed {
		o.finish()
		o.notify(state.NoticeError, ErrQuotaExhausted.Error())
		return "", ErrQuotaExhausted
	}

	o.state.Generating.Set(true)
	defer o.finish()

	html, err := o.run(ctx, projectID, scene, in)
	if err != nil {
		log.Printf("orchestrator: generation for %s failed: %v", projectID, err)
		o.notify(state.NoticeError, msgFailure)
		return "", err
	}

	o.notify(state.NoticeInfo, msgSuccess)
	return html, nil
}

func (o *Orchestrator) run(ctx context.Context, projectID string, scene whiteboard.Scene, in Input) (string, error) {
	image := in.Image
	if image == "" {
		png, err := o.rasterizer.Rasterize(ctx, scene)
		if err != nil {
			return "", fmt.Errorf("rasterizing sketch: %w", err)
		}
		image = raster.DataURI(png)
	}

	html, err := o.generator.Generate(ctx, generate.Request{
		Image:  image,
		Prompt: in.Prompt,
		Theme:  string(o.state.Theme.Get()),
	})
	if err != nil {
		return "", fmt.Errorf("generating: %w", err)
	}
	if html == "" {
		return "", errors.New("generating: empty markup returned")
	}

	if err := o.projects.UpdateProjectData(ctx, projectID, store.ProjectDataPatch{GeneratedHTML: &html}); err != nil {
		return "", fmt.Errorf("saving markup: %w", err)
	}

	fresh, err := o.projects.GetProjectData(ctx, projectID)
	if err != nil {
		return "", fmt.Errorf("reloading project: %w", err)
	}
	if o.state.CurrentProjectID.Get() == projectID {
		o.state.CurrentProjectData.Set(fresh)
	}

	if err := o.quota.Increment(ctx); err != nil {
		// The markup is already saved; a lost count only loosens the soft cap.
		log.Printf("orchestrator: recording usage: %v", err)
	}

	if in.Narrow {
		o.state.ViewMode.Set(state.ViewCode)
	} else {
		o.state.ViewMode.Set(state.ViewSplit)
	}

	return fresh.GeneratedHTML, nil
}

func (o *Orchestrator) finish() {
	o.state.Generating.Set(false)
	o.state.DialogOpen.Set(false)
}

func (o *Orchestrator) notify(level state.NoticeLevel, msg string) {
	o.state.Notice.Set(state.Notice{Level: level, Message: msg})
}
