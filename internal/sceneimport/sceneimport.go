// Package sceneimport turns .excalidraw scene files into draw2ui projects.
package sceneimport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ziadkadry99/draw2ui/internal/progress"
	"github.com/ziadkadry99/draw2ui/internal/store"
	"github.com/ziadkadry99/draw2ui/internal/whiteboard"
)

// ErrNotScene is returned for JSON that is not an Excalidraw scene.
var ErrNotScene = errors.New("not an excalidraw scene")

const sceneType = "excalidraw"

type sceneFile struct {
	Type     string                     `json:"type"`
	Version  int                        `json:"version"`
	Source   string                     `json:"source"`
	Elements []json.RawMessage          `json:"elements"`
	AppState map[string]any             `json:"appState"`
	Files    map[string]json.RawMessage `json:"files"`
}

// ParseScene decodes an .excalidraw document.
func ParseScene(data []byte) (whiteboard.Scene, error) {
	var f sceneFile
	if err := json.Unmarshal(data, &f); err != nil {
		return whiteboard.Scene{}, fmt.Errorf("%w: %v", ErrNotScene, err)
	}
	if f.Type != sceneType {
		return whiteboard.Scene{}, fmt.Errorf("%w: type is %q", ErrNotScene, f.Type)
	}
	if f.Elements == nil {
		f.Elements = []json.RawMessage{}
	}
	if f.AppState == nil {
		f.AppState = map[string]any{}
	}
	return whiteboard.Scene{Elements: f.Elements, AppState: f.AppState, Files: f.Files}, nil
}

// ReadScene reads and decodes an .excalidraw file.
func ReadScene(path string) (whiteboard.Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return whiteboard.Scene{}, fmt.Errorf("reading scene: %w", err)
	}
	scene, err := ParseScene(data)
	if err != nil {
		return whiteboard.Scene{}, fmt.Errorf("%s: %w", path, err)
	}
	return scene, nil
}

// ProjectName derives a project name from a file path: its stem.
func ProjectName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ProjectWriter creates projects and stores their drawings.
type ProjectWriter interface {
	CreateProject(ctx context.Context, name string) (store.Project, error)
	UpdateProjectData(ctx context.Context, id string, patch store.ProjectDataPatch) error
}

// Result is the outcome of importing one file.
type Result struct {
	File    File
	Project store.Project
	Err     error
}

// Importer creates one project per scene file.
type Importer struct {
	projects ProjectWriter
	reporter progress.Reporter
}

// NewImporter creates an Importer. reporter may be nil.
func NewImporter(projects ProjectWriter, reporter progress.Reporter) *Importer {
	return &Importer{projects: projects, reporter: reporter}
}

// Import imports every file. A file that fails is recorded in its Result and
// does not stop the others; the returned error is only for cancellation.
func (im *Importer) Import(ctx context.Context, files []File) ([]Result, error) {
	if im.reporter != nil {
		im.reporter.Start(len(files))
		defer im.reporter.Finish()
	}

	results := make([]Result, 0, len(files))
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		p, err := im.importFile(ctx, f)
		results = append(results, Result{File: f, Project: p, Err: err})
		if im.reporter != nil {
			im.reporter.Update(i+1, f.RelPath)
		}
	}
	return results, nil
}

func (im *Importer) importFile(ctx context.Context, f File) (store.Project, error) {
	scene, err := ReadScene(f.Path)
	if err != nil {
		return store.Project{}, err
	}

	p, err := im.projects.CreateProject(ctx, ProjectName(f.Path))
	if err != nil {
		return store.Project{}, fmt.Errorf("creating project for %s: %w", f.RelPath, err)
	}

	elements := scene.Elements
	appState := whiteboard.SanitizeAppState(scene.AppState)
	err = im.projects.UpdateProjectData(ctx, p.ID, store.ProjectDataPatch{
		Elements: &elements,
		AppState: &appState,
	})
	if err != nil {
		return p, fmt.Errorf("saving drawing for %s: %w", f.RelPath, err)
	}
	return p, nil
}
