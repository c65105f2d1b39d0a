// Package whiteboard connects a drawing canvas to project persistence.
package whiteboard

import (
	"encoding/json"
	"sync"

	"github.com/ziadkadry99/draw2ui/internal/store"
)

// Scene is the full content of the drawing canvas. Elements and files are
// kept in the canvas's own JSON encoding.
type Scene struct {
	Elements []json.RawMessage          `json:"elements"`
	AppState map[string]any             `json:"appState"`
	Files    map[string]json.RawMessage `json:"files,omitempty"`
}

type elementHeader struct {
	Type      string `json:"type"`
	IsDeleted bool   `json:"isDeleted"`
}

// ActiveElements returns the elements not marked as deleted.
func (s Scene) ActiveElements() []json.RawMessage {
	active := make([]json.RawMessage, 0, len(s.Elements))
	for _, raw := range s.Elements {
		var h elementHeader
		if err := json.Unmarshal(raw, &h); err != nil {
			continue
		}
		if !h.IsDeleted {
			active = append(active, raw)
		}
	}
	return active
}

// IsEmpty reports whether the scene has no visible elements.
func (s Scene) IsEmpty() bool {
	return len(s.ActiveElements()) == 0
}

// DefaultAppState returns the canvas settings for a project with no saved
// state.
func DefaultAppState(theme store.Theme) map[string]any {
	bg := "#ffffff"
	if theme == store.ThemeDark {
		bg = "hsl(240 10% 3.9%)"
	}
	return map[string]any{
		"viewBackgroundColor":   bg,
		"currentItemFontFamily": 1,
		"gridSize":              20,
	}
}

// SanitizeAppState returns a copy of appState suitable for persistence. The
// live collaborators list is replaced with an empty one.
func SanitizeAppState(appState map[string]any) map[string]any {
	clean := make(map[string]any, len(appState)+1)
	for k, v := range appState {
		clean[k] = v
	}
	clean["collaborators"] = []any{}
	return clean
}

// Canvas is the drawing widget as seen by the adapter.
type Canvas interface {
	Scene() Scene
	SetScene(Scene)
	OnChange(func(Scene)) (unsubscribe func())
}

// MemoryCanvas is an in-process Canvas. The browser widget pushes its scene
// into it with Apply; SetScene pushes the other way and is observed by the
// event stream.
type MemoryCanvas struct {
	mu     sync.Mutex
	scene  Scene
	nextID int
	subs   map[int]func(Scene)
	order  []int
}

// NewMemoryCanvas returns an empty canvas.
func NewMemoryCanvas() *MemoryCanvas {
	return &MemoryCanvas{
		scene: Scene{Elements: []json.RawMessage{}, AppState: map[string]any{}},
		subs:  make(map[int]func(Scene)),
	}
}

func (c *MemoryCanvas) Scene() Scene {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scene
}

// SetScene replaces the scene programmatically. Like the browser widget,
// this also fires change notifications.
func (c *MemoryCanvas) SetScene(s Scene) {
	c.Apply(s)
}

// Apply records a scene edited by the user and notifies observers.
func (c *MemoryCanvas) Apply(s Scene) {
	if s.Elements == nil {
		s.Elements = []json.RawMessage{}
	}
	if s.AppState == nil {
		s.AppState = map[string]any{}
	}

	c.mu.Lock()
	c.scene = s
	fns := make([]func(Scene), 0, len(c.order))
	for _, id := range c.order {
		fns = append(fns, c.subs[id])
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

func (c *MemoryCanvas) OnChange(fn func(Scene)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.order = append(c.order, id)

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subs[id]; !ok {
			return
		}
		delete(c.subs, id)
		for i, o := range c.order {
			if o == id {
				c.order = append(c.order[:i:i], c.order[i+1:]...)
				break
			}
		}
	}
}
