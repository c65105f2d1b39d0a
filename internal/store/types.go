package store

import (
	"encoding/json"
	"time"
)

// Theme is the UI colour scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Valid reports whether t is one of the known themes.
func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark
}

// Project is the metadata of one sketch-to-UI workspace. The drawing and the
// generated markup live in the matching ProjectData record.
type Project struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// projectJSON is the persisted shape: timestamps as Unix milliseconds.
type projectJSON struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

func (p Project) MarshalJSON() ([]byte, error) {
	return json.Marshal(projectJSON{
		ID:        p.ID,
		Name:      p.Name,
		CreatedAt: p.CreatedAt.UnixMilli(),
		UpdatedAt: p.UpdatedAt.UnixMilli(),
	})
}

func (p *Project) UnmarshalJSON(data []byte) error {
	var raw projectJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.ID = raw.ID
	p.Name = raw.Name
	p.CreatedAt = time.UnixMilli(raw.CreatedAt)
	p.UpdatedAt = time.UnixMilli(raw.UpdatedAt)
	return nil
}

// ProjectData holds the drawing content and generation result of a project.
// Elements and AppState are opaque drawing-canvas payloads.
type ProjectData struct {
	ID            string            `json:"id"`
	Elements      []json.RawMessage `json:"elements"`
	AppState      map[string]any    `json:"appState"`
	GeneratedHTML string            `json:"generatedHtml"`
}

// emptyProjectData returns the default-shaped record for id.
func emptyProjectData(id string) ProjectData {
	return ProjectData{
		ID:       id,
		Elements: []json.RawMessage{},
		AppState: map[string]any{},
	}
}

// normalize replaces nil collections so they encode as [] and {}.
func (d *ProjectData) normalize() {
	if d.Elements == nil {
		d.Elements = []json.RawMessage{}
	}
	if d.AppState == nil {
		d.AppState = map[string]any{}
	}
}

// ProjectDataPatch is a partial update of ProjectData. Nil fields are left
// unchanged; set fields overwrite the stored value entirely.
type ProjectDataPatch struct {
	Elements      *[]json.RawMessage
	AppState      *map[string]any
	GeneratedHTML *string
}

// Apply returns d with the patch's set fields overwritten.
func (d ProjectData) Apply(p ProjectDataPatch) ProjectData {
	if p.Elements != nil {
		d.Elements = *p.Elements
	}
	if p.AppState != nil {
		d.AppState = *p.AppState
	}
	if p.GeneratedHTML != nil {
		d.GeneratedHTML = *p.GeneratedHTML
	}
	d.normalize()
	return d
}

// Settings are the global, project-independent preferences.
type Settings struct {
	Theme   Theme `json:"theme"`
	Credits int   `json:"credits"`
}

// DefaultSettings returns the settings used when none were saved.
func DefaultSettings() Settings {
	return Settings{Theme: ThemeDark, Credits: 10}
}

// SettingsPatch is a partial update of Settings.
type SettingsPatch struct {
	Theme   *Theme `json:"theme,omitempty"`
	Credits *int   `json:"credits,omitempty"`
}

// Apply returns s with the patch's set fields overwritten.
func (s Settings) Apply(p SettingsPatch) Settings {
	if p.Theme != nil {
		s.Theme = *p.Theme
	}
	if p.Credits != nil {
		s.Credits = *p.Credits
	}
	return s
}
