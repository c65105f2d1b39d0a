// Package store is the local persistence layer for projects, their drawing
// data and the global settings.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/draw2ui/internal/kv"
)

// Persisted key layout.
const (
	ProjectsKey       = "projects-index"
	SettingsKey       = "settings"
	projectDataPrefix = "project-"
)

var (
	// ErrNotFound is returned when a project or its data does not exist.
	ErrNotFound = errors.New("project not found")
	// ErrInvalidName is returned for empty project names.
	ErrInvalidName = errors.New("project name must not be empty")
	// ErrInvalidTheme is returned for themes other than light and dark.
	ErrInvalidTheme = errors.New("theme must be light or dark")
)

// ProjectDataKey returns the key under which the data of project id is stored.
func ProjectDataKey(id string) string {
	return projectDataPrefix + id
}

// Store provides CRUD operations over projects, project data and settings.
type Store struct {
	kv  kv.Store
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store persisting through the given backend.
func New(backend kv.Store, opts ...Option) *Store {
	s := &Store{kv: backend, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListProjects returns all projects in storage order. It returns an empty
// slice when none exist.
func (s *Store) ListProjects(ctx context.Context) ([]Project, error) {
	raw, err := s.kv.Get(ctx, ProjectsKey)
	if errors.Is(err, kv.ErrNotFound) {
		return []Project{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading projects: %w", err)
	}
	return decodeProjects(raw, true)
}

// CreateProject appends a new project to the index and initializes its empty
// data record.
func (s *Store) CreateProject(ctx context.Context, name string) (Project, error) {
	now := s.now()
	p := Project{Name: name, CreatedAt: now, UpdatedAt: now}

	err := s.updateProjects(ctx, func(projects []Project) ([]Project, error) {
		p.ID = newProjectID(projects)
		return append(projects, p), nil
	})
	if err != nil {
		return Project{}, fmt.Errorf("creating project: %w", err)
	}

	if err := s.putProjectData(ctx, emptyProjectData(p.ID)); err != nil {
		return Project{}, fmt.Errorf("initializing project data: %w", err)
	}

	return p, nil
}

// GetProjectData returns the data of project id, or ErrNotFound.
func (s *Store) GetProjectData(ctx context.Context, id string) (*ProjectData, error) {
	raw, err := s.kv.Get(ctx, ProjectDataKey(id))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading project data %s: %w", id, err)
	}

	var d ProjectData
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decoding project data %s: %w", id, err)
	}
	d.normalize()
	return &d, nil
}

// UpdateProjectData merges patch into the stored data of project id,
// creating a default record first when none exists, then refreshes the
// project's UpdatedAt. The two writes are sequential, not atomic: a failure
// between them leaves a stale UpdatedAt but correct data.
func (s *Store) UpdateProjectData(ctx context.Context, id string, patch ProjectDataPatch) error {
	err := s.kv.Update(ctx, ProjectDataKey(id), func(old []byte, found bool) ([]byte, error) {
		current := emptyProjectData(id)
		if found {
			if err := json.Unmarshal(old, &current); err != nil {
				return nil, fmt.Errorf("decoding project data %s: %w", id, err)
			}
		}
		return json.Marshal(current.Apply(patch))
	})
	if err != nil {
		return fmt.Errorf("saving project data %s: %w", id, err)
	}

	err = s.updateProjects(ctx, func(projects []Project) ([]Project, error) {
		for i := range projects {
			if projects[i].ID == id {
				projects[i].UpdatedAt = s.touch(projects[i].UpdatedAt)
			}
		}
		return projects, nil
	})
	if err != nil {
		return fmt.Errorf("touching project %s: %w", id, err)
	}
	return nil
}

// RenameProject changes the display name of project id.
func (s *Store) RenameProject(ctx context.Context, id, name string) (Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Project{}, ErrInvalidName
	}

	var renamed Project
	err := s.updateProjects(ctx, func(projects []Project) ([]Project, error) {
		for i := range projects {
			if projects[i].ID == id {
				projects[i].Name = name
				projects[i].UpdatedAt = s.touch(projects[i].UpdatedAt)
				renamed = projects[i]
				return projects, nil
			}
		}
		return nil, ErrNotFound
	})
	if err != nil {
		return Project{}, fmt.Errorf("renaming project %s: %w", id, err)
	}
	return renamed, nil
}

// DeleteProject removes project id and its data. Deleting an unknown id is
// a no-op.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	err := s.updateProjects(ctx, func(projects []Project) ([]Project, error) {
		kept := projects[:0]
		for _, p := range projects {
			if p.ID != id {
				kept = append(kept, p)
			}
		}
		return kept, nil
	})
	if err != nil {
		return fmt.Errorf("deleting project %s: %w", id, err)
	}

	if err := s.kv.Delete(ctx, ProjectDataKey(id)); err != nil {
		return fmt.Errorf("deleting project data %s: %w", id, err)
	}
	return nil
}

// GetSettings returns the saved settings, or the defaults when none exist.
func (s *Store) GetSettings(ctx context.Context) (Settings, error) {
	raw, err := s.kv.Get(ctx, SettingsKey)
	if errors.Is(err, kv.ErrNotFound) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("loading settings: %w", err)
	}

	settings := DefaultSettings()
	if err := json.Unmarshal(raw, &settings); err != nil {
		return Settings{}, fmt.Errorf("decoding settings: %w", err)
	}
	return settings, nil
}

// UpdateSettings merges patch into the saved settings and returns the result.
func (s *Store) UpdateSettings(ctx context.Context, patch SettingsPatch) (Settings, error) {
	if patch.Theme != nil && !patch.Theme.Valid() {
		return Settings{}, ErrInvalidTheme
	}

	var merged Settings
	err := s.kv.Update(ctx, SettingsKey, func(old []byte, found bool) ([]byte, error) {
		current := DefaultSettings()
		if found {
			if err := json.Unmarshal(old, &current); err != nil {
				return nil, fmt.Errorf("decoding settings: %w", err)
			}
		}
		merged = current.Apply(patch)
		return json.Marshal(merged)
	})
	if err != nil {
		return Settings{}, fmt.Errorf("saving settings: %w", err)
	}
	return merged, nil
}

// SortByRecent orders projects by UpdatedAt, most recent first. Ties keep
// their storage order.
func SortByRecent(projects []Project) []Project {
	sorted := make([]Project, len(projects))
	copy(sorted, projects)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].UpdatedAt.After(sorted[j].UpdatedAt)
	})
	return sorted
}

func (s *Store) updateProjects(ctx context.Context, fn func([]Project) ([]Project, error)) error {
	return s.kv.Update(ctx, ProjectsKey, func(old []byte, found bool) ([]byte, error) {
		projects := []Project{}
		if found {
			decoded, err := decodeProjects(old, false)
			if err != nil {
				return nil, err
			}
			projects = decoded
		}

		updated, err := fn(projects)
		if err != nil {
			return nil, err
		}
		if updated == nil {
			updated = []Project{}
		}
		return json.Marshal(updated)
	})
}

func (s *Store) putProjectData(ctx context.Context, d ProjectData) error {
	d.normalize()
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, ProjectDataKey(d.ID), raw)
}

// touch returns the new UpdatedAt for a record last updated at prev. It never
// moves backwards, even if the wall clock does.
func (s *Store) touch(prev time.Time) time.Time {
	now := s.now()
	if now.Before(prev) {
		return prev
	}
	return now
}

func decodeProjects(raw []byte, tolerant bool) ([]Project, error) {
	var projects []Project
	if err := json.Unmarshal(raw, &projects); err != nil {
		if tolerant {
			log.Printf("store: corrupt %s, treating as empty: %v", ProjectsKey, err)
			return []Project{}, nil
		}
		return nil, fmt.Errorf("decoding %s: %w", ProjectsKey, err)
	}
	if projects == nil {
		projects = []Project{}
	}
	return projects, nil
}

// newProjectID returns a UUID not already used by any of projects.
func newProjectID(projects []Project) string {
	for {
		id := uuid.New().String()
		taken := false
		for _, p := range projects {
			if p.ID == id {
				taken = true
				break
			}
		}
		if !taken {
			return id
		}
	}
}
