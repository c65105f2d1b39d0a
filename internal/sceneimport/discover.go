package sceneimport

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultMaxFileSize bounds scene files; embedded images make them large.
const DefaultMaxFileSize int64 = 16 << 20

// DefaultInclude matches scene files anywhere under the root.
var DefaultInclude = []string{"**/*.excalidraw"}

// DefaultExcludes are directory names never descended into.
var DefaultExcludes = []string{
	".git",
	"node_modules",
	"vendor",
	".draw2ui",
	"dist",
	"build",
	".next",
	".idea",
	".vscode",
}

// File is one scene file found by Discover.
type File struct {
	Path    string // Absolute path on disk.
	RelPath string // Slash-separated path relative to the root.
	Size    int64
}

// DiscoverConfig controls Discover.
type DiscoverConfig struct {
	RootDir     string
	Include     []string // Glob patterns, ** supported; empty uses DefaultInclude.
	Exclude     []string
	MaxFileSize int64 // 0 uses DefaultMaxFileSize.
}

// Discover walks RootDir and returns the files matching the include patterns
// and none of the exclude patterns, sorted by relative path.
func Discover(config DiscoverConfig) ([]File, error) {
	root, err := filepath.Abs(config.RootDir)
	if err != nil {
		return nil, fmt.Errorf("sceneimport: resolve root: %w", err)
	}

	include := config.Include
	if len(include) == 0 {
		include = DefaultInclude
	}
	for _, p := range append(append([]string{}, include...), config.Exclude...) {
		if !doublestar.ValidatePattern(filepath.ToSlash(p)) {
			return nil, fmt.Errorf("sceneimport: invalid pattern %q", p)
		}
	}

	maxSize := config.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	var files []File
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Skip entries we cannot read instead of aborting.
			return nil
		}
		if d.IsDir() {
			if path != root && shouldExcludeDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		if !matchesAny(relPath, include) || matchesAny(relPath, config.Exclude) {
			return nil
		}

		info, err := d.Info()
		if err != nil || info.Size() > maxSize {
			return nil
		}

		files = append(files, File{
			Path:    path,
			RelPath: filepath.ToSlash(relPath),
			Size:    info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sceneimport: traversal: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

func shouldExcludeDir(name string) bool {
	for _, excl := range DefaultExcludes {
		if strings.EqualFold(name, excl) {
			return true
		}
	}
	return false
}

// matchesAny checks relPath, and then its base name, against the patterns.
func matchesAny(relPath string, patterns []string) bool {
	normalized := filepath.ToSlash(relPath)
	base := filepath.Base(normalized)

	for _, pattern := range patterns {
		pattern = filepath.ToSlash(pattern)
		if matched, err := doublestar.Match(pattern, normalized); err == nil && matched {
			return true
		}
		if matched, err := doublestar.Match(pattern, base); err == nil && matched {
			return true
		}
	}
	return false
}
