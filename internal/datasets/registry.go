// Package datasets inspects the provider upload area.
//
// Each provider owns one folder directly under the uploads directory.
// The registry only ever reads: write access to provider data is exactly
// what the policy gateway exists to prevent.
package datasets

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// Folder describes one provider folder.
type Folder struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	FileCount int    `json:"file_count"`
	SizeBytes int64  `json:"size_bytes"`
}

// Registry lists provider folders under a fixed uploads directory.
type Registry struct {
	uploadsDir string
}

// NewRegistry creates a registry over uploadsDir.
func NewRegistry(uploadsDir string) *Registry {
	return &Registry{uploadsDir: uploadsDir}
}

// UploadsDir returns the root the registry scans.
func (r *Registry) UploadsDir() string {
	return r.uploadsDir
}

// List returns all provider folders sorted by name. A missing uploads
// directory yields an empty list, not an error: no provider has shared
// anything yet.
func (r *Registry) List() ([]Folder, error) {
	entries, err := os.ReadDir(r.uploadsDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read uploads dir: %w", err)
	}

	var folders []Folder
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}

		folder := Folder{
			Name: e.Name(),
			Path: filepath.Join(r.uploadsDir, e.Name()),
		}

		files, err := r.Files(e.Name(), "**/*")
		if err != nil {
			return nil, err
		}
		folder.FileCount = len(files)
		for _, f := range files {
			if info, err := os.Stat(f); err == nil {
				folder.SizeBytes += info.Size()
			}
		}

		folders = append(folders, folder)
	}

	sort.Slice(folders, func(i, j int) bool { return folders[i].Name < folders[j].Name })
	return folders, nil
}

// Exists reports whether a provider folder with this name is present.
func (r *Registry) Exists(name string) bool {
	if name == "" || name != filepath.Base(name) {
		return false
	}
	info, err := os.Stat(filepath.Join(r.uploadsDir, name))
	return err == nil && info.IsDir()
}

// Validate checks that every named folder exists, returning the first
// missing one as a validation error.
func (r *Registry) Validate(names []string) error {
	for _, name := range names {
		if !r.Exists(name) {
			return fmt.Errorf("unknown dataset folder %q", name)
		}
	}
	return nil
}

// Files lists files inside one provider folder matching a doublestar
// pattern, e.g. "**/*.csv".
func (r *Registry) Files(folderName, pattern string) ([]string, error) {
	base := filepath.Join(r.uploadsDir, folderName)

	var matches []string
	fsys := os.DirFS(base)
	err := doublestar.GlobWalk(fsys, pattern, func(path string, d fs.DirEntry) error {
		if !d.IsDir() {
			matches = append(matches, filepath.Join(base, path))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("glob %q in %s: %w", pattern, folderName, err)
	}

	return matches, nil
}
