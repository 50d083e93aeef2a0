// Package storage defines the vault file-system abstraction.
//
// The vault is the source of truth: map documents live under maps/ and
// published project documents under projects/.
package storage

import (
	pathpkg "path"
	"path/filepath"
	"strings"
	"time"
)

// Vault sub-directories.
const (
	MapsDir     = "maps"
	ProjectsDir = "projects"
)

// FileInfo describes one vault file.
type FileInfo struct {
	Path      string
	Checksum  string
	UpdatedAt time.Time
}

// Provider is the interface for vault file operations.
type Provider interface {
	// List returns metadata for every file under dir (relative to vault root)
	// whose name ends in ext.
	List(dir, ext string) ([]FileInfo, error)
	// Read returns the raw bytes of the file at path (relative to vault root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to vault root).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to vault root).
	Delete(path string) error
	// Exists reports whether path names a regular file.
	Exists(path string) (bool, error)
}

// MapExt is the file extension of map documents.
const MapExt = ".json"

// MapPath returns the vault path of the map document with id.
func MapPath(id string) string { return MapsDir + "/" + id + MapExt }

// ProjectPath returns the vault path of the project document with id.
func ProjectPath(id string) string { return ProjectsDir + "/" + id + ".md" }

// MapID extracts the map id from a vault path under maps/. It reports false
// for anything that is not a map document.
func MapID(path string) (string, bool) {
	path = filepath.ToSlash(path)
	dir, name := pathpkg.Split(path)
	if dir != MapsDir+"/" || !strings.HasSuffix(name, MapExt) || strings.HasPrefix(name, ".") {
		return "", false
	}
	id := strings.TrimSuffix(name, MapExt)
	return id, id != ""
}
