// Package storage defines the backup folder file-system abstraction.
package storage

import "time"

// FileInfo describes a file directly inside the folder.
type FileInfo struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Provider is the interface for backup folder file operations.
// Names are relative to the folder root.
type Provider interface {
	// Root returns the absolute folder path.
	Root() string
	// List returns every regular file directly under the root whose name has
	// the given prefix and suffix.
	List(prefix, suffix string) ([]FileInfo, error)
	// Stat returns metadata for a single file.
	Stat(name string) (FileInfo, error)
	// ModTime returns the modification time of the folder itself.
	ModTime() (time.Time, error)
	// Read returns the raw bytes of the file.
	Read(name string) ([]byte, error)
	// Write atomically writes content to name.
	Write(name string, content []byte) error
	// Delete removes the file.
	Delete(name string) error
}
