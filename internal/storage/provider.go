// Package storage defines the workspace file-system abstraction.
package storage

// Provider is the interface for workspace file operations. Every path is
// relative to the workspace root and uses forward slashes.
type Provider interface {
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path, creating parent dirs.
	Write(path string, content []byte) error
	// Exists reports whether path exists.
	Exists(path string) (bool, error)
	// Move renames oldPath to newPath, creating parent dirs.
	Move(oldPath, newPath string) error
	// Delete removes a single file.
	Delete(path string) error
}

// Opener returns a Provider rooted at a workspace folder.
type Opener func(root string) (Provider, error)

// OpenFS is the Opener for the local file system.
func OpenFS(root string) (Provider, error) {
	return NewFS(root)
}
