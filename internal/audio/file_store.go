package audio

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileStore materializes decoded audio on disk before it is handed to the
// composition collaborator.
type FileStore struct {
	dir string
}

// NewFileStore creates the target directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audio dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// SaveAudio writes one decoded audio blob and returns its path.
func (fs *FileStore) SaveAudio(data []byte, name, ext string) (string, error) {
	path := filepath.Join(fs.dir, name+"."+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write audio file: %w", err)
	}
	return path, nil
}

// Remove deletes a previously saved file. Missing files are not an error.
func (fs *FileStore) Remove(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
