package script

import (
	"fmt"
	"os"
)

// Storage is the host capability for file-backed script text. A nil Storage
// degrades file-backed scripts to in-memory behavior instead of failing the
// registry outright.
type Storage interface {
	ReadText(path string) (string, error)
	WriteText(path, text string) error
}

// DiskStorage reads and writes script text on the local filesystem.
type DiskStorage struct{}

func (DiskStorage) ReadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read script %s: %w", path, err)
	}
	return string(data), nil
}

func (DiskStorage) WriteText(path, text string) error {
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("write script %s: %w", path, err)
	}
	return nil
}
