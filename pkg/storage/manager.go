package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Manager lays out downloaded images under the output root
type Manager struct {
	outputDir string
}

// NewManager creates a storage manager rooted at outputDir. Nothing is created
// on disk until the first save.
func NewManager(outputDir string) *Manager {
	return &Manager{outputDir: outputDir}
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}

// ImageDir returns <output>/<child>/<year>/<month> for an image created at t.
// The month is not zero padded.
func (m *Manager) ImageDir(childName string, t time.Time) string {
	return filepath.Join(
		m.outputDir,
		safeName(childName),
		strconv.Itoa(t.Year()),
		strconv.Itoa(int(t.Month())),
	)
}

// ImagePath returns the file an image is stored at
func (m *Manager) ImagePath(childName, imageID string, t time.Time) string {
	return filepath.Join(m.ImageDir(childName, t), safeName(imageID)+".jpg")
}

// EnsureDir creates dir and its parents if missing
func (m *Manager) EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// Exists reports whether an image is already stored
func (m *Manager) Exists(childName, imageID string, t time.Time) bool {
	_, err := os.Stat(m.ImagePath(childName, imageID, t))
	return err == nil
}

// SaveImage writes r to the image's path, replacing any previous file
// atomically, and returns the path written
func (m *Manager) SaveImage(r io.Reader, childName, imageID string, t time.Time) (string, error) {
	dir := m.ImageDir(childName, t)
	if err := m.EnsureDir(dir); err != nil {
		return "", err
	}

	filename := m.ImagePath(childName, imageID, t)
	tempFile := filename + ".tmp"

	out, err := os.Create(tempFile)
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, err = io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to save image data: %w", err)
	}

	if closeErr != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return filename, nil
}

// safeName keeps a path element from escaping its directory
func safeName(name string) string {
	name = strings.NewReplacer("/", "_", `\`, "_").Replace(strings.TrimSpace(name))
	if name == "" || name == "." || name == ".." {
		return "_"
	}
	return name
}
