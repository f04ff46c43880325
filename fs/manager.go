package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/spf13/afero"
)

// FileSystem wraps the Afero Fs interface
type FileSystem struct {
	Fs afero.Fs
}

// NewMemoryFileSystem creates a new in-memory file system
func NewMemoryFileSystem() *FileSystem {
	return &FileSystem{
		Fs: afero.NewMemMapFs(),
	}
}

// NewOsFileSystem creates a new OS-based file system
func NewOsFileSystem() *FileSystem {
	return &FileSystem{
		Fs: afero.NewOsFs(),
	}
}

// ReadText reads a whole file and rejects content that is not valid UTF-8.
func (fs *FileSystem) ReadText(path string) (string, error) {
	f, err := fs.Fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("error opening file %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("error reading file %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("error reading file %s: is a directory", path)
	}

	data, err := afero.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("error reading file %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("error reading file %s: content is not valid UTF-8", path)
	}
	return string(data), nil
}

// WriteFileAtomic replaces path with content. The content goes to a temporary
// file in the same directory first and is renamed into place, so readers see
// either the old file or the complete new one.
func (fs *FileSystem) WriteFileAtomic(path, content string) (err error) {
	if fs.IsDir(path) {
		return fmt.Errorf("error writing file %s: is a directory", path)
	}

	dir := filepath.Dir(path)
	if err := fs.Fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating directory %s: %w", dir, err)
	}

	tmp, err := afero.TempFile(fs.Fs, dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("error creating temporary file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			fs.Fs.Remove(tmpName)
		}
	}()

	if _, err = tmp.WriteString(content); err != nil {
		return fmt.Errorf("error writing file %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("error syncing file %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("error closing file %s: %w", path, err)
	}

	mode := os.FileMode(0644)
	if info, statErr := fs.Fs.Stat(path); statErr == nil {
		mode = info.Mode().Perm()
	}
	if err = fs.Fs.Chmod(tmpName, mode); err != nil {
		return fmt.Errorf("error setting permissions on %s: %w", path, err)
	}
	if err = fs.Fs.Rename(tmpName, path); err != nil {
		return fmt.Errorf("error replacing file %s: %w", path, err)
	}
	return nil
}

// Exists reports whether path exists.
func (fs *FileSystem) Exists(path string) bool {
	ok, err := afero.Exists(fs.Fs, path)
	return err == nil && ok
}

// IsDir checks if a path is a directory
func (fs *FileSystem) IsDir(path string) bool {
	info, err := fs.Fs.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
