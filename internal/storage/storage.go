package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

type Store struct {
	dir string
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// SanitizeName reduces a client supplied filename to its base name and
// strips NUL bytes. Empty results fall back to a neutral name so a stored
// name is never just the uuid prefix.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "\x00", "")
	name = filepath.Base(name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || name == "/" {
		return "upload"
	}
	return name
}

// Ext returns the lowercased extension of name, including the dot.
func Ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// StoredName prefixes the sanitized name with a uuid so concurrent uploads
// of the same filename never collide on disk.
func StoredName(safeName string) string {
	return uuid.NewString() + "_" + safeName
}

func (s *Store) Save(storedName string, src io.Reader) (string, error) {
	path := filepath.Join(s.dir, storedName)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create payload file: %w", err)
	}

	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write payload file: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close payload file: %w", err)
	}

	return path, nil
}

// Remove deletes a payload file. A file that is already gone is not an
// error; removal runs after terminal transitions and must be idempotent.
func (s *Store) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove payload file: %w", err)
	}
	return nil
}

func (s *Store) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat payload file: %w", err)
	}
	return true, nil
}
