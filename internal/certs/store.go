package certs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	dirPermissions  = 0750
	filePermissions = 0600
)

// Store maps printer names to certificate bundle paths under a root directory.
type Store struct {
	root     string
	fileName string
}

// NewStore returns a Store rooted at root that names every bundle fileName.
func NewStore(root, fileName string) *Store {
	return &Store{root: root, fileName: fileName}
}

// Root returns the certificate root directory.
func (s *Store) Root() string {
	return s.root
}

// Dir returns the directory holding the bundle for name.
func (s *Store) Dir(name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	return filepath.Join(s.root, name), nil
}

// Path returns the bundle path for name.
func (s *Store) Path(name string) (string, error) {
	dir, err := s.Dir(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, s.fileName), nil
}

// EnsureDir creates the directory for name if it does not exist.
func (s *Store) EnsureDir(name string) error {
	dir, err := s.Dir(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return fmt.Errorf("creating certificate directory: %w", err)
	}
	return nil
}

// Exists reports whether a bundle has been stored for name.
func (s *Store) Exists(name string) bool {
	path, err := s.Path(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// RemoveDir deletes the directory for name and everything in it. A missing
// directory is not an error.
func (s *Store) RemoveDir(name string) error {
	dir, err := s.Dir(name)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing certificate directory: %w", err)
	}
	return nil
}

// Write replaces the bundle for name, creating its directory when needed.
func (s *Store) Write(name string, bundle []byte) error {
	if err := s.EnsureDir(name); err != nil {
		return err
	}
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	return writeFile(path, bundle)
}

// Replace swaps in a new bundle for name without creating its directory.
// It fails with ErrNoDirectory once the directory has been removed, so a
// late background fetch cannot bring a deleted printer's directory back.
func (s *Store) Replace(name string, bundle []byte) error {
	dir, err := s.Dir(name)
	if err != nil {
		return err
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNoDirectory, name)
	}
	if err := writeFile(filepath.Join(dir, s.fileName), bundle); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNoDirectory, name)
		}
		return err
	}
	return nil
}

// writeFile replaces path atomically via a temp file in the same directory.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".blcert-*")
	if err != nil {
		return fmt.Errorf("creating temp bundle: %w", err)
	}
	tmpName := tmp.Name()

	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		os.Remove(tmpName) //nolint:errcheck // best effort
		return fmt.Errorf("writing bundle: %w", err)
	}
	if err := os.Chmod(tmpName, filePermissions); err != nil {
		os.Remove(tmpName) //nolint:errcheck // best effort
		return fmt.Errorf("setting bundle permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName) //nolint:errcheck // best effort
		return fmt.Errorf("replacing bundle: %w", err)
	}
	return nil
}

func validateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`+"\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}
	return nil
}
