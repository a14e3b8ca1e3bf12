package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// LocalStore keeps artifacts on the local filesystem. Used in development
// and on deployments without a blob account.
type LocalStore struct {
	root string
}

var _ ArtifactStore = (*LocalStore)(nil)

// NewLocalStore creates the archive root if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		return nil, fmt.Errorf("archive directory is required")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) resolve(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

// Store writes one artifact, creating intermediate directories for
// run-scoped names like "runs/<id>/file".
func (s *LocalStore) Store(name string, data []byte) error {
	path := s.resolve(name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating artifact directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing artifact %s: %w", name, err)
	}

	logrus.Infof("Archived %s to %s", name, s.root)
	return nil
}

// Retrieve reads one artifact back.
func (s *LocalStore) Retrieve(name string) ([]byte, error) {
	data, err := os.ReadFile(s.resolve(name))
	if err != nil {
		return nil, fmt.Errorf("reading artifact %s: %w", name, err)
	}
	return data, nil
}

// List walks the archive and returns slash-separated names under prefix.
func (s *LocalStore) List(prefix string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing artifacts: %w", err)
	}
	return names, nil
}

// Delete removes one artifact.
func (s *LocalStore) Delete(name string) error {
	if err := os.Remove(s.resolve(name)); err != nil {
		return fmt.Errorf("deleting artifact %s: %w", name, err)
	}
	return nil
}
