package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// ArchiveRunArtifacts copies the given files into the store under
// runs/<runID>/. Empty and missing paths are skipped, so callers can pass
// optional artifacts without checking first. Returns the stored names.
func ArchiveRunArtifacts(store ArtifactStore, runID string, paths ...string) ([]string, error) {
	var stored []string
	for _, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				logrus.Warnf("Run artifact %s not found, skipping", path)
				continue
			}
			return stored, fmt.Errorf("reading run artifact %s: %w", path, err)
		}

		name := fmt.Sprintf("runs/%s/%s", runID, filepath.Base(path))
		if err := store.Store(name, data); err != nil {
			return stored, err
		}
		stored = append(stored, name)
	}
	return stored, nil
}
