package collector

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vkpulse/vkpulse/internal/models"
)

// RunStore is the append-only JSONL file all group fetchers of a run share.
// One exclusive lock serializes batch appends so records from different
// groups never interleave mid-batch.
type RunStore struct {
	path string
	mu   sync.Mutex
}

// NewRunStore creates a store writer for the given path.
func NewRunStore(path string) *RunStore {
	return &RunStore{path: path}
}

// Path returns the store file location.
func (s *RunStore) Path() string {
	return s.path
}

// Clear truncates or creates the store file. Every run starts empty; there
// is no resume across runs.
func (s *RunStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating store directory: %w", err)
		}
	}

	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("clearing store file: %w", err)
	}
	return f.Close()
}

// AppendBatch writes one group's records as JSON lines under a single lock
// acquisition and returns the number of records written.
func (s *RunStore) AppendBatch(records []models.CollectionRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return 0, fmt.Errorf("opening store for append: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			return 0, fmt.Errorf("encoding record: %w", err)
		}
	}

	return len(records), nil
}
