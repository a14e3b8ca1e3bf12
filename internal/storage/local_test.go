package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	store, err := NewLocalStore(filepath.Join(t.TempDir(), "archive"))
	require.NoError(t, err)

	require.NoError(t, store.Store("runs/abc/run.jsonl", []byte("line\n")))
	require.NoError(t, store.Store("runs/abc/mentions.jsonl", []byte("{}\n")))
	require.NoError(t, store.Store("runs/def/run.jsonl", []byte("other\n")))

	data, err := store.Retrieve("runs/abc/run.jsonl")
	require.NoError(t, err)
	assert.Equal(t, []byte("line\n"), data)

	names, err := store.List("runs/abc/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"runs/abc/run.jsonl", "runs/abc/mentions.jsonl"}, names)

	require.NoError(t, store.Delete("runs/abc/run.jsonl"))
	_, err = store.Retrieve("runs/abc/run.jsonl")
	assert.Error(t, err)
}

func TestLocalStoreRequiresRoot(t *testing.T) {
	_, err := NewLocalStore("")
	assert.Error(t, err)
}

func TestArchiveRunArtifactsSkipsMissingAndEmpty(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "run.jsonl")
	require.NoError(t, os.WriteFile(present, []byte("data\n"), 0644))

	store, err := NewLocalStore(filepath.Join(dir, "archive"))
	require.NoError(t, err)

	stored, err := ArchiveRunArtifacts(store, "run-1", present, "", filepath.Join(dir, "absent.jsonl"))

	require.NoError(t, err)
	assert.Equal(t, []string{"runs/run-1/run.jsonl"}, stored)

	data, err := store.Retrieve("runs/run-1/run.jsonl")
	require.NoError(t, err)
	assert.Equal(t, []byte("data\n"), data)
}
