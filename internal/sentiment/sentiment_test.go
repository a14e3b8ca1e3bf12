package sentiment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexiconFindsTrackedEntities(t *testing.T) {
	model := NewLexicon([]string{"Иванов", "Петров"})

	results, err := model.Analyze(context.Background(), []string{
		"Иванов снова молодец, спасибо ему",
		"петров опять всё провалил, позор",
		"погода сегодня обычная",
		"Иванов и Петров выступили вместе",
	})

	require.NoError(t, err)
	require.Len(t, results, 4)

	require.Len(t, results[0], 1)
	assert.Equal(t, "Иванов", results[0][0].Entity)
	assert.Equal(t, LabelPositive, results[0][0].Polarity)

	require.Len(t, results[1], 1)
	assert.Equal(t, "Петров", results[1][0].Entity)
	assert.Equal(t, LabelNegative, results[1][0].Polarity)

	assert.Empty(t, results[2], "texts without tracked entities yield no judgments")

	require.Len(t, results[3], 2)
	assert.Equal(t, LabelNeutral, results[3][0].Polarity)
}

func TestLexiconKeepsTextSpelling(t *testing.T) {
	model := NewLexicon([]string{"иванов"})

	results, err := model.Analyze(context.Background(), []string{"ИВАНОВ выступил"})

	require.NoError(t, err)
	require.Len(t, results[0], 1)
	assert.Equal(t, "иванов", results[0][0].Entity)
	assert.Equal(t, "ИВАНОВ", results[0][0].EntityOriginal)
}

func TestRemoteAnalyzeRoundTrip(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[[{"entity":"Иванов","entity_original":"Иванова","polarity":"NEG"}],[]]}`))
	}))
	defer server.Close()

	model := NewRemote(server.URL, "secret", 2*time.Second)
	results, err := model.Analyze(context.Background(), []string{"критика Иванова", "нейтральный текст"})

	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Len(t, results[0], 1)
	assert.Equal(t, "Иванов", results[0][0].Entity)
	assert.Equal(t, "Иванова", results[0][0].EntityOriginal)
	assert.Equal(t, "NEG", results[0][0].Polarity)
	assert.Empty(t, results[1])
	assert.Equal(t, "Bearer secret", gotAuth)
}

func TestRemoteAnalyzeRejectsCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[[]]}`))
	}))
	defer server.Close()

	model := NewRemote(server.URL, "", 2*time.Second)
	_, err := model.Analyze(context.Background(), []string{"a", "b"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 result lists for 2 texts")
}

func TestRemoteAnalyzeRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	model := NewRemote(server.URL, "", 2*time.Second)
	_, err := model.Analyze(context.Background(), []string{"a"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestRemoteAnalyzeEmptyInputSkipsCall(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	model := NewRemote(server.URL, "", 2*time.Second)
	results, err := model.Analyze(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, results)
	assert.False(t, called)
}
