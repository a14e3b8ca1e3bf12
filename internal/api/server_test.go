package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkpulse/vkpulse/internal/aggregate"
	"github.com/vkpulse/vkpulse/internal/analysis"
	"github.com/vkpulse/vkpulse/internal/config"
	"github.com/vkpulse/vkpulse/internal/models"
	"github.com/vkpulse/vkpulse/internal/vkapi"
)

type fixedAPI struct {
	posts []vkapi.Post
}

func (a *fixedAPI) GroupsGetByID(ctx context.Context, identifier string) ([]vkapi.GroupInfo, error) {
	return []vkapi.GroupInfo{{ID: 42, Name: "Test Group", ScreenName: identifier}}, nil
}

func (a *fixedAPI) WallGet(ctx context.Context, ownerID int64, count, offset int) (*vkapi.WallPage, error) {
	if offset > 0 {
		return &vkapi.WallPage{Count: len(a.posts)}, nil
	}
	return &vkapi.WallPage{Count: len(a.posts), Items: a.posts}, nil
}

func (a *fixedAPI) WallGetComments(ctx context.Context, ownerID, postID int64, count, offset int) (*vkapi.CommentsPage, error) {
	return &vkapi.CommentsPage{}, nil
}

type fixedModel struct{}

func (fixedModel) Name() string { return "fixed" }

func (fixedModel) Analyze(ctx context.Context, texts []string) ([][]models.MentionJudgment, error) {
	results := make([][]models.MentionJudgment, len(texts))
	for i := range texts {
		results[i] = []models.MentionJudgment{{Entity: "Иванов", EntityOriginal: "Иванов", Polarity: "POS"}}
	}
	return results, nil
}

func testService(t *testing.T, posts []vkapi.Post) *analysis.Service {
	cfg := &config.Config{
		VKAccessToken:     "token",
		DataDir:           t.TempDir(),
		TextPreviewLength: 300,
		SentimentLabels:   []string{"POS", "NEG", "NEU"},
		PostsChunkSize:    100,
		CommentsChunkSize: 100,
		GroupConcurrency:  4,
		WindowDays:        7,
	}
	return analysis.NewService(cfg, &fixedAPI{posts: posts}, fixedModel{}, nil, nil)
}

func sessionService(t *testing.T) *analysis.Service {
	svc := testService(t, nil)
	path, err := aggregate.WriteMentionLog(t.TempDir(), time.Now(), []models.MentionRecord{
		{EntityNormalized: "Иванов", Polarity: "POS", Date: "2024-05-01"},
		{EntityNormalized: "Иванов И.", Polarity: "NEG", Date: "2024-05-01"},
	})
	require.NoError(t, err)
	require.NoError(t, svc.RehydrateFromLog(path))
	return svc
}

func doRequest(router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	router := NewRouter(testService(t, nil))

	rec := doRequest(router, "GET", "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestAnalyzeEndpointRunsAndReportsResult(t *testing.T) {
	posts := []vkapi.Post{
		{ID: 1, OwnerID: -42, Date: time.Date(2024, 5, 2, 12, 0, 0, 0, time.Local).Unix(), Text: "Иванов выступил"},
	}
	router := NewRouter(testService(t, posts))

	rec := doRequest(router, "POST", "/analyze",
		`{"groups":"testgroup","start_date":"2024-05-01","end_date":"2024-05-07"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result models.AnalysisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.RecordsSaved)
	assert.Equal(t, 1, result.TotalMentions)
}

func TestAnalyzeEndpointRejectsBadInput(t *testing.T) {
	router := NewRouter(testService(t, nil))

	rec := doRequest(router, "POST", "/analyze", `{"groups":"","start_date":"x","end_date":"y"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(router, "POST", "/analyze", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeEndpointAsync(t *testing.T) {
	posts := []vkapi.Post{
		{ID: 1, OwnerID: -42, Date: time.Date(2024, 5, 2, 12, 0, 0, 0, time.Local).Unix(), Text: "Иванов выступил"},
	}
	svc := testService(t, posts)
	router := NewRouter(svc)

	rec := doRequest(router, "POST", "/analyze",
		`{"groups":"testgroup","start_date":"2024-05-01","end_date":"2024-05-07","async":true}`)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "analysis started")

	require.Eventually(t, func() bool {
		_, _, err := svc.Summary(0)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond, "background run should install a session")
}

func TestSummaryEndpoint(t *testing.T) {
	router := NewRouter(sessionService(t))

	rec := doRequest(router, "GET", "/summary?top=1", "")

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Summary   aggregate.Summary       `json:"summary"`
		Standings []models.EntityStanding `json:"standings"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Summary, 2)
	assert.Len(t, body.Standings, 1)
}

func TestSummaryEndpointWithoutSession(t *testing.T) {
	router := NewRouter(testService(t, nil))

	rec := doRequest(router, "GET", "/summary", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "no analysis results")
}

func TestSummaryEndpointRejectsBadTop(t *testing.T) {
	router := NewRouter(sessionService(t))

	rec := doRequest(router, "GET", "/summary?top=abc", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMergeAndResetEndpoints(t *testing.T) {
	router := NewRouter(sessionService(t))

	rec := doRequest(router, "POST", "/merge", `{"aliases":["Иванов И."],"canonical":"Иванов"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(router, "GET", "/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "Иванов И.")

	rec = doRequest(router, "POST", "/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(router, "GET", "/summary", "")
	assert.Contains(t, rec.Body.String(), "Иванов И.")
}

func TestMergeEndpointValidation(t *testing.T) {
	router := NewRouter(sessionService(t))

	rec := doRequest(router, "POST", "/merge", `{"aliases":[],"canonical":"Иванов"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(router, "POST", "/merge", `{"aliases":["X"],"canonical":" "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMergeEndpointWithoutSession(t *testing.T) {
	router := NewRouter(testService(t, nil))

	rec := doRequest(router, "POST", "/merge", `{"aliases":["X"],"canonical":"Y"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMentionsEndpointFiltersByEntity(t *testing.T) {
	router := NewRouter(sessionService(t))

	rec := doRequest(router, "GET", "/mentions?entity=Иванов", "")

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count    int                    `json:"count"`
		Mentions []models.MentionRecord `json:"mentions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	require.Len(t, body.Mentions, 1)
	assert.Equal(t, "Иванов", body.Mentions[0].EntityNormalized)
}

func TestMetricsEndpoint(t *testing.T) {
	router := NewRouter(testService(t, nil))

	rec := doRequest(router, "GET", "/metrics", "")

	require.Equal(t, http.StatusOK, rec.Code)

	var metrics analysis.Metrics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &metrics))
	assert.Zero(t, metrics.RunsTotal)
	assert.False(t, metrics.RunActive)
}
