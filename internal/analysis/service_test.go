package analysis

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkpulse/vkpulse/internal/aggregate"
	"github.com/vkpulse/vkpulse/internal/config"
	"github.com/vkpulse/vkpulse/internal/models"
	"github.com/vkpulse/vkpulse/internal/vkapi"
)

// stubAPI serves canned wall data, paginated the way the real API does.
type stubAPI struct {
	groups      []vkapi.GroupInfo
	posts       []vkapi.Post
	comments    map[int64][]vkapi.Comment
	commentsErr map[int64]error
}

func (a *stubAPI) GroupsGetByID(ctx context.Context, identifier string) ([]vkapi.GroupInfo, error) {
	return a.groups, nil
}

func (a *stubAPI) WallGet(ctx context.Context, ownerID int64, count, offset int) (*vkapi.WallPage, error) {
	return &vkapi.WallPage{
		Count: len(a.posts),
		Items: pageOf(a.posts, offset, count),
	}, nil
}

func (a *stubAPI) WallGetComments(ctx context.Context, ownerID, postID int64, count, offset int) (*vkapi.CommentsPage, error) {
	if err := a.commentsErr[postID]; err != nil {
		return nil, err
	}
	items := a.comments[postID]
	return &vkapi.CommentsPage{
		Count: len(items),
		Items: pageOf(items, offset, count),
	}, nil
}

func pageOf[T any](items []T, offset, count int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + count
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// stubModel tags every text as one positive mention of a fixed entity.
type stubModel struct {
	entity  string
	entered chan struct{}
	release chan struct{}
}

func (m *stubModel) Name() string { return "stub" }

func (m *stubModel) Analyze(ctx context.Context, texts []string) ([][]models.MentionJudgment, error) {
	if m.entered != nil {
		m.entered <- struct{}{}
		<-m.release
	}
	results := make([][]models.MentionJudgment, len(texts))
	for i := range texts {
		results[i] = []models.MentionJudgment{
			{Entity: m.entity, EntityOriginal: m.entity, Polarity: "POS"},
		}
	}
	return results, nil
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		VKAccessToken:     "test-token",
		DataDir:           t.TempDir(),
		TextPreviewLength: 300,
		SentimentLabels:   []string{"POS", "NEG", "NEU"},
		PostsChunkSize:    100,
		CommentsChunkSize: 100,
		GroupConcurrency:  4,
		WindowDays:        7,
	}
}

func mayDate(day, hour int) int64 {
	return time.Date(2024, 5, day, hour, 0, 0, 0, time.Local).Unix()
}

func fixtureAPI() *stubAPI {
	return &stubAPI{
		groups: []vkapi.GroupInfo{{ID: 42, Name: "Test Group", ScreenName: "testgroup"}},
		posts: []vkapi.Post{
			{ID: 3, OwnerID: -42, Date: mayDate(2, 12), Text: "Иванов выступил"},
			{ID: 2, OwnerID: -42, Date: mayDate(2, 11), Text: "про Иванова", Comments: &vkapi.CommentsInfo{Count: 5}},
			{ID: 1, OwnerID: -42, Date: mayDate(2, 10), Text: "еще про Иванова"},
		},
		commentsErr: map[int64]error{
			2: &vkapi.APIError{Code: 18, Msg: "Access to post comments denied", Method: "wall.getComments"},
		},
	}
}

func TestRunFullAnalysisEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	svc := NewService(cfg, fixtureAPI(), &stubModel{entity: "Иванов"}, nil, nil)

	result, err := svc.RunFullAnalysis(context.Background(), "testgroup", "2024-05-01", "2024-05-07")

	require.NoError(t, err)
	assert.Equal(t, 3, result.RecordsSaved)
	assert.Equal(t, 0, result.GroupErrors, "comments disabled on one post must not fail the group")
	assert.Equal(t, 3, result.TextsAnalyzed)
	assert.Equal(t, 3, result.TotalMentions)
	assert.NotEmpty(t, result.RunID)

	summary, standings, err := svc.Summary(0)
	require.NoError(t, err)
	bucket := summary["Иванов"]["2024-05-02"]
	require.NotNil(t, bucket)
	assert.Equal(t, 3, bucket["POS"])
	assert.Equal(t, 0, bucket["NEG"])
	assert.Equal(t, 0, bucket["NEU"])
	assert.Equal(t, 0, bucket[aggregate.LabelUnknown])

	require.Len(t, standings, 1)
	assert.Equal(t, "Иванов", standings[0].Entity)
	assert.Equal(t, 3, standings[0].Total)

	require.NotEmpty(t, result.MentionLogPath)
	logged, err := aggregate.LoadMentionLog(result.MentionLogPath)
	require.NoError(t, err)
	require.Len(t, logged, 3)
	assert.Equal(t, "post", logged[0].SourceType)
	assert.Equal(t, "Test Group", logged[0].GroupName)

	_, err = os.Stat(result.StorePath)
	assert.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.DataDir, storeFilename), result.StorePath)

	report, err := svc.LastReport()
	require.NoError(t, err)
	assert.Equal(t, 3, report.TotalMentions)
	assert.Equal(t, []string{"testgroup"}, report.Groups)
}

func TestRunFullAnalysisNoRecords(t *testing.T) {
	cfg := testConfig(t)
	api := &stubAPI{groups: []vkapi.GroupInfo{{ID: 42, Name: "G", ScreenName: "g"}}}
	svc := NewService(cfg, api, &stubModel{entity: "X"}, nil, nil)

	result, err := svc.RunFullAnalysis(context.Background(), "g", "2024-05-01", "2024-05-07")

	require.NoError(t, err)
	assert.Equal(t, "no records collected", result.Message)
	assert.Zero(t, result.TotalMentions)

	summary, standings, err := svc.Summary(0)
	require.NoError(t, err, "an empty run still installs a queryable session")
	assert.Empty(t, summary)
	assert.Empty(t, standings)
}

func TestRunFullAnalysisValidation(t *testing.T) {
	cfg := testConfig(t)
	svc := NewService(cfg, fixtureAPI(), &stubModel{entity: "X"}, nil, nil)

	_, err := svc.RunFullAnalysis(context.Background(), " , ,", "2024-05-01", "2024-05-07")
	assert.ErrorContains(t, err, "group list")

	_, err = svc.RunFullAnalysis(context.Background(), "g", "01.05.2024", "2024-05-07")
	assert.ErrorContains(t, err, "invalid start date")

	_, err = svc.RunFullAnalysis(context.Background(), "g", "2024-05-07", "2024-05-01")
	assert.ErrorContains(t, err, "after end date")

	cfg.VKAccessToken = ""
	_, err = svc.RunFullAnalysis(context.Background(), "g", "2024-05-01", "2024-05-07")
	assert.ErrorContains(t, err, "access token")
}

func TestSplitGroupsSeparators(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitGroups("a, b\nc"))
	assert.Equal(t, []string{"club1", "club2"}, splitGroups("club1\r\nclub2"))
	assert.Nil(t, splitGroups(" , \n ,"))
}

func TestRunFullAnalysisRejectsConcurrentRuns(t *testing.T) {
	cfg := testConfig(t)
	model := &stubModel{entity: "X", entered: make(chan struct{}), release: make(chan struct{})}
	svc := NewService(cfg, fixtureAPI(), model, nil, nil)

	done := make(chan error, 1)
	go func() {
		_, err := svc.RunFullAnalysis(context.Background(), "g", "2024-05-01", "2024-05-07")
		done <- err
	}()

	<-model.entered
	_, err := svc.RunFullAnalysis(context.Background(), "g", "2024-05-01", "2024-05-07")
	assert.ErrorContains(t, err, "already in progress")

	close(model.release)
	require.NoError(t, <-done)
}

func TestSessionOpsRequireACompletedRun(t *testing.T) {
	svc := NewService(testConfig(t), fixtureAPI(), &stubModel{entity: "X"}, nil, nil)

	_, _, err := svc.Summary(0)
	assert.ErrorContains(t, err, "no analysis results")

	_, err = svc.Mentions("")
	assert.ErrorContains(t, err, "no analysis results")

	assert.ErrorContains(t, svc.Merge([]string{"A"}, "B"), "no analysis results")
	assert.ErrorContains(t, svc.Reset(), "no analysis results")
}

func rehydratedService(t *testing.T) *Service {
	svc := NewService(testConfig(t), fixtureAPI(), &stubModel{entity: "X"}, nil, nil)

	dir := t.TempDir()
	path, err := aggregate.WriteMentionLog(dir, time.Now(), []models.MentionRecord{
		{EntityNormalized: "Иванов", Polarity: "POS", Date: "2024-05-01"},
		{EntityNormalized: "Иванов И.", Polarity: "NEG", Date: "2024-05-01"},
		{EntityNormalized: "Иванов И.", Polarity: "POS", Date: "2024-05-02"},
		{EntityNormalized: "Петров", Polarity: "NEU", Date: "2024-05-01"},
	})
	require.NoError(t, err)
	require.NoError(t, svc.RehydrateFromLog(path))
	return svc
}

func TestMergeAndResetSession(t *testing.T) {
	svc := rehydratedService(t)

	require.NoError(t, svc.Merge([]string{"Иванов И."}, "Иванов"))

	summary, standings, err := svc.Summary(0)
	require.NoError(t, err)
	assert.NotContains(t, summary, "Иванов И.")
	assert.Equal(t, 1, summary["Иванов"]["2024-05-01"]["POS"])
	assert.Equal(t, 1, summary["Иванов"]["2024-05-01"]["NEG"])
	assert.Equal(t, 1, summary["Иванов"]["2024-05-02"]["POS"])
	assert.Equal(t, "Иванов", standings[0].Entity)
	assert.Equal(t, 3, standings[0].Total)

	mentions, err := svc.Mentions("Иванов")
	require.NoError(t, err)
	assert.Len(t, mentions, 3, "alias mentions follow the canonical name")

	require.NoError(t, svc.Reset())

	summary, _, err = svc.Summary(0)
	require.NoError(t, err)
	assert.Contains(t, summary, "Иванов И.")
	assert.Equal(t, 1, summary["Иванов"]["2024-05-01"]["POS"])

	mentions, err = svc.Mentions("Иванов И.")
	require.NoError(t, err)
	assert.Len(t, mentions, 2)
}

func TestMergeValidation(t *testing.T) {
	svc := rehydratedService(t)

	assert.ErrorContains(t, svc.Merge([]string{"Иванов И."}, "   "), "canonical")
	assert.ErrorContains(t, svc.Merge(nil, "Иванов"), "alias list")
}

func TestSummaryTopN(t *testing.T) {
	svc := rehydratedService(t)

	_, standings, err := svc.Summary(1)
	require.NoError(t, err)
	require.Len(t, standings, 1)
	assert.Equal(t, "Иванов И.", standings[0].Entity)
}

func TestSummaryReturnsACopy(t *testing.T) {
	svc := rehydratedService(t)

	summary, _, err := svc.Summary(0)
	require.NoError(t, err)
	summary["Иванов"]["2024-05-01"]["POS"] = 99

	fresh, _, err := svc.Summary(0)
	require.NoError(t, err)
	assert.Equal(t, 1, fresh["Иванов"]["2024-05-01"]["POS"])
}

func TestTrailingWindowRequiresGroups(t *testing.T) {
	cfg := testConfig(t)
	svc := NewService(cfg, fixtureAPI(), &stubModel{entity: "X"}, nil, nil)

	_, err := svc.RunTrailingWindow(context.Background())
	assert.ErrorContains(t, err, "no groups configured")
}

func TestTrailingWindowRunsConfiguredGroups(t *testing.T) {
	cfg := testConfig(t)
	cfg.Groups = []string{"testgroup"}
	api := fixtureAPI()
	// Posts dated inside the trailing window relative to now.
	now := time.Now()
	api.posts = []vkapi.Post{
		{ID: 1, OwnerID: -42, Date: now.Add(-24 * time.Hour).Unix(), Text: "Иванов снова в деле"},
	}
	api.commentsErr = nil
	svc := NewService(cfg, api, &stubModel{entity: "Иванов"}, nil, nil)

	result, err := svc.RunTrailingWindow(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, result.RecordsSaved)
	assert.Equal(t, 1, result.TotalMentions)
}

func TestMetricsTrackRuns(t *testing.T) {
	svc := NewService(testConfig(t), fixtureAPI(), &stubModel{entity: "Иванов"}, nil, nil)

	assert.Equal(t, 0, svc.Metrics().RunsTotal)

	_, err := svc.RunFullAnalysis(context.Background(), "testgroup", "2024-05-01", "2024-05-07")
	require.NoError(t, err)

	metrics := svc.Metrics()
	assert.Equal(t, 1, metrics.RunsTotal)
	assert.False(t, metrics.RunActive)
	require.NotNil(t, metrics.LastRun)
	assert.Equal(t, 3, metrics.LastRun.TotalMentions)
}
