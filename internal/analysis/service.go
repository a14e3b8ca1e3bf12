package analysis

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vkpulse/vkpulse/internal/aggregate"
	"github.com/vkpulse/vkpulse/internal/collector"
	"github.com/vkpulse/vkpulse/internal/config"
	"github.com/vkpulse/vkpulse/internal/models"
	"github.com/vkpulse/vkpulse/internal/notifications"
	"github.com/vkpulse/vkpulse/internal/preprocess"
	"github.com/vkpulse/vkpulse/internal/sentiment"
	"github.com/vkpulse/vkpulse/internal/storage"
	"github.com/vkpulse/vkpulse/internal/vkapi"
)

// storeFilename is the shared collection file of the current run. Each run
// truncates it; there is no resume.
const storeFilename = "vk_parsed_data_temp.jsonl"

// session holds the outcome of the last completed run plus any alias merges
// applied since. Reset rolls back to the baseline; a new run replaces the
// whole session.
type session struct {
	baseSummary  aggregate.Summary
	baseMentions []models.MentionRecord

	summary  aggregate.Summary
	mentions []models.MentionRecord

	mentionLogPath string
	report         *models.Report
}

// Service runs the end-to-end analysis: collect, extract, score, aggregate,
// persist, report. One run at a time; results stay queryable in the session
// until the next run.
type Service struct {
	cfg      *config.Config
	api      vkapi.API
	model    sentiment.Model
	engine   *aggregate.Engine
	archive  storage.ArtifactStore
	notifier notifications.Notifier

	runMu sync.Mutex

	sessionMu sync.RWMutex
	session   *session
	runActive bool
	runsTotal int
	lastRun   *models.AnalysisResult
}

// NewService wires the analysis pipeline. The archive store and notifier
// are optional; pass nil to disable those stages.
func NewService(cfg *config.Config, api vkapi.API, model sentiment.Model, archive storage.ArtifactStore, notifier notifications.Notifier) *Service {
	return &Service{
		cfg:      cfg,
		api:      api,
		model:    model,
		engine:   aggregate.NewEngine(cfg.SentimentLabels),
		archive:  archive,
		notifier: notifier,
	}
}

// Metrics is the service's self-describing counter set.
type Metrics struct {
	RunsTotal int                    `json:"runs_total"`
	RunActive bool                   `json:"run_active"`
	LastRun   *models.AnalysisResult `json:"last_run,omitempty"`
}

// RunFullAnalysis executes one complete run over the groups in the CSV list
// and the inclusive [startDate, endDate] window ("2006-01-02"). Only one
// run may be active; a second call fails fast instead of queueing.
func (s *Service) RunFullAnalysis(ctx context.Context, groupsCSV, startDate, endDate string) (*models.AnalysisResult, error) {
	if !s.runMu.TryLock() {
		return nil, fmt.Errorf("analysis run already in progress")
	}
	defer s.runMu.Unlock()
	s.setRunActive(true)
	defer s.setRunActive(false)

	groups := splitGroups(groupsCSV)
	if len(groups) == 0 {
		return nil, fmt.Errorf("group list must not be empty")
	}
	if s.cfg.VKAccessToken == "" {
		return nil, fmt.Errorf("VK access token is not configured")
	}

	start, end, err := parseWindow(startDate, endDate)
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	log := logrus.WithField("run_id", runID)
	startedAt := time.Now()
	log.Infof("Starting analysis run: groups=%v window=%s..%s", groups, startDate, endDate)

	storePath := filepath.Join(s.cfg.DataDir, storeFilename)
	runStore := collector.NewRunStore(storePath)
	coord := collector.NewCoordinator(s.api, runStore, collector.Config{
		PostsChunkSize:     s.cfg.PostsChunkSize,
		CommentsChunkSize:  s.cfg.CommentsChunkSize,
		MaxCommentsPerPost: s.cfg.MaxCommentsPerPost,
		GroupConcurrency:   s.cfg.GroupConcurrency,
		LaunchStagger:      s.cfg.LaunchStagger,
	})

	collected, err := coord.Collect(ctx, groups, start, end)
	if err != nil {
		return nil, fmt.Errorf("collecting VK data: %w", err)
	}
	log.Infof("Collection done: %d records saved, %d group(s) failed", collected.TotalSaved, collected.GroupErrors)

	texts, metas, err := preprocess.NewExtractor(s.cfg.TextPreviewLength).Extract(storePath)
	if err != nil {
		return nil, fmt.Errorf("preparing texts for analysis: %w", err)
	}

	if len(texts) == 0 {
		message := "collection finished but produced no texts to analyze"
		if collected.TotalSaved == 0 {
			message = "no records collected"
		}
		log.Infof("Stopping run early: %s", message)
		result := &models.AnalysisResult{
			RunID:        runID,
			StorePath:    collected.StorePath,
			RecordsSaved: collected.TotalSaved,
			GroupErrors:  collected.GroupErrors,
			Message:      message,
			StartedAt:    startedAt,
			Duration:     time.Since(startedAt).Round(time.Millisecond).String(),
		}
		s.installSession(&session{
			baseSummary:  aggregate.Summary{},
			baseMentions: []models.MentionRecord{},
			summary:      aggregate.Summary{},
			mentions:     []models.MentionRecord{},
		}, result)
		return result, nil
	}

	log.Infof("Scoring %d texts with %s model", len(texts), s.model.Name())
	judgments, err := s.model.Analyze(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("sentiment analysis failed: %w", err)
	}

	summary, mentions := s.engine.Aggregate(judgments, metas)

	mentionLogPath, err := aggregate.WriteMentionLog(s.cfg.DataDir, startedAt, mentions)
	if err != nil {
		// The aggregated session is still usable without the log file.
		log.Errorf("Failed to save mention log: %v", err)
		mentionLogPath = ""
	}

	if s.archive != nil {
		if _, err := storage.ArchiveRunArtifacts(s.archive, runID, storePath, mentionLogPath); err != nil {
			log.Warnf("Failed to archive run artifacts: %v", err)
		}
	}

	report := &models.Report{
		RunID:            runID,
		GeneratedAt:      time.Now(),
		WindowStart:      startDate,
		WindowEnd:        endDate,
		Groups:           groups,
		RecordsCollected: collected.TotalSaved,
		TextsAnalyzed:    len(texts),
		TotalMentions:    len(mentions),
		Standings:        aggregate.Standings(summary),
		MentionLogPath:   mentionLogPath,
	}

	result := &models.AnalysisResult{
		RunID:          runID,
		StorePath:      collected.StorePath,
		MentionLogPath: mentionLogPath,
		RecordsSaved:   collected.TotalSaved,
		GroupErrors:    collected.GroupErrors,
		TextsAnalyzed:  len(texts),
		TotalMentions:  len(mentions),
		Message:        "analysis completed",
		StartedAt:      startedAt,
		Duration:       time.Since(startedAt).Round(time.Millisecond).String(),
	}

	s.installSession(&session{
		baseSummary:    summary.Clone(),
		baseMentions:   append([]models.MentionRecord(nil), mentions...),
		summary:        summary,
		mentions:       mentions,
		mentionLogPath: mentionLogPath,
		report:         report,
	}, result)

	if s.notifier != nil {
		if err := s.notifier.SendReport(report); err != nil {
			log.Errorf("Failed to deliver report: %v", err)
		}
	}

	log.Infof("Analysis run finished in %s: %d mentions of %d entities",
		result.Duration, len(mentions), len(summary))
	return result, nil
}

// RunTrailingWindow runs the analysis for the configured groups over the
// last WindowDays days, ending today. Used by the scheduler.
func (s *Service) RunTrailingWindow(ctx context.Context) (*models.AnalysisResult, error) {
	if len(s.cfg.Groups) == 0 {
		return nil, fmt.Errorf("no groups configured")
	}

	end := time.Now()
	start := end.AddDate(0, 0, -(s.cfg.WindowDays - 1))
	return s.RunFullAnalysis(ctx,
		strings.Join(s.cfg.Groups, ","),
		start.Format("2006-01-02"),
		end.Format("2006-01-02"))
}

func (s *Service) installSession(sess *session, result *models.AnalysisResult) {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	s.session = sess
	s.runsTotal++
	s.lastRun = result
}

// Merge folds the alias entities into canonical within the current session.
func (s *Service) Merge(aliases []string, canonical string) error {
	if strings.TrimSpace(canonical) == "" {
		return fmt.Errorf("canonical name must not be empty")
	}
	if len(aliases) == 0 {
		return fmt.Errorf("alias list must not be empty")
	}

	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	if s.session == nil {
		return fmt.Errorf("no analysis results in session")
	}

	summary, mentions := s.engine.ReaggregateWithAliases(s.session.summary, s.session.mentions, aliases, canonical)
	s.session.summary = summary
	s.session.mentions = mentions
	return nil
}

// Reset discards all merges, restoring the session to the state produced by
// the last run.
func (s *Service) Reset() error {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	if s.session == nil {
		return fmt.Errorf("no analysis results in session")
	}

	s.session.summary = s.session.baseSummary.Clone()
	s.session.mentions = append([]models.MentionRecord(nil), s.session.baseMentions...)
	logrus.Info("Session restored to the last run's baseline")
	return nil
}

// Summary returns a copy of the current aggregated view and the standings
// derived from it, trimmed to topN entities when topN is positive.
func (s *Service) Summary(topN int) (aggregate.Summary, []models.EntityStanding, error) {
	s.sessionMu.RLock()
	defer s.sessionMu.RUnlock()
	if s.session == nil {
		return nil, nil, fmt.Errorf("no analysis results in session")
	}

	standings := aggregate.Standings(s.session.summary)
	if topN > 0 && len(standings) > topN {
		standings = standings[:topN]
	}
	return s.session.summary.Clone(), standings, nil
}

// Mentions returns the session's mention log, filtered to one normalized
// entity when entity is non-empty.
func (s *Service) Mentions(entity string) ([]models.MentionRecord, error) {
	s.sessionMu.RLock()
	defer s.sessionMu.RUnlock()
	if s.session == nil {
		return nil, fmt.Errorf("no analysis results in session")
	}

	if entity == "" {
		return append([]models.MentionRecord(nil), s.session.mentions...), nil
	}

	var filtered []models.MentionRecord
	for _, mention := range s.session.mentions {
		if mention.EntityNormalized == entity {
			filtered = append(filtered, mention)
		}
	}
	return filtered, nil
}

// RehydrateFromLog rebuilds a session from a previously written mention
// log, so merges and queries work again after a restart without rerunning
// the collection.
func (s *Service) RehydrateFromLog(path string) error {
	mentions, err := aggregate.LoadMentionLog(path)
	if err != nil {
		return err
	}

	summary := s.engine.RebuildSummary(mentions)

	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	s.session = &session{
		baseSummary:    summary.Clone(),
		baseMentions:   append([]models.MentionRecord(nil), mentions...),
		summary:        summary,
		mentions:       mentions,
		mentionLogPath: path,
	}
	logrus.Infof("Session rehydrated from %s: %d mentions", path, len(mentions))
	return nil
}

// LastReport returns the report of the last completed run, if any.
func (s *Service) LastReport() (*models.Report, error) {
	s.sessionMu.RLock()
	defer s.sessionMu.RUnlock()
	if s.session == nil || s.session.report == nil {
		return nil, fmt.Errorf("no report available")
	}
	return s.session.report, nil
}

func (s *Service) setRunActive(active bool) {
	s.sessionMu.Lock()
	s.runActive = active
	s.sessionMu.Unlock()
}

// Metrics reports run counters for the /metrics endpoint.
func (s *Service) Metrics() Metrics {
	s.sessionMu.RLock()
	defer s.sessionMu.RUnlock()
	return Metrics{
		RunsTotal: s.runsTotal,
		RunActive: s.runActive,
		LastRun:   s.lastRun,
	}
}

func splitGroups(raw string) []string {
	var groups []string
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == '\n' })
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			groups = append(groups, trimmed)
		}
	}
	return groups
}

// parseWindow expands two date strings into an inclusive local-time window
// covering both days in full.
func parseWindow(startDate, endDate string) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation("2006-01-02", startDate, time.Local)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q: %w", startDate, err)
	}
	end, err := time.ParseInLocation("2006-01-02", endDate, time.Local)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q: %w", endDate, err)
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start date %s is after end date %s", startDate, endDate)
	}

	end = end.Add(24*time.Hour - time.Second)
	return start, end, nil
}
