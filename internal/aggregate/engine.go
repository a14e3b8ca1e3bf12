package aggregate

import (
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vkpulse/vkpulse/internal/models"
)

// LabelUnknown collects judgments whose polarity is not in the configured
// label set, so a misbehaving model cannot silently lose counts.
const LabelUnknown = "UNKNOWN"

// Summary is the aggregated view: entity name to date key ("2006-01-02")
// to polarity label to mention count.
type Summary map[string]map[string]map[string]int

// Clone returns a deep copy sharing nothing with the receiver.
func (s Summary) Clone() Summary {
	out := make(Summary, len(s))
	for entity, dates := range s {
		outDates := make(map[string]map[string]int, len(dates))
		for date, counts := range dates {
			outCounts := make(map[string]int, len(counts))
			for label, count := range counts {
				outCounts[label] = count
			}
			outDates[date] = outCounts
		}
		out[entity] = outDates
	}
	return out
}

// Total sums every count in the summary.
func (s Summary) Total() int {
	total := 0
	for _, dates := range s {
		for _, counts := range dates {
			for _, count := range counts {
				total += count
			}
		}
	}
	return total
}

// Engine folds per-text sentiment judgments into a Summary and a mention
// log. It holds only the label set, so one engine serves any number of runs.
type Engine struct {
	labels []string
}

// NewEngine creates an engine for the given polarity labels. An empty list
// falls back to the default three-way set.
func NewEngine(labels []string) *Engine {
	if len(labels) == 0 {
		labels = []string{"POS", "NEG", "NEU"}
	}
	copied := make([]string, len(labels))
	copy(copied, labels)
	return &Engine{labels: copied}
}

// newBucket is the only place per-date counters are born: every configured
// label plus the unknown catch-all, all zero. Downstream consumers rely on
// every bucket having the full key set.
func (e *Engine) newBucket() map[string]int {
	bucket := make(map[string]int, len(e.labels)+1)
	for _, label := range e.labels {
		bucket[label] = 0
	}
	bucket[LabelUnknown] = 0
	return bucket
}

// Aggregate pairs each judgment list with its text's provenance and counts
// mentions per entity, day and label. Results and metadata are matched by
// index; on length mismatch the overlapping prefix is processed and the
// rest dropped with a warning. Texts without a timestamp are skipped, as
// are judgments missing an entity or polarity.
func (e *Engine) Aggregate(results [][]models.MentionJudgment, metas []models.SourceMeta) (Summary, []models.MentionRecord) {
	summary := Summary{}
	mentions := []models.MentionRecord{}

	if len(results) != len(metas) {
		logrus.Warnf("Aggregation input mismatch: %d judgment lists vs %d metadata entries, extra entries dropped",
			len(results), len(metas))
	}

	for i, judgments := range results {
		if i >= len(metas) {
			continue
		}
		meta := metas[i]
		if meta.Timestamp == 0 {
			logrus.Warnf("Missing timestamp for text %d (%s %d), skipping", i, meta.SourceType, meta.SourceID)
			continue
		}
		dateKey := time.Unix(meta.Timestamp, 0).Format("2006-01-02")

		for _, judgment := range judgments {
			if judgment.Entity == "" || judgment.Polarity == "" {
				continue
			}

			if _, ok := summary[judgment.Entity]; !ok {
				summary[judgment.Entity] = map[string]map[string]int{}
			}
			bucket, ok := summary[judgment.Entity][dateKey]
			if !ok {
				bucket = e.newBucket()
				summary[judgment.Entity][dateKey] = bucket
			}

			if _, known := bucket[judgment.Polarity]; known {
				bucket[judgment.Polarity]++
			} else {
				bucket[LabelUnknown]++
			}

			mentions = append(mentions, models.MentionRecord{
				EntityNormalized: judgment.Entity,
				EntityOriginal:   judgment.EntityOriginal,
				Polarity:         judgment.Polarity,
				Date:             dateKey,
				Timestamp:        meta.Timestamp,
				SourceType:       meta.SourceType,
				SourceID:         meta.SourceID,
				PostIDIfComment:  meta.PostIDParent,
				GroupName:        meta.GroupName,
				TextPreview:      meta.TextPreview,
			})
		}
	}

	logrus.Infof("Aggregation finished: %d entities, %d mentions", len(summary), len(mentions))
	return summary, mentions
}

// ReaggregateWithAliases folds every alias entity into canonical and
// rewrites the mention log to match. The inputs are never mutated; the
// returned summary and mentions are fresh copies. An empty canonical name
// is rejected by returning the inputs untouched.
func (e *Engine) ReaggregateWithAliases(summary Summary, mentions []models.MentionRecord, aliases []string, canonical string) (Summary, []models.MentionRecord) {
	logrus.Infof("Merging %d alias(es) into %q", len(aliases), canonical)
	if strings.TrimSpace(canonical) == "" {
		logrus.Error("Merge rejected: canonical name is empty")
		return summary, mentions
	}

	newSummary := summary.Clone()
	newMentions := make([]models.MentionRecord, len(mentions))
	copy(newMentions, mentions)

	if _, ok := newSummary[canonical]; !ok {
		newSummary[canonical] = map[string]map[string]int{}
	}

	aliasSet := make(map[string]bool, len(aliases))
	for _, alias := range aliases {
		aliasSet[alias] = true
		if alias == canonical {
			continue
		}

		aliasDates, ok := newSummary[alias]
		if !ok {
			logrus.Warnf("Alias %q not present in summary, nothing to merge", alias)
			continue
		}

		for dateKey, counts := range aliasDates {
			bucket, ok := newSummary[canonical][dateKey]
			if !ok {
				bucket = e.newBucket()
				newSummary[canonical][dateKey] = bucket
			}
			for label, count := range counts {
				bucket[label] += count
			}
		}
		delete(newSummary, alias)
	}

	for i := range newMentions {
		if aliasSet[newMentions[i].EntityNormalized] {
			newMentions[i].EntityNormalized = canonical
		}
	}

	return newSummary, newMentions
}

// Standings flattens a summary into per-entity totals sorted by mention
// count, ties broken alphabetically.
func Standings(summary Summary) []models.EntityStanding {
	standings := make([]models.EntityStanding, 0, len(summary))
	for entity, dates := range summary {
		standing := models.EntityStanding{Entity: entity, ByLabel: map[string]int{}}
		for _, counts := range dates {
			for label, count := range counts {
				standing.ByLabel[label] += count
				standing.Total += count
			}
		}
		standings = append(standings, standing)
	}

	sort.Slice(standings, func(i, j int) bool {
		if standings[i].Total != standings[j].Total {
			return standings[i].Total > standings[j].Total
		}
		return standings[i].Entity < standings[j].Entity
	})
	return standings
}
