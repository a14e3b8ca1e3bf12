package aggregate

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vkpulse/vkpulse/internal/models"
)

// MentionLogFilename builds the per-run mention log name from a timestamp.
func MentionLogFilename(at time.Time) string {
	return fmt.Sprintf("nlp_analysis_results_%s.jsonl", at.Format("20060102_150405"))
}

// WriteMentionLog persists mentions as JSONL under dir and returns the file
// path. With no mentions it writes nothing and returns an empty path.
func WriteMentionLog(dir string, at time.Time, mentions []models.MentionRecord) (string, error) {
	if len(mentions) == 0 {
		logrus.Info("No detailed mentions to save")
		return "", nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating mention log directory: %w", err)
	}

	path := filepath.Join(dir, MentionLogFilename(at))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating mention log: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for i := range mentions {
		if err := enc.Encode(&mentions[i]); err != nil {
			return "", fmt.Errorf("encoding mention: %w", err)
		}
	}

	logrus.Infof("Saved %d detailed mentions to %s", len(mentions), path)
	return path, nil
}

// LoadMentionLog reads a mention log back. Undecodable lines are logged and
// skipped so a truncated tail does not lose the whole file.
func LoadMentionLog(path string) ([]models.MentionRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening mention log: %w", err)
	}
	defer f.Close()

	var mentions []models.MentionRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var mention models.MentionRecord
		if err := json.Unmarshal(scanner.Bytes(), &mention); err != nil {
			logrus.Errorf("Skipping undecodable mention at line %d of %s: %v", lineNumber, path, err)
			continue
		}
		mentions = append(mentions, mention)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading mention log: %w", err)
	}

	return mentions, nil
}

// RebuildSummary reconstructs the aggregated view from a mention log. Used
// to rehydrate a session from the last run's artifacts after a restart.
func (e *Engine) RebuildSummary(mentions []models.MentionRecord) Summary {
	summary := Summary{}
	for _, mention := range mentions {
		if mention.EntityNormalized == "" || mention.Polarity == "" || mention.Date == "" {
			continue
		}
		if _, ok := summary[mention.EntityNormalized]; !ok {
			summary[mention.EntityNormalized] = map[string]map[string]int{}
		}
		bucket, ok := summary[mention.EntityNormalized][mention.Date]
		if !ok {
			bucket = e.newBucket()
			summary[mention.EntityNormalized][mention.Date] = bucket
		}
		if _, known := bucket[mention.Polarity]; known {
			bucket[mention.Polarity]++
		} else {
			bucket[LabelUnknown]++
		}
	}
	return summary
}
