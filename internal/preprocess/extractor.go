package preprocess

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vkpulse/vkpulse/internal/models"
)

// DefaultPreviewLength bounds the text excerpt carried in source metadata.
const DefaultPreviewLength = 300

// Extractor reads a collection run file and flattens it into the two
// parallel slices the sentiment model consumes: raw texts and, index for
// index, the provenance of each text.
type Extractor struct {
	previewLength int
}

// NewExtractor creates an extractor. A non-positive preview length falls
// back to DefaultPreviewLength.
func NewExtractor(previewLength int) *Extractor {
	if previewLength <= 0 {
		previewLength = DefaultPreviewLength
	}
	return &Extractor{previewLength: previewLength}
}

// Extract walks the JSONL store at path and returns one entry per non-empty
// post text followed by one per non-empty comment text. Lines that fail to
// decode are logged and skipped so one corrupt record cannot sink a run.
// A missing store file yields empty results, matching a run that collected
// nothing.
func (e *Extractor) Extract(path string) ([]string, []models.SourceMeta, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			logrus.Warnf("Collection store not found: %s", path)
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("opening collection store: %w", err)
	}
	defer f.Close()

	var (
		texts []string
		metas []models.SourceMeta
	)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		var record models.CollectionRecord
		if err := json.Unmarshal(line, &record); err != nil {
			logrus.Errorf("Skipping undecodable line %d in %s: %v", lineNumber, path, err)
			continue
		}

		if text := strings.TrimSpace(record.Text); text != "" {
			texts = append(texts, text)
			metas = append(metas, models.SourceMeta{
				SourceType:  "post",
				SourceID:    record.VKPostID,
				GroupID:     record.VKGroupID,
				GroupName:   record.GroupName,
				Timestamp:   record.Date,
				TextPreview: e.preview(text),
			})
		}

		for _, comment := range record.Comments {
			text := strings.TrimSpace(comment.Text)
			if text == "" {
				continue
			}
			texts = append(texts, text)
			metas = append(metas, models.SourceMeta{
				SourceType:   "comment",
				SourceID:     comment.VKCommentID,
				GroupID:      record.VKGroupID,
				GroupName:    record.GroupName,
				Timestamp:    comment.Date,
				TextPreview:  e.preview(text),
				PostIDParent: record.VKPostID,
				CommenterID:  comment.FromID,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading collection store: %w", err)
	}

	logrus.Infof("Prepared %d texts for analysis from %s", len(texts), path)
	return texts, metas, nil
}

func (e *Extractor) preview(text string) string {
	runes := []rune(text)
	if len(runes) <= e.previewLength {
		return text
	}
	return string(runes[:e.previewLength])
}
