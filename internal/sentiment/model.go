package sentiment

import (
	"context"

	"github.com/vkpulse/vkpulse/internal/models"
)

// Polarity labels emitted by the bundled models. The aggregation layer
// accepts any label set via configuration; these are the defaults.
const (
	LabelPositive = "POS"
	LabelNegative = "NEG"
	LabelNeutral  = "NEU"
)

// Model produces, for every input text, the list of entities mentioned in
// it together with a polarity verdict per entity. The outer result slice is
// always index-aligned with the input texts.
type Model interface {
	Name() string
	Analyze(ctx context.Context, texts []string) ([][]models.MentionJudgment, error)
}
