package sentiment

import (
	"context"
	"strings"

	"github.com/vkpulse/vkpulse/internal/models"
)

// Lexicon is the offline fallback model. It finds configured entity names
// by case-insensitive substring match and scores each hit against small
// positive and negative word lists. Good enough for smoke tests and for
// running without an inference service.
type Lexicon struct {
	entities []string
	positive []string
	negative []string
}

var _ Model = (*Lexicon)(nil)

// NewLexicon creates a lexicon model tracking the given entity names. The
// configured spelling of each entity doubles as its normalized form.
func NewLexicon(entities []string) *Lexicon {
	return &Lexicon{
		entities: entities,
		positive: []string{
			"хорош", "отличн", "молодец", "спасибо", "поддерж", "супер", "рад",
			"good", "great", "excellent", "love", "awesome", "success",
		},
		negative: []string{
			"плох", "ужас", "позор", "провал", "обман", "хуже", "стыд",
			"bad", "terrible", "awful", "hate", "broken", "fail",
		},
	}
}

func (l *Lexicon) Name() string {
	return "lexicon"
}

// Analyze scans each text for tracked entities and scores the text's tone.
// Texts mentioning no tracked entity get an empty judgment list.
func (l *Lexicon) Analyze(ctx context.Context, texts []string) ([][]models.MentionJudgment, error) {
	results := make([][]models.MentionJudgment, len(texts))
	for i, text := range texts {
		lower := strings.ToLower(text)
		judgments := []models.MentionJudgment{}
		for _, entity := range l.entities {
			needle := strings.ToLower(strings.TrimSpace(entity))
			if needle == "" || !strings.Contains(lower, needle) {
				continue
			}
			name := strings.TrimSpace(entity)
			judgments = append(judgments, models.MentionJudgment{
				Entity:         name,
				EntityOriginal: l.matchedSpelling(text, lower, needle, name),
				Polarity:       l.score(lower),
			})
		}
		results[i] = judgments
	}
	return results, nil
}

// matchedSpelling recovers the entity as it appears in the text. Lowercasing
// can shift byte offsets in some alphabets, so when lengths diverge the
// configured spelling is returned instead.
func (l *Lexicon) matchedSpelling(text, lower, needle, configured string) string {
	if len(lower) != len(text) {
		return configured
	}
	idx := strings.Index(lower, needle)
	if idx < 0 {
		return configured
	}
	return text[idx : idx+len(needle)]
}

func (l *Lexicon) score(lower string) string {
	positiveCount := 0
	negativeCount := 0

	for _, word := range l.positive {
		if strings.Contains(lower, word) {
			positiveCount++
		}
	}
	for _, word := range l.negative {
		if strings.Contains(lower, word) {
			negativeCount++
		}
	}

	if positiveCount > negativeCount {
		return LabelPositive
	}
	if negativeCount > positiveCount {
		return LabelNegative
	}
	return LabelNeutral
}
