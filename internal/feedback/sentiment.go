package feedback

import (
	"fmt"
	"math"
	"strings"

	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/domain"
)

// Sentiment classes.
const (
	Positive = "positive"
	Neutral  = "neutral"
	Negative = "negative"
)

// NoFeedbackMessage is the summary when nothing has been submitted.
const NoFeedbackMessage = "No feedback yet."

// Keywords are matched as lowercase substrings of the notes.
type Keywords struct {
	Positive []string
	Neutral  []string
}

// DefaultKeywords are the stock sentiment keywords.
var DefaultKeywords = Keywords{
	Positive: []string{"love", "great", "awesome"},
	Neutral:  []string{"okay", "fine"},
}

// Sentiment is the distribution of feedback across classes. Percentages are
// rounded independently and may not sum to 100.
type Sentiment struct {
	Empty       bool   `json:"empty"`
	Total       int    `json:"total"`
	Positive    int    `json:"positive"`
	Neutral     int    `json:"neutral"`
	Negative    int    `json:"negative"`
	PositivePct int    `json:"positive_pct"`
	NeutralPct  int    `json:"neutral_pct"`
	NegativePct int    `json:"negative_pct"`
	Summary     string `json:"summary"`
}

// Classify returns the class of one record: a rating of 4 or more or a
// positive keyword wins, then a rating of 3 or a neutral keyword.
func (k Keywords) Classify(rec domain.FeedbackRecord) string {
	notes := strings.ToLower(rec.Notes)
	switch {
	case rec.Rating >= 4 || containsAny(notes, k.Positive):
		return Positive
	case rec.Rating == 3 || containsAny(notes, k.Neutral):
		return Neutral
	default:
		return Negative
	}
}

// Derive computes the sentiment distribution of records.
func (k Keywords) Derive(records []domain.FeedbackRecord) Sentiment {
	if len(records) == 0 {
		return Sentiment{Empty: true, Summary: NoFeedbackMessage}
	}

	s := Sentiment{Total: len(records)}
	for _, rec := range records {
		switch k.Classify(rec) {
		case Positive:
			s.Positive++
		case Neutral:
			s.Neutral++
		default:
			s.Negative++
		}
	}
	s.PositivePct = percent(s.Positive, s.Total)
	s.NeutralPct = percent(s.Neutral, s.Total)
	s.NegativePct = percent(s.Negative, s.Total)
	s.Summary = fmt.Sprintf("😊 Positive: %d%% | 😐 Neutral: %d%% | 😞 Negative: %d%%",
		s.PositivePct, s.NeutralPct, s.NegativePct)
	return s
}

// DeriveSentiment scores records with DefaultKeywords.
func DeriveSentiment(records []domain.FeedbackRecord) Sentiment {
	return DefaultKeywords.Derive(records)
}

func percent(n, total int) int {
	return int(math.Round(float64(n) / float64(total) * 100))
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if w != "" && strings.Contains(s, strings.ToLower(w)) {
			return true
		}
	}
	return false
}
