// Package sentiment scores news headlines through an external model
// service. The score feeds the heuristic trader, never the consensus
// engine.
package sentiment

import "context"

const (
	LabelPositive = "positive"
	LabelNegative = "negative"
	LabelNeutral  = "neutral"
)

// Sentiment is a classified headline: a label and the model's confidence
// in it, in [0, 1].
type Sentiment struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Neutral is the fallback used when no signal is available.
func Neutral() Sentiment {
	return Sentiment{Label: LabelNeutral, Score: 0.5}
}

// Analyzer classifies text.
type Analyzer interface {
	Estimate(ctx context.Context, text string) (Sentiment, error)
}

// HeadlineSource fetches recent news headlines for a symbol.
type HeadlineSource interface {
	Headlines(ctx context.Context, symbol string) ([]string, error)
}
