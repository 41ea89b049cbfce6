package extraction

import "strings"

// Sentiment labels for chat messages.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

var positiveWords = []string{
	"love", "great", "happy", "excited", "wonderful", "thanks", "thank",
	"awesome", "amazing", "perfect", "glad", "good",
}

var negativeWords = []string{
	"hate", "angry", "sad", "upset", "terrible", "awful", "frustrated",
	"annoyed", "worried", "stressed", "bad", "sorry",
}

// ScoreSentiment classifies text by keyword counts. Ties and no matches are
// neutral.
func ScoreSentiment(text string) string {
	lower := strings.ToLower(text)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '\''
	})

	score := 0
	for _, w := range words {
		for _, p := range positiveWords {
			if w == p {
				score++
			}
		}
		for _, n := range negativeWords {
			if w == n {
				score--
			}
		}
	}

	switch {
	case score > 0:
		return SentimentPositive
	case score < 0:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}
