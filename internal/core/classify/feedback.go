package classify

import "strings"

type FeedbackCategory string

const (
	FeedbackPositive FeedbackCategory = "positive"
	FeedbackWarning  FeedbackCategory = "warning"
	FeedbackNegative FeedbackCategory = "negative"
	FeedbackNeutral  FeedbackCategory = "neutral"
)

type feedbackRule struct {
	category FeedbackCategory
	keywords []string
}

// Rules are evaluated top to bottom and the first match wins, so a message
// holding both a positive and a warning keyword is positive.
var feedbackRules = []feedbackRule{
	{
		category: FeedbackPositive,
		keywords: []string{"ready to submit", "matches", "valid", "excellent", "authenticity verified", "genuine"},
	},
	{
		category: FeedbackWarning,
		keywords: []string{"mismatch", "confirm", "please", "barcode", "manual review required", "signs of"},
	},
	{
		category: FeedbackNegative,
		keywords: []string{"failed", "error", "expired", "ai generation indicators", "digital manipulation"},
	},
}

// Feedback buckets a free-text feedback line by case-insensitive keyword
// containment.
func Feedback(text string) FeedbackCategory {
	lower := strings.ToLower(text)
	for _, rule := range feedbackRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(lower, keyword) {
				return rule.category
			}
		}
	}
	return FeedbackNeutral
}
