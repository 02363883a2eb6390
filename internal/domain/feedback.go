package domain

// DefaultFeedbackName is used when a visitor leaves the name blank.
const DefaultFeedbackName = "Anonymous"

// FeedbackRecord is a single piece of customer feedback.
type FeedbackRecord struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name"`
	Rating int    `json:"rating"`
	Notes  string `json:"notes"`
	Date   string `json:"date"`
}
