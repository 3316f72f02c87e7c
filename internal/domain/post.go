package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Post is a single entry from the monitored content feed. It is read-only to
// this service.
type Post struct {
	// ID is the feed-assigned post identifier (e.g. 117290636838993_1234).
	ID string `json:"id"`

	// Message is the post body. Empty when the post has no text.
	Message string `json:"message,omitempty"`

	// CreatedTime is when the post was published.
	CreatedTime time.Time `json:"created_time"`

	// PermalinkURL is the public link to the post, when the feed returns one.
	PermalinkURL string `json:"permalink_url,omitempty"`
}

// PostAnalysis is the detector verdict for a single post.
type PostAnalysis struct {
	IsRateUpdate bool
	PostID       string
	Message      string
	PermalinkURL string
	CreatedTime  time.Time

	// ExtractedRate is the tariff value found in the text. Valid is false
	// when the post looked rate-related but no number could be extracted.
	ExtractedRate decimal.NullDecimal
}

// AnalyzePost runs the rate-update detector over a post.
func AnalyzePost(p Post) PostAnalysis {
	isRate, rate := DetectRateUpdate(p.Message)
	return PostAnalysis{
		IsRateUpdate:  isRate,
		PostID:        p.ID,
		Message:       p.Message,
		PermalinkURL:  p.PermalinkURL,
		CreatedTime:   p.CreatedTime,
		ExtractedRate: rate,
	}
}
