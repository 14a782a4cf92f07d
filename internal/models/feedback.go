package models

import "time"

// RecommendationFeedback is a user's rating of a recommendation they were
// shown. The engines only read it.
type RecommendationFeedback struct {
	ID                   string    `json:"id"`
	UserID               string    `json:"user_id"`
	RecommendationType   Kind      `json:"recommendation_type"`
	RecommendationAction string    `json:"recommendation_action"`
	Rating               int       `json:"rating"` // 1-5
	WasFollowed          bool      `json:"was_followed"`
	Comment              string    `json:"comment,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

// Rating bounds.
const (
	MinFeedbackRating = 1
	MaxFeedbackRating = 5
)

// ValidRating reports whether r is within the 1-5 scale.
func ValidRating(r int) bool {
	return r >= MinFeedbackRating && r <= MaxFeedbackRating
}

// FeedbackStats aggregates ratings for one recommendation type.
type FeedbackStats struct {
	Count         int     `json:"count"`
	AverageRating float64 `json:"average_rating"`
	FollowedCount int     `json:"followed_count"`
}

// AggregateFeedback groups feedback by recommendation type. Ratings outside
// the 1-5 scale are ignored.
func AggregateFeedback(items []RecommendationFeedback) map[Kind]FeedbackStats {
	sums := make(map[Kind]int)
	stats := make(map[Kind]FeedbackStats)
	for _, fb := range items {
		if !ValidRating(fb.Rating) {
			continue
		}
		s := stats[fb.RecommendationType]
		s.Count++
		if fb.WasFollowed {
			s.FollowedCount++
		}
		sums[fb.RecommendationType] += fb.Rating
		stats[fb.RecommendationType] = s
	}
	for kind, s := range stats {
		s.AverageRating = float64(sums[kind]) / float64(s.Count)
		stats[kind] = s
	}
	return stats
}
