package recommend

import (
	"sort"

	"github.com/bobmcallan/folio/internal/models"
)

// Feedback thresholds on the 1-5 rating scale.
const (
	suppressBelow      = 2.0
	suppressMinSamples = 3
	promoteAbove       = 4.0
	demoteBelow        = 3.0
)

// ApplyFeedback adjusts advice by the user's past ratings of each kind:
// poorly rated kinds with enough samples are dropped, well rated kinds are
// promoted and middling ones demoted. Kinds without feedback are untouched.
func ApplyFeedback(recs []models.Recommendation, stats map[models.Kind]models.FeedbackStats) []models.Recommendation {
	if len(stats) == 0 {
		return recs
	}
	out := make([]models.Recommendation, 0, len(recs))
	for _, r := range recs {
		st, ok := stats[r.Kind()]
		if !ok || st.Count == 0 {
			out = append(out, r)
			continue
		}
		c := r.Common()
		switch {
		case st.AverageRating < suppressBelow && st.Count >= suppressMinSamples:
			continue
		case st.AverageRating > promoteAbove:
			c.Priority = c.Priority.Promote()
		case st.AverageRating < demoteBelow:
			c.Priority = c.Priority.Demote()
		}
		out = append(out, r)
	}
	return out
}

// SortByPriority orders advice high to low, keeping insertion order within
// a priority.
func SortByPriority(recs []models.Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Common().Priority.Weight() > recs[j].Common().Priority.Weight()
	})
}
