package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

// feedbackSelectFields aliases feedback_id to id for struct mapping.
const feedbackSelectFields = `feedback_id as id, user_id, recommendation_type,
	recommendation_action, rating, was_followed, comment, created_at`

// FeedbackStore implements interfaces.FeedbackStore using SurrealDB.
type FeedbackStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewFeedbackStore creates a new FeedbackStore.
func NewFeedbackStore(db *surrealdb.DB, logger *common.Logger) *FeedbackStore {
	return &FeedbackStore{db: db, logger: logger}
}

func (s *FeedbackStore) SaveFeedback(ctx context.Context, fb *models.RecommendationFeedback) error {
	if !models.ValidRating(fb.Rating) {
		return fmt.Errorf("rating %d outside %d-%d", fb.Rating, models.MinFeedbackRating, models.MaxFeedbackRating)
	}
	if fb.ID == "" {
		fb.ID = fmt.Sprintf("rf_%s", uuid.New().String()[:8])
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now()
	}

	sql := `UPSERT $rid SET
		feedback_id = $feedback_id, user_id = $user_id,
		recommendation_type = $recommendation_type,
		recommendation_action = $recommendation_action,
		rating = $rating, was_followed = $was_followed, comment = $comment,
		created_at = $created_at`
	vars := map[string]any{
		"rid":                   surrealmodels.NewRecordID(tableFeedback, fb.ID),
		"feedback_id":           fb.ID,
		"user_id":               fb.UserID,
		"recommendation_type":   string(fb.RecommendationType),
		"recommendation_action": fb.RecommendationAction,
		"rating":                fb.Rating,
		"was_followed":          fb.WasFollowed,
		"comment":               fb.Comment,
		"created_at":            fb.CreatedAt,
	}

	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}
	return nil
}

// ListFeedback returns a user's feedback, oldest first.
func (s *FeedbackStore) ListFeedback(ctx context.Context, userID string) ([]models.RecommendationFeedback, error) {
	sql := "SELECT " + feedbackSelectFields + " FROM recommendation_feedback WHERE user_id = $user_id ORDER BY created_at ASC, feedback_id ASC"
	vars := map[string]any{"user_id": userID}

	results, err := surrealdb.Query[[]models.RecommendationFeedback](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}

	items := firstResult(results)
	if items == nil {
		items = []models.RecommendationFeedback{}
	}
	return items, nil
}

var _ interfaces.FeedbackStore = (*FeedbackStore)(nil)
