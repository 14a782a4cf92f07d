package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/bobmcallan/folio/internal/models"
)

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("not found")

// StorageManager coordinates all storage backends
type StorageManager interface {
	PortfolioStore() PortfolioStore
	HistoryStore() HistoryStore
	SettingsStore() SettingsStore
	FeedbackStore() FeedbackStore

	// Lifecycle
	Close() error
}

// PortfolioStore persists portfolios and their holdings. Holdings are always
// returned materialised and ordered by symbol.
type PortfolioStore interface {
	GetPortfolio(ctx context.Context, id string) (*models.Portfolio, error)
	SavePortfolio(ctx context.Context, portfolio *models.Portfolio) error
	ListPortfolios(ctx context.Context) ([]*models.Portfolio, error)
	DeletePortfolio(ctx context.Context, id string) error

	SaveHolding(ctx context.Context, portfolioID string, holding models.Holding) error
	DeleteHolding(ctx context.Context, portfolioID, symbol string) error
}

// HistoryStore persists daily value snapshots, one per (portfolio, date).
type HistoryStore interface {
	// UpsertPoint inserts or replaces the point for point.Date's calendar day.
	UpsertPoint(ctx context.Context, point models.HistoryPoint) error

	// GetPoint returns ErrNotFound when no point exists for that day.
	GetPoint(ctx context.Context, portfolioID string, date time.Time) (*models.HistoryPoint, error)

	// ListPoints returns all points for a portfolio in ascending date order.
	ListPoints(ctx context.Context, portfolioID string) ([]models.HistoryPoint, error)
}

// SettingsStore persists per-user risk settings.
type SettingsStore interface {
	// GetSettings returns ErrNotFound when the user has none.
	GetSettings(ctx context.Context, userID string) (*models.UserRiskSettings, error)
	SaveSettings(ctx context.Context, settings *models.UserRiskSettings) error
}

// FeedbackStore persists recommendation feedback. The engines only read it.
type FeedbackStore interface {
	SaveFeedback(ctx context.Context, fb *models.RecommendationFeedback) error
	ListFeedback(ctx context.Context, userID string) ([]models.RecommendationFeedback, error)
}
