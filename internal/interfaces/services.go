package interfaces

import (
	"context"

	"github.com/bobmcallan/folio/internal/models"
)

// QuoteProvider supplies current prices and daily history. Absence of data
// is a normal outcome and is reported with ok=false, never as an error.
type QuoteProvider interface {
	GetQuote(ctx context.Context, symbol string) (*models.Quote, bool)
	GetDailyHistory(ctx context.Context, symbol string, size models.OutputSize) ([]models.Bar, error)
	GetFundamentals(ctx context.Context, symbol string) (*models.Fundamentals, bool)
}

// HistoryTracker records and reads daily portfolio value snapshots.
type HistoryTracker interface {
	RecordPortfolioValue(ctx context.Context, portfolio *models.Portfolio) (float64, error)
	GetHistory(ctx context.Context, portfolioID string, days int) ([]models.HistoryPoint, error)
	GetRecentHistory(ctx context.Context, portfolioID string, days int) ([]models.HistoryPoint, error)
	RecordAll(ctx context.Context) (int, error)
}

// RiskEngine derives risk metrics from holdings and price history.
type RiskEngine interface {
	CalculatePortfolioRisk(ctx context.Context, portfolio *models.Portfolio) models.RiskProfile
	ProjectTrade(ctx context.Context, portfolio *models.Portfolio, action models.TradeAction, symbol string, quantity float64) (*models.TradeImpact, error)
}

// Predictor forecasts forward returns per symbol.
type Predictor interface {
	PredictStockMovement(ctx context.Context, symbols []string, days int) map[string]models.Prediction
}

// Recommender produces prioritised advice for a portfolio.
type Recommender interface {
	GenerateRecommendations(ctx context.Context, portfolio *models.Portfolio) []models.Recommendation
	GenerateEnhancedRecommendations(ctx context.Context, portfolio *models.Portfolio, userID string) []models.Recommendation
}
