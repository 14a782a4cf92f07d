package history

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/folio/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Summary records today's value for portfolio, then summarises up to days
// points of its history. A failed recording is logged and the summary is
// built from what is stored.
func (s *Service) Summary(ctx context.Context, portfolio *models.Portfolio, days int) (*models.HistorySummary, error) {
	if _, err := s.RecordPortfolioValue(ctx, portfolio); err != nil {
		s.logger.Warn().Str("portfolio_id", portfolio.ID).Err(err).Msg("Summarising history without today's value")
	}

	points, err := s.GetHistory(ctx, portfolio.ID, days)
	if err != nil {
		return nil, err
	}
	return Summarise(points), nil
}

// Summarise computes returns relative to the first point. With no points, or
// a zero first value, every return is zero and Returns is empty.
func Summarise(points []models.HistoryPoint) *models.HistorySummary {
	sum := &models.HistorySummary{
		Points:  append([]models.HistoryPoint{}, points...),
		Returns: []float64{},
	}
	if len(points) == 0 {
		return sum
	}

	initial := decimal.NewFromFloat(points[0].TotalValue)
	current := decimal.NewFromFloat(points[len(points)-1].TotalValue)
	sum.InitialValue = initial.InexactFloat64()
	sum.CurrentValue = current.InexactFloat64()
	if initial.IsZero() {
		return sum
	}

	for _, p := range points {
		sum.Returns = append(sum.Returns, relativeReturn(decimal.NewFromFloat(p.TotalValue), initial))
	}
	sum.TotalReturnPct = relativeReturn(current, initial)
	return sum
}

func relativeReturn(value, initial decimal.Decimal) float64 {
	return value.Div(initial).Sub(decimal.NewFromInt(1)).Mul(hundred).InexactFloat64()
}
