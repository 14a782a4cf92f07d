package predict

import (
	"context"

	"github.com/bobmcallan/folio/internal/models"
)

// RecentBars is how many trailing closes a Forecast carries.
const RecentBars = 30

// PredictWithPath is PredictStockMovement plus, per symbol, the trailing
// closes and a straight-line price path to the target.
func (s *Service) PredictWithPath(ctx context.Context, symbols []string, days int) map[string]models.Forecast {
	if days <= 0 {
		days = DefaultDays
	}
	timer := s.metrics.StartStep("predict")
	defer timer.Stop()

	out := make(map[string]models.Forecast, len(symbols))
	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			s.logger.Warn().Err(err).Msg("Forecast batch cancelled")
			break
		}
		p, bars, ok := s.predictSymbol(ctx, symbol, days)
		if !ok {
			continue
		}
		out[symbol] = models.Forecast{
			Prediction: p,
			Recent:     recentCloses(bars, RecentBars),
			Path:       ProjectPath(bars[len(bars)-1], p.ExpectedReturn, days),
		}
	}
	return out
}

// ProjectPath spreads expectedReturn evenly over days calendar days after
// last. Point i is last.Close * (1 + r*(i+1)/days).
func ProjectPath(last models.Bar, expectedReturn float64, days int) []models.PricePoint {
	if days <= 0 {
		return nil
	}
	path := make([]models.PricePoint, days)
	for i := range path {
		path[i] = models.PricePoint{
			Date:  last.Date.AddDate(0, 0, i+1),
			Price: last.Close * (1 + expectedReturn*float64(i+1)/float64(days)),
		}
	}
	return path
}

func recentCloses(bars []models.Bar, n int) []models.PricePoint {
	if len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	out := make([]models.PricePoint, len(bars))
	for i, b := range bars {
		out[i] = models.PricePoint{Date: b.Date, Price: b.Close}
	}
	return out
}
