package portfolio

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/folio/internal/models"
)

// PerformanceHistoryDays is the history window reported with performance.
const PerformanceHistoryDays = 30

var hundred = decimal.NewFromInt(100)

// pct returns part/whole as a percentage, 0 when whole is not positive.
func pct(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred)
}

// GetPerformance values each quoted holding against its cost basis and
// annotates recent history with its return against today's cost basis.
// Holdings without a quote are left out of the totals.
func (s *Service) GetPerformance(ctx context.Context, portfolioID string) (*models.Performance, error) {
	p, err := s.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	perf := &models.Performance{
		Holdings: make([]models.HoldingPerformance, 0, len(p.Holdings)),
		History:  []models.PerformancePoint{},
	}

	totalValue, totalCost := decimal.Zero, decimal.Zero
	for _, h := range p.Holdings {
		q, ok := s.quotes.GetQuote(ctx, h.Symbol)
		if !ok {
			s.logger.Debug().Str("symbol", h.Symbol).Msg("No quote, holding left out of performance")
			continue
		}
		qty := decimal.NewFromFloat(h.Quantity)
		value := decimal.NewFromFloat(q.CurrentPrice).Mul(qty)
		cost := h.CostBasis()
		gain := value.Sub(cost)

		perf.Holdings = append(perf.Holdings, models.HoldingPerformance{
			Symbol:        h.Symbol,
			Quantity:      h.Quantity,
			PurchasePrice: h.PurchasePrice,
			CurrentPrice:  q.CurrentPrice,
			CurrentValue:  value.InexactFloat64(),
			GainLoss:      gain.InexactFloat64(),
			GainLossPct:   pct(gain, cost).InexactFloat64(),
			PurchaseDate:  h.PurchaseDate,
		})
		totalValue = totalValue.Add(value)
		totalCost = totalCost.Add(cost)
	}

	totalReturn := totalValue.Sub(totalCost)
	perf.TotalValue = totalValue.InexactFloat64()
	perf.TotalCost = totalCost.InexactFloat64()
	perf.TotalReturn = totalReturn.InexactFloat64()
	perf.TotalReturnPct = pct(totalReturn, totalCost).InexactFloat64()

	if s.history != nil {
		points, err := s.history.GetHistory(ctx, portfolioID, PerformanceHistoryDays)
		if err != nil {
			s.logger.Warn().Str("portfolio_id", portfolioID).Err(err).Msg("Failed to load history for performance")
			return perf, nil
		}
		// Cost basis is today's, across all holdings, quoted or not.
		basis := decimal.Zero
		for _, h := range p.Holdings {
			basis = basis.Add(h.CostBasis())
		}
		for _, pt := range points {
			v := decimal.NewFromFloat(pt.TotalValue)
			perf.History = append(perf.History, models.PerformancePoint{
				Date:      pt.Date,
				Value:     pt.TotalValue,
				ReturnPct: pct(v.Sub(basis), basis).InexactFloat64(),
			})
		}
	}
	return perf, nil
}
