package risk

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/bobmcallan/folio/internal/models"
)

// Defaults for what-if trades when the caller gives no quantity.
const (
	DefaultBuyQuantity = 5
	// defaultStockVolatility is assumed for a symbol with no measured risk.
	defaultStockVolatility = 0.25
)

var (
	// ErrNoQuote is returned when the traded symbol has no current price.
	ErrNoQuote = errors.New("no quote available")
	// ErrNotHeld is returned when projecting a sale of a symbol not held.
	ErrNotHeld = errors.New("symbol not held")
	// ErrInvalidAction is returned for an action other than buy or sell.
	ErrInvalidAction = errors.New("invalid trade action")
)

// ProjectTrade estimates how buying or selling quantity of symbol would move
// the portfolio's allocation and headline risk. quantity <= 0 selects the
// default: 5 shares for a buy, half the position (at least one share) for a
// sell. The risk projection is a heuristic, not a re-run of the covariance.
func (s *Service) ProjectTrade(ctx context.Context, portfolio *models.Portfolio, action models.TradeAction, symbol string, quantity float64) (*models.TradeImpact, error) {
	if action != models.TradeActionBuy && action != models.TradeActionSell {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}

	quote, ok := s.quotes.GetQuote(ctx, symbol)
	if !ok {
		return nil, fmt.Errorf("%s: %w", symbol, ErrNoQuote)
	}
	price := quote.CurrentPrice

	prices := make(map[string]float64, len(portfolio.Holdings))
	current := make([]models.AllocationItem, 0, len(portfolio.Holdings))
	for _, h := range portfolio.Holdings {
		q, ok := s.quotes.GetQuote(ctx, h.Symbol)
		if !ok {
			continue
		}
		prices[h.Symbol] = q.CurrentPrice
		current = append(current, models.AllocationItem{Symbol: h.Symbol, Value: h.Quantity * q.CurrentPrice})
	}
	currentTotal := reweigh(current)

	profile := s.CalculatePortfolioRisk(ctx, portfolio)
	impact := &models.TradeImpact{
		Action:            action,
		Symbol:            symbol,
		CurrentValue:      currentTotal,
		CurrentAllocation: current,
		CurrentRisk: models.RiskSnapshot{
			Volatility:      profile.Volatility,
			Diversification: profile.DiversificationScore,
		},
	}
	impact.ProjectedRisk = impact.CurrentRisk

	stockVol := defaultStockVolatility
	if sr, ok := profile.StockRisks[symbol]; ok {
		stockVol = sr.Volatility
	}

	held, isHeld := portfolio.Holding(symbol)

	switch action {
	case models.TradeActionBuy:
		if quantity <= 0 {
			quantity = DefaultBuyQuantity
		}
		projected := make([]models.AllocationItem, 0, len(current)+1)
		for _, h := range portfolio.Holdings {
			p, ok := prices[h.Symbol]
			if !ok {
				continue
			}
			qty := h.Quantity
			if h.Symbol == symbol {
				qty += quantity
			}
			projected = append(projected, models.AllocationItem{Symbol: h.Symbol, Value: qty * p})
		}
		if !isHeld {
			projected = append(projected, models.AllocationItem{Symbol: symbol, Value: quantity * price})
		}
		impact.ProjectedAllocation = projected
		impact.ProjectedValue = reweigh(projected)

		if !isHeld {
			impact.ProjectedRisk.Diversification = math.Min(1, impact.CurrentRisk.Diversification+0.05)
			if impact.ProjectedValue > 0 {
				newWeight := quantity * price / impact.ProjectedValue
				impact.ProjectedRisk.Volatility = (1-newWeight)*impact.CurrentRisk.Volatility + newWeight*stockVol
			}
		}

	case models.TradeActionSell:
		if !isHeld {
			return nil, fmt.Errorf("%s: %w", symbol, ErrNotHeld)
		}
		if quantity <= 0 {
			quantity = math.Max(1, held.Quantity/2)
		}
		quantity = math.Min(quantity, held.Quantity)
		remaining := held.Quantity - quantity

		projected := make([]models.AllocationItem, 0, len(current))
		for _, h := range portfolio.Holdings {
			p, ok := prices[h.Symbol]
			if !ok {
				continue
			}
			qty := h.Quantity
			if h.Symbol == symbol {
				if remaining < models.QuantityEpsilon {
					continue
				}
				qty = remaining
			}
			projected = append(projected, models.AllocationItem{Symbol: h.Symbol, Value: qty * p})
		}
		impact.ProjectedAllocation = projected
		impact.ProjectedValue = reweigh(projected)

		if len(projected) < len(current) {
			impact.ProjectedRisk.Diversification = math.Max(0, impact.CurrentRisk.Diversification-0.05)
		}
		// Selling something more volatile than the whole lowers volatility.
		if stockVol > impact.CurrentRisk.Volatility {
			impact.ProjectedRisk.Volatility = math.Max(0, impact.CurrentRisk.Volatility-0.02)
		} else {
			impact.ProjectedRisk.Volatility = math.Min(1, impact.CurrentRisk.Volatility+0.01)
		}
	}

	impact.Quantity = quantity
	return impact, nil
}

// reweigh fills in weights from values and returns the total.
func reweigh(items []models.AllocationItem) float64 {
	total := 0.0
	for _, it := range items {
		total += it.Value
	}
	for i := range items {
		if total > 0 {
			items[i].Weight = items[i].Value / total
		}
	}
	return total
}
