package recommend

import (
	"context"
	"fmt"
	"strings"

	"github.com/bobmcallan/folio/internal/models"
)

// Enhanced rule thresholds.
const (
	incomeYield        = 0.02
	incomeHoldingShare = 0.5
	preservationMaxVol = 0.15
	maxPositionWeight  = 0.20
	tradeEscalation    = 1.5
	taxLossThreshold   = 0.10
	taxMinHoldingDays  = 30
	taxMaxHoldingDays  = 365
)

// tradeThreshold is the expected return beyond which a buy or sell is advised.
type tradeThreshold struct {
	buy  float64
	sell float64
}

var tradeThresholds = map[models.RiskTolerance]tradeThreshold{
	models.RiskConservative: {buy: 0.08, sell: -0.05},
	models.RiskModerate:     {buy: 0.05, sell: -0.03},
	models.RiskAggressive:   {buy: 0.03, sell: -0.02},
}

// GenerateEnhancedRecommendations extends the rule-based advice with goal,
// forecast, concentration and tax rules personalised for userID, then
// resolves conflicts, applies the user's feedback history and orders the
// result by priority. An empty userID uses the portfolio owner.
func (s *Service) GenerateEnhancedRecommendations(ctx context.Context, portfolio *models.Portfolio, userID string) (recs []models.Recommendation) {
	timer := s.metrics.StartStep("enhanced")
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("user_id", userID).Str("panic", fmt.Sprint(r)).Msg("Enhanced recommendation generation failed")
			recs = errorRecommendation()
		}
		s.record(recs)
		timer.Stop()
	}()

	if userID == "" {
		userID = portfolio.OwnerID
	}
	if len(portfolio.Holdings) == 0 {
		return []models.Recommendation{startBuilding()}
	}

	settings := s.userSettings(ctx, userID)
	profile := s.risk.CalculatePortfolioRisk(ctx, portfolio)
	valued := s.value(ctx, portfolio.Holdings)

	recs = s.ruleBased(ctx, portfolio, settings, profile)
	recs = append(recs, s.step("goal", func() []models.Recommendation {
		return s.checkGoals(ctx, portfolio, settings, profile)
	})...)
	recs = append(recs, s.step("trade", func() []models.Recommendation {
		predictions := s.predictor.PredictStockMovement(ctx, portfolio.Symbols(), s.days)
		return tradeRecommendations(portfolio.Symbols(), predictions, settings.RiskTolerance)
	})...)
	recs = append(recs, s.step("concentration", func() []models.Recommendation {
		return checkConcentration(valued)
	})...)
	if settings.TaxConsideration {
		recs = append(recs, s.step("tax", func() []models.Recommendation {
			return s.checkTaxLoss(ctx, portfolio)
		})...)
	}

	personalise(recs, settings)
	// The trade step emits at most one side per symbol, so here only the
	// diversification/concentration overlap is resolved. Buy/sell pairs
	// arise when callers merge advice from several runs or sources.
	recs = ResolveConflicts(recs, portfolio)
	recs = ApplyFeedback(recs, s.feedbackStats(ctx, userID))
	SortByPriority(recs)
	return recs
}

func goalAdvice(action, reasoning string, priority models.Priority) models.Recommendation {
	return &models.PortfolioAdvice{
		Advice:   models.Advice{Action: action, Reasoning: reasoning, Priority: priority},
		Category: models.KindGoal,
	}
}

func (s *Service) checkGoals(ctx context.Context, portfolio *models.Portfolio, settings models.UserRiskSettings, profile models.RiskProfile) []models.Recommendation {
	switch settings.InvestmentGoal {
	case models.GoalIncome:
		payers := 0
		for _, h := range portfolio.Holdings {
			if f, ok := s.quotes.GetFundamentals(ctx, h.Symbol); ok && f.DividendYield > incomeYield {
				payers++
			}
		}
		share := float64(payers) / float64(len(portfolio.Holdings))
		if share < incomeHoldingShare {
			return []models.Recommendation{goalAdvice(
				"Add dividend-paying stocks to support your income goal",
				fmt.Sprintf("Only %.0f%% of your holdings yield more than %.0f%%", share*100, incomeYield*100),
				models.PriorityMedium,
			)}
		}

	case models.GoalPreservation:
		if profile.Volatility > preservationMaxVol {
			return []models.Recommendation{goalAdvice(
				"Reduce portfolio volatility to protect your capital",
				fmt.Sprintf("Volatility of %.1f%% is above the %.0f%% suited to capital preservation", profile.Volatility*100, preservationMaxVol*100),
				models.PriorityHigh,
			)}
		}

	case models.GoalGrowth:
		if settings.TimeHorizon == models.HorizonShort {
			return []models.Recommendation{goalAdvice(
				"Review your growth goal against your short time horizon",
				"Growth strategies usually need a longer horizon to ride out volatility",
				models.PriorityMedium,
			)}
		}
	}
	return nil
}

// tradeRecommendations turns forecasts into buy or sell advice, in symbol
// order. Forecasts beyond 1.5x the threshold are high priority.
func tradeRecommendations(symbols []string, predictions map[string]models.Prediction, tolerance models.RiskTolerance) []models.Recommendation {
	t, ok := tradeThresholds[tolerance]
	if !ok {
		t = tradeThresholds[models.RiskModerate]
	}

	var recs []models.Recommendation
	for _, sym := range symbols {
		p, ok := predictions[sym]
		if !ok {
			continue
		}
		r := p.ExpectedReturn
		switch {
		case r > t.buy:
			priority := models.PriorityMedium
			if r > t.buy*tradeEscalation {
				priority = models.PriorityHigh
			}
			recs = append(recs, &models.TradeAdvice{
				Advice: models.Advice{
					Action:    fmt.Sprintf("Increase position in %s", sym),
					Reasoning: fmt.Sprintf("Expected return of %.1f%% (target price: $%.2f)", r*100, p.TargetPrice),
					Priority:  priority,
				},
				Side: models.KindBuy, Symbol: sym,
				Confidence: p.Confidence, ExpectedReturn: r, TargetPrice: p.TargetPrice,
			})
		case r < t.sell:
			priority := models.PriorityMedium
			if r < t.sell*tradeEscalation {
				priority = models.PriorityHigh
			}
			recs = append(recs, &models.TradeAdvice{
				Advice: models.Advice{
					Action:    fmt.Sprintf("Reduce position in %s", sym),
					Reasoning: fmt.Sprintf("Potential downside of %.1f%% (target price: $%.2f)", -r*100, p.TargetPrice),
					Priority:  priority,
				},
				Side: models.KindSell, Symbol: sym,
				Confidence: p.Confidence, ExpectedReturn: r, TargetPrice: p.TargetPrice,
			})
		}
	}
	return recs
}

func checkConcentration(valued valuation) []models.Recommendation {
	var heavy []string
	for _, sym := range valued.order {
		if valued.weight(sym) > maxPositionWeight {
			heavy = append(heavy, sym)
		}
	}
	if len(heavy) == 0 {
		return nil
	}
	return []models.Recommendation{&models.PortfolioAdvice{
		Advice: models.Advice{
			Action:    "Reduce concentration in " + strings.Join(heavy, ", "),
			Reasoning: fmt.Sprintf("Each of these positions is more than %.0f%% of the portfolio, increasing risk", maxPositionWeight*100),
			Priority:  models.PriorityMedium,
		},
		Category: models.KindConcentration,
		Symbols:  heavy,
	}}
}

// checkTaxLoss suggests harvesting holdings down at least 10% that have been
// held between 30 and 365 days.
func (s *Service) checkTaxLoss(ctx context.Context, portfolio *models.Portfolio) []models.Recommendation {
	now := s.now()
	var recs []models.Recommendation
	for _, h := range portfolio.Holdings {
		if h.PurchasePrice <= 0 || h.PurchaseDate.IsZero() {
			continue
		}
		q, ok := s.quotes.GetQuote(ctx, h.Symbol)
		if !ok {
			continue
		}
		loss := (h.PurchasePrice - q.CurrentPrice) / h.PurchasePrice
		held := int(now.Sub(h.PurchaseDate).Hours() / 24)
		if loss < taxLossThreshold || held < taxMinHoldingDays || held > taxMaxHoldingDays {
			continue
		}
		recs = append(recs, &models.TaxLossAdvice{
			Advice: models.Advice{
				Action:    fmt.Sprintf("Consider harvesting the loss on %s", h.Symbol),
				Reasoning: fmt.Sprintf("%s is down %.1f%% from your purchase price after %d days; selling could offset taxable gains", h.Symbol, loss*100, held),
				Priority:  models.PriorityMedium,
			},
			Symbol:   h.Symbol,
			LossPct:  loss,
			HeldDays: held,
		})
	}
	return recs
}

// personalise raises sector advice for the user's preferred sectors to medium.
func personalise(recs []models.Recommendation, settings models.UserRiskSettings) {
	for _, r := range recs {
		sa, ok := r.(*models.SectorAdvice)
		if !ok || !settings.PrefersSector(sa.Sector) {
			continue
		}
		if sa.Priority.Weight() < models.PriorityMedium.Weight() {
			sa.Priority = models.PriorityMedium
			sa.Reasoning += "; this is one of your preferred sectors"
		}
	}
}
