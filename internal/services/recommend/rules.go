package recommend

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/bobmcallan/folio/internal/models"
)

// Rule thresholds.
const (
	minDiversification   = 0.6
	rebalanceDrift       = 0.05
	rebalanceUrgentDrift = 0.10
	rebalanceListSize    = 3
	maxStockVolatility   = 0.30
)

// riskTarget is the volatility ceiling and Sharpe floor for a tolerance.
type riskTarget struct {
	maxVolatility float64
	targetSharpe  float64
}

var riskTargets = map[models.RiskTolerance]riskTarget{
	models.RiskConservative: {maxVolatility: 0.12, targetSharpe: 0.75},
	models.RiskModerate:     {maxVolatility: 0.20, targetSharpe: 0.60},
	models.RiskAggressive:   {maxVolatility: 0.30, targetSharpe: 0.45},
}

func targetFor(tolerance models.RiskTolerance) riskTarget {
	if t, ok := riskTargets[tolerance]; ok {
		return t
	}
	return riskTargets[models.RiskModerate]
}

// GenerateRecommendations runs the rule-based checks for the portfolio
// owner's settings. Advice is returned in rule order. Each rule is isolated;
// a failure outside the rules yields a single error recommendation.
func (s *Service) GenerateRecommendations(ctx context.Context, portfolio *models.Portfolio) (recs []models.Recommendation) {
	timer := s.metrics.StartStep("recommend")
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("panic", fmt.Sprint(r)).Msg("Recommendation generation failed")
			recs = errorRecommendation()
		}
		s.record(recs)
		timer.Stop()
	}()

	if len(portfolio.Holdings) == 0 {
		return []models.Recommendation{startBuilding()}
	}

	settings := s.userSettings(ctx, portfolio.OwnerID)
	profile := s.risk.CalculatePortfolioRisk(ctx, portfolio)
	return s.ruleBased(ctx, portfolio, settings, profile)
}

// ruleBased runs the rule pipeline on a precomputed risk profile.
func (s *Service) ruleBased(ctx context.Context, portfolio *models.Portfolio, settings models.UserRiskSettings, profile models.RiskProfile) []models.Recommendation {
	valued := s.value(ctx, portfolio.Holdings)

	var recs []models.Recommendation
	recs = append(recs, s.step("diversification", func() []models.Recommendation {
		return checkDiversification(profile)
	})...)
	recs = append(recs, s.step("sector", func() []models.Recommendation {
		return s.checkSectorAllocation(ctx, valued)
	})...)
	recs = append(recs, s.step("risk_alignment", func() []models.Recommendation {
		return checkRiskAlignment(profile, settings.RiskTolerance)
	})...)
	recs = append(recs, s.step("rebalance", func() []models.Recommendation {
		return checkRebalancing(valued)
	})...)
	recs = append(recs, s.step("stock_risk", func() []models.Recommendation {
		return checkStockRisk(profile)
	})...)
	return recs
}

func startBuilding() models.Recommendation {
	return &models.PortfolioAdvice{
		Advice: models.Advice{
			Action:    "Start building your portfolio by adding diverse stocks across different sectors",
			Reasoning: "A diversified portfolio helps reduce risk while maintaining returns",
			Priority:  models.PriorityHigh,
		},
		Category: models.KindGeneral,
	}
}

func checkDiversification(profile models.RiskProfile) []models.Recommendation {
	if profile.DiversificationScore >= minDiversification {
		return nil
	}
	return []models.Recommendation{&models.PortfolioAdvice{
		Advice: models.Advice{
			Action:    "Increase portfolio diversification by adding more stocks from different sectors",
			Reasoning: fmt.Sprintf("Your diversification score is %.2f, which indicates high concentration risk", profile.DiversificationScore),
			Priority:  models.PriorityHigh,
		},
		Category: models.KindDiversification,
	}}
}

// checkRiskAlignment flags excess volatility first; only when volatility is
// within bounds is a weak Sharpe ratio reported.
func checkRiskAlignment(profile models.RiskProfile, tolerance models.RiskTolerance) []models.Recommendation {
	t := targetFor(tolerance)

	if profile.Volatility > t.maxVolatility {
		return []models.Recommendation{&models.PortfolioAdvice{
			Advice: models.Advice{
				Action: fmt.Sprintf("Your portfolio volatility exceeds your %s risk preference", strings.ToLower(string(tolerance))),
				Reasoning: fmt.Sprintf("Current volatility is %.1f%%, which is higher than the %.1f%% target for your risk profile",
					profile.Volatility*100, t.maxVolatility*100),
				Priority: models.PriorityHigh,
			},
			Category: models.KindRisk,
		}}
	}

	if profile.SharpeRatio < t.targetSharpe {
		return []models.Recommendation{&models.PortfolioAdvice{
			Advice: models.Advice{
				Action: "Your portfolio has suboptimal risk-adjusted returns",
				Reasoning: fmt.Sprintf("Current Sharpe ratio is %.2f, below the target of %.2f for your risk profile",
					profile.SharpeRatio, t.targetSharpe),
				Priority: models.PriorityMedium,
			},
			Category: models.KindRiskEfficiency,
		}}
	}
	return nil
}

type drift struct {
	symbol string
	gap    float64
}

// checkRebalancing compares each quoted holding with an equal-weight target
// and names the largest drifts on each side.
func checkRebalancing(valued valuation) []models.Recommendation {
	n := len(valued.order)
	if n == 0 || valued.total <= 0 {
		return nil
	}
	target := 1 / float64(n)

	var increase, decrease []drift
	maxGap := 0.0
	for _, sym := range valued.order {
		gap := valued.weight(sym) - target
		if math.Abs(gap) <= rebalanceDrift {
			continue
		}
		maxGap = math.Max(maxGap, math.Abs(gap))
		if gap < 0 {
			increase = append(increase, drift{symbol: sym, gap: -gap})
		} else {
			decrease = append(decrease, drift{symbol: sym, gap: gap})
		}
	}
	if len(increase) == 0 && len(decrease) == 0 {
		return nil
	}

	byGap := func(d []drift) func(i, j int) bool {
		return func(i, j int) bool { return d[i].gap > d[j].gap }
	}
	sort.SliceStable(increase, byGap(increase))
	sort.SliceStable(decrease, byGap(decrease))

	rec := &models.RebalanceAdvice{
		Advice: models.Advice{
			Reasoning: "Some positions have drifted significantly from their target allocations, which may increase risk or reduce returns",
			Priority:  models.PriorityLow,
		},
		Increase: topSymbols(increase, rebalanceListSize),
		Decrease: topSymbols(decrease, rebalanceListSize),
		MaxGap:   maxGap,
	}
	if maxGap > rebalanceUrgentDrift {
		rec.Priority = models.PriorityMedium
	}

	var parts []string
	if len(rec.Increase) > 0 {
		parts = append(parts, "increase "+strings.Join(rec.Increase, ", "))
	}
	if len(rec.Decrease) > 0 {
		parts = append(parts, "decrease "+strings.Join(rec.Decrease, ", "))
	}
	rec.Action = "Consider rebalancing your portfolio: " + strings.Join(parts, " and ")

	return []models.Recommendation{rec}
}

func topSymbols(d []drift, n int) []string {
	if len(d) > n {
		d = d[:n]
	}
	out := make([]string, 0, len(d))
	for _, x := range d {
		out = append(out, x.symbol)
	}
	return out
}

func checkStockRisk(profile models.RiskProfile) []models.Recommendation {
	symbols := make([]string, 0, len(profile.StockRisks))
	for sym := range profile.StockRisks {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	var recs []models.Recommendation
	for _, sym := range symbols {
		vol := profile.StockRisks[sym].Volatility
		if vol <= maxStockVolatility {
			continue
		}
		recs = append(recs, &models.PositionAdvice{
			Advice: models.Advice{
				Action:    fmt.Sprintf("Consider reducing your position in %s", sym),
				Reasoning: fmt.Sprintf("%s has high volatility (%.2f) which increases your portfolio risk", sym, vol),
				Priority:  models.PriorityMedium,
			},
			Symbol:     sym,
			Volatility: vol,
		})
	}
	return recs
}
