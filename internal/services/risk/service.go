// Package risk computes portfolio volatility, Sharpe ratio, diversification
// and per-holding risk from daily price history.
package risk

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/metrics"
	"github.com/bobmcallan/folio/internal/models"
)

const (
	// DefaultRiskFreeRate is the annual risk-free rate used by the Sharpe ratio.
	DefaultRiskFreeRate = 0.04
	// DefaultTradingDays annualises daily statistics.
	DefaultTradingDays = 252
)

// Volatility thresholds separating Low/Medium and Medium/High.
const (
	lowVolatility    = 0.15
	mediumVolatility = 0.25
)

// Service implements RiskEngine
type Service struct {
	quotes       interfaces.QuoteProvider
	metrics      *metrics.Registry
	logger       *common.Logger
	riskFreeRate float64
	tradingDays  int
	historySize  models.OutputSize
}

// NewService creates a new risk service from the analytics config. Zero
// config values fall back to the defaults above.
func NewService(quotes interfaces.QuoteProvider, cfg common.AnalyticsConfig, m *metrics.Registry, logger *common.Logger) *Service {
	s := &Service{
		quotes:       quotes,
		metrics:      m,
		logger:       logger,
		riskFreeRate: cfg.RiskFreeRate,
		tradingDays:  cfg.TradingDays,
		historySize:  models.OutputYear,
	}
	if s.riskFreeRate == 0 {
		s.riskFreeRate = DefaultRiskFreeRate
	}
	if s.tradingDays <= 0 {
		s.tradingDays = DefaultTradingDays
	}
	return s
}

// ClassifyRisk maps annualised volatility to a risk level.
func ClassifyRisk(volatility float64) models.RiskLevel {
	switch {
	case volatility < lowVolatility:
		return models.RiskLevelLow
	case volatility < mediumVolatility:
		return models.RiskLevelMedium
	default:
		return models.RiskLevelHigh
	}
}

// DiversificationScore is 1 minus the Herfindahl index of the weights; 0 for
// no weights.
func DiversificationScore(weights []float64) float64 {
	if len(weights) == 0 {
		return 0
	}
	hhi := 0.0
	for _, w := range weights {
		hhi += w * w
	}
	return 1 - hhi
}

// CalculatePortfolioRisk never fails: symbols without history or quotes are
// left out, a portfolio with nothing usable gets a zeroed N/A profile, and an
// unexpected fault gets a zeroed Error profile.
func (s *Service) CalculatePortfolioRisk(ctx context.Context, portfolio *models.Portfolio) (profile models.RiskProfile) {
	timer := s.metrics.StartStep("risk")
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("portfolio_id", portfolio.ID).Str("panic", fmt.Sprint(r)).Msg("Risk calculation failed")
			profile = models.EmptyRiskProfile(models.RiskLevelError)
		}
		timer.Stop()
	}()

	symbols := portfolio.Symbols()
	if len(symbols) == 0 {
		return models.EmptyRiskProfile(models.RiskLevelNA)
	}

	table := s.returnsTable(ctx, symbols)
	if table.rows() < 2 {
		return models.EmptyRiskProfile(models.RiskLevelNA)
	}

	values := s.holdingValues(ctx, portfolio.Holdings)
	if len(values) == 0 {
		return models.EmptyRiskProfile(models.RiskLevelNA)
	}
	weights := normalise(values)

	// Weights for the covariance follow the return table's columns; a
	// column whose holding has no quote carries zero weight.
	w := mat.NewVecDense(len(table.symbols), nil)
	for j, sym := range table.symbols {
		w.SetVec(j, weights[sym])
	}

	returns := table.matrix()
	vol := s.volatility(returns, w)

	return models.RiskProfile{
		Volatility:           vol,
		SharpeRatio:          s.sharpe(returns, w, vol),
		DiversificationScore: DiversificationScore(orderedWeights(portfolio.Holdings, weights)),
		RiskLevel:            ClassifyRisk(vol),
		StockRisks:           s.stockRisks(table),
	}
}

// volatility is sqrt(wᵀ · Cov·tradingDays · w).
func (s *Service) volatility(returns *mat.Dense, w *mat.VecDense) float64 {
	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, returns, nil)
	cov.ScaleSym(float64(s.tradingDays), &cov)

	variance := mat.Inner(w, &cov, w)
	if variance <= 0 || math.IsNaN(variance) {
		return 0
	}
	return math.Sqrt(variance)
}

// sharpe is (weighted mean daily return × tradingDays − rf) / vol, 0 when
// vol is 0.
func (s *Service) sharpe(returns *mat.Dense, w *mat.VecDense, vol float64) float64 {
	if vol == 0 {
		return 0
	}
	_, cols := returns.Dims()
	annual := 0.0
	for j := 0; j < cols; j++ {
		annual += stat.Mean(mat.Col(nil, j, returns), nil) * w.AtVec(j)
	}
	annual *= float64(s.tradingDays)
	return (annual - s.riskFreeRate) / vol
}

func (s *Service) stockRisks(table *returnsTable) map[string]models.StockRisk {
	risks := make(map[string]models.StockRisk, len(table.symbols))
	scale := math.Sqrt(float64(s.tradingDays))
	for j, sym := range table.symbols {
		vol := stat.StdDev(table.columns[j], nil) * scale
		risks[sym] = models.StockRisk{Volatility: vol, RiskLevel: ClassifyRisk(vol)}
	}
	return risks
}

// holdingValues maps symbol to quantity × current price for holdings with a quote.
func (s *Service) holdingValues(ctx context.Context, holdings []models.Holding) map[string]float64 {
	values := make(map[string]float64, len(holdings))
	for _, h := range holdings {
		q, ok := s.quotes.GetQuote(ctx, h.Symbol)
		if !ok {
			continue
		}
		values[h.Symbol] = h.Quantity * q.CurrentPrice
	}
	return values
}

// normalise converts values to weights of their total; all zero when the
// total is not positive.
func normalise(values map[string]float64) map[string]float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	weights := make(map[string]float64, len(values))
	for sym, v := range values {
		if total > 0 {
			weights[sym] = v / total
		} else {
			weights[sym] = 0
		}
	}
	return weights
}

// orderedWeights returns the weights of quoted holdings in holding order.
func orderedWeights(holdings []models.Holding, weights map[string]float64) []float64 {
	out := make([]float64, 0, len(weights))
	for _, h := range holdings {
		if w, ok := weights[h.Symbol]; ok {
			out = append(out, w)
		}
	}
	return out
}

// returnsTable holds simple daily returns, one column per symbol, on the
// dates where every symbol has a return.
type returnsTable struct {
	symbols []string
	columns [][]float64
}

func (t *returnsTable) rows() int {
	if len(t.columns) == 0 {
		return 0
	}
	return len(t.columns[0])
}

func (t *returnsTable) matrix() *mat.Dense {
	n, k := t.rows(), len(t.symbols)
	m := mat.NewDense(n, k, nil)
	for j, col := range t.columns {
		m.SetCol(j, col)
	}
	return m
}

// returnsTable fetches a year of closes per symbol, outer-joins them on date,
// converts to daily returns and drops any date with a gap. Symbols whose
// history cannot be fetched are excluded.
func (s *Service) returnsTable(ctx context.Context, symbols []string) *returnsTable {
	closes := make(map[string]map[string]float64, len(symbols))
	dateSet := make(map[string]struct{})
	var kept []string

	for _, sym := range symbols {
		if _, dup := closes[sym]; dup {
			continue
		}
		bars, err := s.quotes.GetDailyHistory(ctx, sym, s.historySize)
		if err != nil || len(bars) == 0 {
			s.logger.Warn().Str("symbol", sym).Err(err).Msg("No price history, excluding from risk")
			continue
		}
		byDate := make(map[string]float64, len(bars))
		for _, b := range bars {
			key := common.DateKey(b.Date)
			byDate[key] = b.Close
			dateSet[key] = struct{}{}
		}
		closes[sym] = byDate
		kept = append(kept, sym)
	}

	dates := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	table := &returnsTable{symbols: kept, columns: make([][]float64, len(kept))}
	if len(kept) == 0 {
		return table
	}

	for i := 1; i < len(dates); i++ {
		row := make([]float64, len(kept))
		complete := true
		for j, sym := range kept {
			prev, okPrev := closes[sym][dates[i-1]]
			cur, okCur := closes[sym][dates[i]]
			if !okPrev || !okCur || prev == 0 {
				complete = false
				break
			}
			row[j] = cur/prev - 1
		}
		if !complete {
			continue
		}
		for j := range kept {
			table.columns[j] = append(table.columns[j], row[j])
		}
	}
	return table
}

var _ interfaces.RiskEngine = (*Service)(nil)
