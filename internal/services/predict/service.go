// Package predict forecasts forward returns per symbol from daily price
// history: a momentum baseline blended with a linear model over technical
// features.
package predict

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/metrics"
	"github.com/bobmcallan/folio/internal/models"
)

const (
	// DefaultDays is the forecast horizon when none is given.
	DefaultDays = 30
	// MinHistory is the fewest daily bars a symbol needs to be forecast at all.
	MinHistory = 30
	// MinModelRows is the fewest feature rows needed before the model is fit.
	MinModelRows = 60

	// targetHorizon is the look-ahead of the training target, in rows.
	targetHorizon = 30
	// minTrainingRows guards the fit against tiny samples.
	minTrainingRows = 10

	baselineConfidence = 0.5
	maxConfidence      = 0.9
)

// Service implements Predictor
type Service struct {
	quotes  interfaces.QuoteProvider
	metrics *metrics.Registry
	logger  *common.Logger
}

// NewService creates a new prediction service
func NewService(quotes interfaces.QuoteProvider, m *metrics.Registry, logger *common.Logger) *Service {
	return &Service{quotes: quotes, metrics: m, logger: logger}
}

// PredictStockMovement forecasts each symbol independently. Symbols with
// fewer than MinHistory bars, or whose history cannot be loaded, are absent
// from the result. days <= 0 uses DefaultDays.
func (s *Service) PredictStockMovement(ctx context.Context, symbols []string, days int) map[string]models.Prediction {
	if days <= 0 {
		days = DefaultDays
	}
	timer := s.metrics.StartStep("predict")
	defer timer.Stop()

	out := make(map[string]models.Prediction, len(symbols))
	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			s.logger.Warn().Err(err).Msg("Prediction batch cancelled")
			break
		}
		if p, _, ok := s.predictSymbol(ctx, symbol, days); ok {
			out[symbol] = p
		}
	}
	return out
}

func (s *Service) predictSymbol(ctx context.Context, symbol string, days int) (p models.Prediction, bars []models.Bar, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("symbol", symbol).Str("panic", fmt.Sprint(r)).Msg("Prediction failed")
			s.metrics.RecordPrediction("skipped")
			p, bars, ok = models.Prediction{}, nil, false
		}
	}()

	bars, err := s.HistoricalData(ctx, symbol)
	if err != nil {
		s.logger.Warn().Str("symbol", symbol).Err(err).Msg("No history for prediction")
		s.metrics.RecordPrediction("skipped")
		return models.Prediction{}, nil, false
	}
	if len(bars) < MinHistory {
		s.logger.Debug().Str("symbol", symbol).Int("bars", len(bars)).Msg("Insufficient history for prediction")
		s.metrics.RecordPrediction("skipped")
		return models.Prediction{}, nil, false
	}

	features := GenerateFeatures(bars)
	if features.Len() == 0 {
		// Enough bars but no complete feature row, e.g. a flat series
		// where RSI is undefined.
		p = flatPrediction(symbol, bars[len(bars)-1].Close)
	} else {
		p = s.PredictReturn(symbol, features, days)
	}
	s.metrics.RecordPrediction(string(p.Method))
	return p, bars, true
}

func flatPrediction(symbol string, price float64) models.Prediction {
	return models.Prediction{
		Symbol:      symbol,
		TargetPrice: price,
		Confidence:  baselineConfidence,
		Method:      models.PredictionBaseline,
	}
}

// HistoricalData loads all available daily bars for symbol, oldest first.
func (s *Service) HistoricalData(ctx context.Context, symbol string) ([]models.Bar, error) {
	bars, err := s.quotes.GetDailyHistory(ctx, symbol, models.OutputFull)
	if err != nil {
		return nil, err
	}
	sorted := sort.SliceIsSorted(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	if !sorted {
		bars = append([]models.Bar(nil), bars...)
		sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	}
	return bars, nil
}

// PredictReturn forecasts the days-ahead return from a feature table. The
// current price is the last close in the table. Short tables and failed
// fits return the baseline at confidence 0.5.
func (s *Service) PredictReturn(symbol string, f *Features, days int) (p models.Prediction) {
	price := f.Close[f.Len()-1]
	baseline := Baseline(f, days)

	fallback := models.Prediction{
		Symbol:         symbol,
		ExpectedReturn: baseline,
		TargetPrice:    price * (1 + baseline),
		Confidence:     baselineConfidence,
		Method:         models.PredictionBaseline,
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("symbol", symbol).Str("panic", fmt.Sprint(r)).Msg("Model prediction failed, using baseline")
			p = fallback
		}
	}()

	if f.Len() < MinModelRows {
		return fallback
	}

	n := f.Len() - targetHorizon
	if n < minTrainingRows {
		return fallback
	}
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		X[i] = f.Row(i)
		y[i] = f.Close[i+targetHorizon]/f.Close[i] - 1
	}

	model, err := fitOLS(X, y)
	if err != nil {
		s.logger.Debug().Str("symbol", symbol).Err(err).Msg("Regression fit failed, using baseline")
		return fallback
	}

	predicted := model.predict(f.Row(f.Len() - 1))
	if math.IsNaN(predicted) || math.IsInf(predicted, 0) {
		return fallback
	}

	blended := (predicted + baseline) / 2
	return models.Prediction{
		Symbol:         symbol,
		ExpectedReturn: blended,
		TargetPrice:    price * (1 + blended),
		Confidence:     Confidence(blended),
		Method:         models.PredictionModel,
	}
}

// Baseline scales the mean 5-day return to a days-long horizon.
func Baseline(f *Features, days int) float64 {
	if f.Len() == 0 {
		return 0
	}
	return stat.Mean(f.Return5d, nil) * float64(days) / 5
}

// Confidence grows with the size of the forecast move, from 0.5 up to 0.9.
func Confidence(blended float64) float64 {
	return math.Min(baselineConfidence+math.Abs(blended)*5, maxConfidence)
}
