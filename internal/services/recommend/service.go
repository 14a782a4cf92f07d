// Package recommend turns risk metrics, forecasts and user settings into a
// prioritised list of portfolio advice.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/metrics"
	"github.com/bobmcallan/folio/internal/models"
)

// DefaultMaxSectorRecommendations caps sector advice when the config leaves it unset.
const DefaultMaxSectorRecommendations = 3

// Service implements Recommender
type Service struct {
	quotes     interfaces.QuoteProvider
	risk       interfaces.RiskEngine
	predictor  interfaces.Predictor
	settings   interfaces.SettingsStore
	feedback   interfaces.FeedbackStore
	metrics    *metrics.Registry
	logger     *common.Logger
	now        func() time.Time // injectable clock for testing
	maxSectors int              // 0 = unlimited
	days       int              // forecast horizon for trade rules
}

// NewService creates a new recommendation service. settings and feedback may
// be nil; every user then gets default settings and no feedback adjustment.
func NewService(
	quotes interfaces.QuoteProvider,
	risk interfaces.RiskEngine,
	predictor interfaces.Predictor,
	settings interfaces.SettingsStore,
	feedback interfaces.FeedbackStore,
	cfg common.AnalyticsConfig,
	m *metrics.Registry,
	logger *common.Logger,
) *Service {
	s := &Service{
		quotes:     quotes,
		risk:       risk,
		predictor:  predictor,
		settings:   settings,
		feedback:   feedback,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
		maxSectors: cfg.MaxSectorRecommendations,
		days:       cfg.ForecastDays,
	}
	if s.maxSectors < 0 {
		s.maxSectors = DefaultMaxSectorRecommendations
	}
	if s.days <= 0 {
		s.days = 30
	}
	return s
}

// userSettings loads the user's settings, falling back to defaults when
// absent or unreadable.
func (s *Service) userSettings(ctx context.Context, userID string) models.UserRiskSettings {
	if s.settings == nil || userID == "" {
		return models.DefaultUserRiskSettings(userID)
	}
	settings, err := s.settings.GetSettings(ctx, userID)
	if err != nil {
		if !errors.Is(err, interfaces.ErrNotFound) {
			s.logger.Warn().Str("user_id", userID).Err(err).Msg("Failed to load user settings, using defaults")
		}
		return models.DefaultUserRiskSettings(userID)
	}
	out := settings.WithDefaults()
	out.UserID = userID
	return out
}

// feedbackStats aggregates the user's feedback; nil when none is available.
func (s *Service) feedbackStats(ctx context.Context, userID string) map[models.Kind]models.FeedbackStats {
	if s.feedback == nil || userID == "" {
		return nil
	}
	items, err := s.feedback.ListFeedback(ctx, userID)
	if err != nil {
		s.logger.Warn().Str("user_id", userID).Err(err).Msg("Failed to load recommendation feedback")
		return nil
	}
	return models.AggregateFeedback(items)
}

// valuation is the current value of each quoted holding.
type valuation struct {
	values map[string]float64
	order  []string // quoted symbols in portfolio order
	total  float64
}

func (s *Service) value(ctx context.Context, holdings []models.Holding) valuation {
	v := valuation{values: make(map[string]float64, len(holdings))}
	for _, h := range holdings {
		q, ok := s.quotes.GetQuote(ctx, h.Symbol)
		if !ok {
			continue
		}
		if _, seen := v.values[h.Symbol]; !seen {
			v.order = append(v.order, h.Symbol)
		}
		v.values[h.Symbol] += h.Quantity * q.CurrentPrice
		v.total += h.Quantity * q.CurrentPrice
	}
	return v
}

func (v valuation) weight(symbol string) float64 {
	if v.total <= 0 {
		return 0
	}
	return v.values[symbol] / v.total
}

// step runs one rule in isolation: a panic is logged and yields no advice.
func (s *Service) step(name string, fn func() []models.Recommendation) (recs []models.Recommendation) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("step", name).Str("panic", fmt.Sprint(r)).Msg("Recommendation step failed")
			recs = nil
		}
	}()
	return fn()
}

func (s *Service) record(recs []models.Recommendation) {
	for _, r := range recs {
		s.metrics.RecordRecommendation(string(r.Kind()), string(r.Common().Priority))
	}
}

func errorRecommendation() []models.Recommendation {
	return []models.Recommendation{&models.PortfolioAdvice{
		Advice: models.Advice{
			Action:    "Unable to generate recommendations at this time",
			Reasoning: "There was an error analyzing your portfolio",
			Priority:  models.PriorityMedium,
		},
		Category: models.KindError,
	}}
}
