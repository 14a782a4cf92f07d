// Package history records and reads daily portfolio value snapshots
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/metrics"
	"github.com/bobmcallan/folio/internal/models"
)

// DefaultDays is the history window used when callers pass days <= 0.
const DefaultDays = 30

// Service implements HistoryTracker
type Service struct {
	quotes     interfaces.QuoteProvider
	history    interfaces.HistoryStore
	portfolios interfaces.PortfolioStore
	metrics    *metrics.Registry
	logger     *common.Logger
	now        func() time.Time // injectable clock for testing
}

// NewService creates a new history service. portfolios is only needed by
// RecordAll and may be nil otherwise.
func NewService(quotes interfaces.QuoteProvider, history interfaces.HistoryStore, portfolios interfaces.PortfolioStore, m *metrics.Registry, logger *common.Logger) *Service {
	return &Service{
		quotes:     quotes,
		history:    history,
		portfolios: portfolios,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// TotalValue sums quantity × current price over the holdings that have a
// quote. Holdings without one are skipped.
func TotalValue(ctx context.Context, quotes interfaces.QuoteProvider, holdings []models.Holding) float64 {
	total := 0.0
	for _, h := range holdings {
		q, ok := quotes.GetQuote(ctx, h.Symbol)
		if !ok {
			continue
		}
		total += h.Quantity * q.CurrentPrice
	}
	return total
}

// RecordPortfolioValue computes today's value and upserts it. Recording twice
// on the same day keeps one point holding the later value. The returned error
// is always a persistence failure; the value is still returned with it.
func (s *Service) RecordPortfolioValue(ctx context.Context, portfolio *models.Portfolio) (float64, error) {
	total := TotalValue(ctx, s.quotes, portfolio.Holdings)

	point := models.HistoryPoint{
		PortfolioID: portfolio.ID,
		Date:        common.Today(s.now()),
		TotalValue:  total,
	}
	if err := s.history.UpsertPoint(ctx, point); err != nil {
		s.logger.Error().Str("portfolio_id", portfolio.ID).Err(err).Msg("Failed to record portfolio value")
		return total, fmt.Errorf("record value for %s: %w", portfolio.ID, err)
	}
	s.metrics.RecordHistoryPoint()

	s.logger.Debug().
		Str("portfolio_id", portfolio.ID).
		Str("date", common.DateKey(point.Date)).
		Float64("total_value", total).
		Msg("Recorded portfolio value")

	return total, nil
}

// GetHistory returns up to days points in ascending date order.
//
// The limit is applied to the ascending series from its start, so when more
// than days points exist the earliest ones are returned, not the latest.
// Performance views built on this keep that behaviour; use GetRecentHistory
// for a trailing window.
func (s *Service) GetHistory(ctx context.Context, portfolioID string, days int) ([]models.HistoryPoint, error) {
	points, err := s.history.ListPoints(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("history for %s: %w", portfolioID, err)
	}
	if days <= 0 {
		days = DefaultDays
	}
	if len(points) > days {
		points = points[:days]
	}
	return points, nil
}

// GetRecentHistory returns the most recent days points in ascending date order.
func (s *Service) GetRecentHistory(ctx context.Context, portfolioID string, days int) ([]models.HistoryPoint, error) {
	points, err := s.history.ListPoints(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("history for %s: %w", portfolioID, err)
	}
	if days <= 0 {
		days = DefaultDays
	}
	if len(points) > days {
		points = points[len(points)-days:]
	}
	return points, nil
}

// RecordAll records today's value for every stored portfolio. A failure on
// one portfolio is logged and does not stop the rest. Returns the number of
// portfolios recorded.
func (s *Service) RecordAll(ctx context.Context) (int, error) {
	if s.portfolios == nil {
		return 0, fmt.Errorf("record all: no portfolio store configured")
	}

	start := s.now()
	list, err := s.portfolios.ListPortfolios(ctx)
	if err != nil {
		return 0, fmt.Errorf("record all: %w", err)
	}

	recorded := 0
	for _, p := range list {
		if ctx.Err() != nil {
			return recorded, ctx.Err()
		}
		if _, err := s.RecordPortfolioValue(ctx, p); err != nil {
			continue
		}
		recorded++
	}

	s.logger.Info().
		Int("portfolios", len(list)).
		Int("recorded", recorded).
		Dur("elapsed", s.now().Sub(start)).
		Msg("Daily portfolio values recorded")

	return recorded, nil
}

var _ interfaces.HistoryTracker = (*Service)(nil)
