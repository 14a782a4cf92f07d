// Package quote provides the cached quote and history provider
package quote

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/metrics"
	"github.com/bobmcallan/folio/internal/models"
)

// DefaultExchange is appended to bare symbols before they are sent upstream.
const DefaultExchange = "US"

// entry is a cached value stamped with the service clock. Freshness is
// decided against s.now so tests can move time; go-cache's own expiry only
// reclaims memory.
type entry struct {
	value     interface{}
	fetchedAt time.Time
}

// Service implements QuoteProvider over the EODHD client.
type Service struct {
	client  interfaces.EODHDClient
	cache   *cache.Cache
	logger  *common.Logger
	metrics *metrics.Registry
	now     func() time.Time // injectable clock for testing

	quoteTTL        time.Duration
	historyTTL      time.Duration
	fundamentalsTTL time.Duration
}

// NewService creates a new quote service. quoteTTL <= 0 selects the default
// of 300 seconds. m may be nil.
func NewService(client interfaces.EODHDClient, quoteTTL time.Duration, m *metrics.Registry, logger *common.Logger) *Service {
	if quoteTTL <= 0 {
		quoteTTL = common.FreshnessQuote
	}
	return &Service{
		client:          client,
		cache:           cache.New(2*common.FreshnessFundamentals, 10*time.Minute),
		logger:          logger,
		metrics:         m,
		now:             time.Now,
		quoteTTL:        quoteTTL,
		historyTTL:      common.FreshnessHistory,
		fundamentalsTTL: common.FreshnessFundamentals,
	}
}

// GetQuote returns the current price snapshot for symbol. Missing data and
// upstream failures both report ok=false.
func (s *Service) GetQuote(ctx context.Context, symbol string) (*models.Quote, bool) {
	key := "quote:" + symbol
	if q, ok := s.lookup(key, s.quoteTTL).(*models.Quote); ok {
		s.metrics.RecordCacheHit("quote")
		return copyQuote(q), true
	}
	s.metrics.RecordCacheMiss("quote")

	q, err := s.client.GetRealTimeQuote(ctx, providerSymbol(symbol))
	if err != nil || q == nil {
		s.logger.Warn().Str("symbol", symbol).Err(err).Msg("No quote available")
		return nil, false
	}
	q.Symbol = symbol

	s.store(key, q, s.quoteTTL)
	return copyQuote(q), true
}

// GetDailyHistory returns daily bars in ascending date order.
func (s *Service) GetDailyHistory(ctx context.Context, symbol string, size models.OutputSize) ([]models.Bar, error) {
	key := fmt.Sprintf("eod:%s:%d", symbol, size)
	if bars, ok := s.lookup(key, s.historyTTL).([]models.Bar); ok {
		s.metrics.RecordCacheHit("history")
		return append([]models.Bar(nil), bars...), nil
	}
	s.metrics.RecordCacheMiss("history")

	bars, err := s.client.GetEOD(ctx, providerSymbol(symbol), int(size))
	if err != nil {
		return nil, fmt.Errorf("daily history for %s: %w", symbol, err)
	}

	s.store(key, bars, s.historyTTL)
	return append([]models.Bar(nil), bars...), nil
}

// GetFundamentals returns sector and dividend data, cached for a week.
func (s *Service) GetFundamentals(ctx context.Context, symbol string) (*models.Fundamentals, bool) {
	key := "fund:" + symbol
	if f, ok := s.lookup(key, s.fundamentalsTTL).(*models.Fundamentals); ok {
		s.metrics.RecordCacheHit("fundamentals")
		c := *f
		return &c, true
	}
	s.metrics.RecordCacheMiss("fundamentals")

	f, err := s.client.GetFundamentals(ctx, providerSymbol(symbol))
	if err != nil || f == nil {
		s.logger.Debug().Str("symbol", symbol).Err(err).Msg("No fundamentals available")
		return nil, false
	}
	f.Symbol = symbol

	s.store(key, f, s.fundamentalsTTL)
	c := *f
	return &c, true
}

func (s *Service) lookup(key string, ttl time.Duration) interface{} {
	v, found := s.cache.Get(key)
	if !found {
		return nil
	}
	e := v.(entry)
	if !common.IsFresh(s.now(), e.fetchedAt, ttl) {
		return nil
	}
	return e.value
}

func (s *Service) store(key string, value interface{}, ttl time.Duration) {
	s.cache.Set(key, entry{value: value, fetchedAt: s.now()}, 2*ttl)
}

func copyQuote(q *models.Quote) *models.Quote {
	c := *q
	return &c
}

// providerSymbol maps "AAPL" to "AAPL.US"; symbols that already carry an
// exchange suffix pass through.
func providerSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if strings.Contains(symbol, ".") {
		return symbol
	}
	return symbol + "." + DefaultExchange
}

var _ interfaces.QuoteProvider = (*Service)(nil)
