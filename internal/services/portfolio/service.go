// Package portfolio provides portfolio management services
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

// Trade validation errors.
var (
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrNoQuote         = errors.New("no quote available")
	ErrNotHeld         = errors.New("symbol not held")
	ErrOversell        = errors.New("cannot sell more than held")
)

// Service manages holdings and reports portfolio performance.
type Service struct {
	store   interfaces.PortfolioStore
	quotes  interfaces.QuoteProvider
	history interfaces.HistoryTracker
	logger  *common.Logger
	now     func() time.Time // injectable clock for testing
}

// NewService creates a new portfolio service
func NewService(
	store interfaces.PortfolioStore,
	quotes interfaces.QuoteProvider,
	history interfaces.HistoryTracker,
	logger *common.Logger,
) *Service {
	return &Service{
		store:   store,
		quotes:  quotes,
		history: history,
		logger:  logger,
		now:     time.Now,
	}
}

// CreatePortfolio creates an empty portfolio for owner.
func (s *Service) CreatePortfolio(ctx context.Context, ownerID, name string) (*models.Portfolio, error) {
	if strings.TrimSpace(name) == "" {
		name = "Default Portfolio"
	}
	p := &models.Portfolio{
		ID:        "pf_" + uuid.New().String()[:8],
		OwnerID:   ownerID,
		Name:      name,
		CreatedAt: s.now(),
		Holdings:  []models.Holding{},
	}
	if err := s.store.SavePortfolio(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create portfolio: %w", err)
	}
	s.logger.Info().Str("portfolio_id", p.ID).Str("owner", ownerID).Msg("Portfolio created")
	return p, nil
}

// GetPortfolio loads a portfolio with its holdings.
func (s *Service) GetPortfolio(ctx context.Context, id string) (*models.Portfolio, error) {
	p, err := s.store.GetPortfolio(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("portfolio '%s': %w", id, err)
	}
	return p, nil
}

// Buy adds quantity of symbol at the current price. A new holding takes the
// current price as its purchase price; an existing holding only grows.
func (s *Service) Buy(ctx context.Context, portfolioID, symbol string, quantity float64) (*models.Holding, error) {
	symbol = normaliseSymbol(symbol)
	if symbol == "" || quantity < models.MinBuyQuantity {
		return nil, fmt.Errorf("%w: quantity must be at least %g", ErrInvalidQuantity, models.MinBuyQuantity)
	}

	quote, ok := s.quotes.GetQuote(ctx, symbol)
	if !ok {
		return nil, fmt.Errorf("%w for %s", ErrNoQuote, symbol)
	}

	p, err := s.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	h, held := p.Holding(symbol)
	if held {
		h.Quantity += quantity
	} else {
		h = models.Holding{
			Symbol:        symbol,
			Quantity:      quantity,
			PurchasePrice: quote.CurrentPrice,
			PurchaseDate:  s.now(),
		}
	}

	if err := s.store.SaveHolding(ctx, portfolioID, h); err != nil {
		return nil, fmt.Errorf("failed to save holding %s: %w", symbol, err)
	}
	s.logger.Info().Str("portfolio_id", portfolioID).Str("symbol", symbol).Float64("quantity", quantity).Msg("Bought")

	s.rerecord(ctx, portfolioID)
	return &h, nil
}

// Sell removes quantity of symbol. The holding is deleted once the remainder
// falls below models.QuantityEpsilon. Returns the remaining quantity.
func (s *Service) Sell(ctx context.Context, portfolioID, symbol string, quantity float64) (float64, error) {
	symbol = normaliseSymbol(symbol)
	if quantity <= 0 {
		return 0, fmt.Errorf("%w: quantity to sell must be positive", ErrInvalidQuantity)
	}

	p, err := s.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return 0, err
	}
	h, held := p.Holding(symbol)
	if !held {
		return 0, fmt.Errorf("%w: %s", ErrNotHeld, symbol)
	}
	if quantity > h.Quantity {
		return 0, fmt.Errorf("%w (%g shares of %s)", ErrOversell, h.Quantity, symbol)
	}

	h.Quantity -= quantity
	if h.IsClosed() {
		if err := s.store.DeleteHolding(ctx, portfolioID, symbol); err != nil {
			return 0, fmt.Errorf("failed to remove holding %s: %w", symbol, err)
		}
		h.Quantity = 0
	} else if err := s.store.SaveHolding(ctx, portfolioID, h); err != nil {
		return 0, fmt.Errorf("failed to save holding %s: %w", symbol, err)
	}
	s.logger.Info().Str("portfolio_id", portfolioID).Str("symbol", symbol).Float64("quantity", quantity).Msg("Sold")

	s.rerecord(ctx, portfolioID)
	return h.Quantity, nil
}

// RemoveHolding deletes a holding outright.
func (s *Service) RemoveHolding(ctx context.Context, portfolioID, symbol string) error {
	symbol = normaliseSymbol(symbol)
	p, err := s.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return err
	}
	if _, held := p.Holding(symbol); !held {
		return fmt.Errorf("%w: %s", ErrNotHeld, symbol)
	}
	if err := s.store.DeleteHolding(ctx, portfolioID, symbol); err != nil {
		return fmt.Errorf("failed to remove holding %s: %w", symbol, err)
	}
	s.rerecord(ctx, portfolioID)
	return nil
}

// rerecord snapshots today's value after a change. Failures are logged; the
// trade itself has already been persisted.
func (s *Service) rerecord(ctx context.Context, portfolioID string) {
	if s.history == nil {
		return
	}
	p, err := s.store.GetPortfolio(ctx, portfolioID)
	if err != nil {
		s.logger.Warn().Str("portfolio_id", portfolioID).Err(err).Msg("Failed to reload portfolio for history")
		return
	}
	if _, err := s.history.RecordPortfolioValue(ctx, p); err != nil {
		s.logger.Warn().Str("portfolio_id", portfolioID).Err(err).Msg("Failed to record portfolio value")
	}
}

func normaliseSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
