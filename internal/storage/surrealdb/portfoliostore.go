package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

const portfolioSelectFields = "portfolio_id as id, owner_id, name, created_at"

const holdingSelectFields = "symbol, quantity, purchase_price, purchase_date"

// PortfolioStore implements interfaces.PortfolioStore using SurrealDB.
// Holdings live in their own table keyed by (portfolio, symbol).
type PortfolioStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// NewPortfolioStore creates a new PortfolioStore.
func NewPortfolioStore(db *surrealdb.DB, logger *common.Logger) *PortfolioStore {
	return &PortfolioStore{db: db, logger: logger}
}

func holdingID(portfolioID, symbol string) string {
	return portfolioID + "_" + symbol
}

func (s *PortfolioStore) GetPortfolio(ctx context.Context, id string) (*models.Portfolio, error) {
	sql := "SELECT " + portfolioSelectFields + " FROM $rid"
	vars := map[string]any{"rid": surrealmodels.NewRecordID(tablePortfolio, id)}

	results, err := surrealdb.Query[[]models.Portfolio](ctx, s.db, sql, vars)
	if err != nil {
		if isNotFoundError(err) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}

	rows := firstResult(results)
	if len(rows) == 0 {
		return nil, interfaces.ErrNotFound
	}
	p := rows[0]

	holdings, err := s.listHoldings(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Holdings = holdings
	return &p, nil
}

// SavePortfolio writes the portfolio and replaces its holdings with
// portfolio.Holdings. Closed holdings are not written.
func (s *PortfolioStore) SavePortfolio(ctx context.Context, portfolio *models.Portfolio) error {
	if portfolio.ID == "" {
		portfolio.ID = fmt.Sprintf("pf_%s", uuid.New().String()[:8])
	}
	if portfolio.CreatedAt.IsZero() {
		portfolio.CreatedAt = time.Now()
	}

	sql := `UPSERT $rid SET
		portfolio_id = $portfolio_id, owner_id = $owner_id, name = $name,
		created_at = $created_at`
	vars := map[string]any{
		"rid":          surrealmodels.NewRecordID(tablePortfolio, portfolio.ID),
		"portfolio_id": portfolio.ID,
		"owner_id":     portfolio.OwnerID,
		"name":         portfolio.Name,
		"created_at":   portfolio.CreatedAt,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to save portfolio: %w", err)
	}

	if _, err := surrealdb.Query[any](ctx, s.db,
		"DELETE holding WHERE portfolio_id = $portfolio_id",
		map[string]any{"portfolio_id": portfolio.ID}); err != nil {
		return fmt.Errorf("failed to clear holdings: %w", err)
	}

	for _, h := range portfolio.Holdings {
		if h.IsClosed() {
			continue
		}
		if err := s.SaveHolding(ctx, portfolio.ID, h); err != nil {
			return err
		}
	}
	return nil
}

func (s *PortfolioStore) ListPortfolios(ctx context.Context) ([]*models.Portfolio, error) {
	sql := "SELECT " + portfolioSelectFields + " FROM portfolio ORDER BY portfolio_id ASC"

	results, err := surrealdb.Query[[]models.Portfolio](ctx, s.db, sql, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}

	rows := firstResult(results)
	portfolios := make([]*models.Portfolio, 0, len(rows))
	for i := range rows {
		p := rows[i]
		holdings, err := s.listHoldings(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		p.Holdings = holdings
		portfolios = append(portfolios, &p)
	}
	return portfolios, nil
}

// DeletePortfolio removes the portfolio with its holdings and history.
func (s *PortfolioStore) DeletePortfolio(ctx context.Context, id string) error {
	sql := `DELETE $rid;
		DELETE holding WHERE portfolio_id = $portfolio_id;
		DELETE portfolio_history WHERE portfolio_id = $portfolio_id`
	vars := map[string]any{
		"rid":          surrealmodels.NewRecordID(tablePortfolio, id),
		"portfolio_id": id,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil && !isNotFoundError(err) {
		return fmt.Errorf("failed to delete portfolio: %w", err)
	}
	return nil
}

func (s *PortfolioStore) SaveHolding(ctx context.Context, portfolioID string, h models.Holding) error {
	sql := `UPSERT $rid SET
		portfolio_id = $portfolio_id, symbol = $symbol, quantity = $quantity,
		purchase_price = $purchase_price, purchase_date = $purchase_date`
	vars := map[string]any{
		"rid":            surrealmodels.NewRecordID(tableHolding, holdingID(portfolioID, h.Symbol)),
		"portfolio_id":   portfolioID,
		"symbol":         h.Symbol,
		"quantity":       h.Quantity,
		"purchase_price": h.PurchasePrice,
		"purchase_date":  h.PurchaseDate,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to save holding %s: %w", h.Symbol, err)
	}
	return nil
}

func (s *PortfolioStore) DeleteHolding(ctx context.Context, portfolioID, symbol string) error {
	rid := surrealmodels.NewRecordID(tableHolding, holdingID(portfolioID, symbol))
	if _, err := surrealdb.Delete[any](ctx, s.db, rid); err != nil && !isNotFoundError(err) {
		return fmt.Errorf("failed to delete holding %s: %w", symbol, err)
	}
	return nil
}

func (s *PortfolioStore) listHoldings(ctx context.Context, portfolioID string) ([]models.Holding, error) {
	sql := "SELECT " + holdingSelectFields + " FROM holding WHERE portfolio_id = $portfolio_id ORDER BY symbol ASC"
	vars := map[string]any{"portfolio_id": portfolioID}

	results, err := surrealdb.Query[[]models.Holding](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings: %w", err)
	}

	holdings := firstResult(results)
	if holdings == nil {
		holdings = []models.Holding{}
	}
	return holdings, nil
}

var _ interfaces.PortfolioStore = (*PortfolioStore)(nil)
