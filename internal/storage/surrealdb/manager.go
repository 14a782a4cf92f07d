// Package surrealdb implements folio persistence on SurrealDB.
package surrealdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
)

// Table names
const (
	tablePortfolio = "portfolio"
	tableHolding   = "holding"
	tableHistory   = "portfolio_history"
	tableSettings  = "user_settings"
	tableFeedback  = "recommendation_feedback"
)

// Manager implements interfaces.StorageManager using SurrealDB.
type Manager struct {
	db     *surrealdb.DB
	logger *common.Logger

	portfolioStore *PortfolioStore
	historyStore   *HistoryStore
	settingsStore  *SettingsStore
	feedbackStore  *FeedbackStore
}

// NewManager creates a new StorageManager connected to SurrealDB.
func NewManager(ctx context.Context, logger *common.Logger, config *common.Config) (*Manager, error) {
	db, err := surrealdb.New(config.Storage.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": config.Storage.Username,
		"pass": config.Storage.Password,
	}); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	if err := db.Use(ctx, config.Storage.Namespace, config.Storage.Database); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	m, err := newManagerWithDB(ctx, db, logger)
	if err != nil {
		db.Close(ctx)
		return nil, err
	}

	logger.Info().
		Str("address", config.Storage.Address).
		Str("namespace", config.Storage.Namespace).
		Str("database", config.Storage.Database).
		Msg("SurrealDB storage manager initialized")

	return m, nil
}

// newManagerWithDB defines the schema on an already-selected database and
// builds the stores.
func newManagerWithDB(ctx context.Context, db *surrealdb.DB, logger *common.Logger) (*Manager, error) {
	if err := defineSchema(ctx, db); err != nil {
		return nil, err
	}

	return &Manager{
		db:             db,
		logger:         logger,
		portfolioStore: NewPortfolioStore(db, logger),
		historyStore:   NewHistoryStore(db, logger),
		settingsStore:  NewSettingsStore(db, logger),
		feedbackStore:  NewFeedbackStore(db, logger),
	}, nil
}

// defineSchema creates tables (SurrealDB v3 errors on querying non-existent
// tables) and the unique (portfolio, date) index on history.
func defineSchema(ctx context.Context, db *surrealdb.DB) error {
	for _, table := range []string{tablePortfolio, tableHolding, tableHistory, tableSettings, tableFeedback} {
		sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", table)
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return fmt.Errorf("failed to define table %s: %w", table, err)
		}
	}

	indexes := []string{
		"DEFINE INDEX IF NOT EXISTS history_portfolio_date ON TABLE portfolio_history COLUMNS portfolio_id, date UNIQUE",
		"DEFINE INDEX IF NOT EXISTS holding_portfolio ON TABLE holding COLUMNS portfolio_id",
		"DEFINE INDEX IF NOT EXISTS feedback_user ON TABLE recommendation_feedback COLUMNS user_id",
	}
	for _, sql := range indexes {
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return fmt.Errorf("failed to define index: %w", err)
		}
	}
	return nil
}

func (m *Manager) PortfolioStore() interfaces.PortfolioStore {
	return m.portfolioStore
}

func (m *Manager) HistoryStore() interfaces.HistoryStore {
	return m.historyStore
}

func (m *Manager) SettingsStore() interfaces.SettingsStore {
	return m.settingsStore
}

func (m *Manager) FeedbackStore() interfaces.FeedbackStore {
	return m.feedbackStore
}

func (m *Manager) Close() error {
	m.db.Close(context.Background())
	return nil
}

// isNotFoundError reports whether a SurrealDB error means the record is absent.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist")
}

// firstResult returns the rows of the first statement of a query result.
func firstResult[T any](results *[]surrealdb.QueryResult[[]T]) []T {
	if results == nil || len(*results) == 0 {
		return nil
	}
	return (*results)[0].Result
}

// Compile-time check
var _ interfaces.StorageManager = (*Manager)(nil)
