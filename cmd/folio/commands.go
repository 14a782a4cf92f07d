package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/folio/internal/app"
	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/models"
)

func parseQuantity(s string) (float64, error) {
	q, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid quantity %q: %w", s, err)
	}
	return q, nil
}

func newCreateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an empty portfolio for --user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				p, err := a.Portfolios.CreatePortfolio(ctx, userID, name)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), p)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Portfolio name")
	return cmd
}

func newBuyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "buy SYMBOL QUANTITY",
		Short: "Buy shares at the current price",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePortfolio(); err != nil {
				return err
			}
			qty, err := parseQuantity(args[1])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				h, err := a.Portfolios.Buy(ctx, portfolioID, args[0], qty)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), h)
			})
		},
	}
}

func newSellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sell SYMBOL QUANTITY",
		Short: "Sell shares of a holding",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePortfolio(); err != nil {
				return err
			}
			qty, err := parseQuantity(args[1])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				left, err := a.Portfolios.Sell(ctx, portfolioID, args[0], qty)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"symbol":    strings.ToUpper(args[0]),
					"sold":      qty,
					"remaining": left,
				})
			})
		},
	}
}

func newRecordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "record",
		Short: "Record today's value for --portfolio, or for every portfolio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if portfolioID == "" {
					n, err := a.History.RecordAll(ctx)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), map[string]int{"recorded": n})
				}
				p, err := a.Portfolios.GetPortfolio(ctx, portfolioID)
				if err != nil {
					return err
				}
				total, err := a.History.RecordPortfolioValue(ctx, p)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), models.HistoryPoint{
					PortfolioID: p.ID,
					Date:        common.Today(time.Now()),
					TotalValue:  total,
				})
			})
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var days int
	var recent, summary bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded daily values",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePortfolio(); err != nil {
				return err
			}
			if recent && summary {
				return fmt.Errorf("--recent and --summary cannot be combined")
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if summary {
					p, err := a.Portfolios.GetPortfolio(ctx, portfolioID)
					if err != nil {
						return err
					}
					sum, err := a.History.Summary(ctx, p, days)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), sum)
				}
				get := a.History.GetHistory
				if recent {
					get = a.History.GetRecentHistory
				}
				points, err := get(ctx, portfolioID, days)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), points)
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "Number of days")
	cmd.Flags().BoolVar(&recent, "recent", false, "Show the most recent days instead of the earliest")
	cmd.Flags().BoolVar(&summary, "summary", false, "Record today's value and report returns since the first point")
	return cmd
}

func newPerformanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "performance",
		Short: "Show value, cost basis and returns",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePortfolio(); err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				perf, err := a.Portfolios.GetPerformance(ctx, portfolioID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), perf)
			})
		},
	}
}

func newRiskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "risk",
		Short: "Show volatility, Sharpe ratio and diversification",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePortfolio(); err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				p, err := a.Portfolios.GetPortfolio(ctx, portfolioID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), a.Risk.CalculatePortfolioRisk(ctx, p))
			})
		},
	}
}

func newPredictCmd() *cobra.Command {
	var days int
	var path bool
	cmd := &cobra.Command{
		Use:   "predict [SYMBOL...]",
		Short: "Forecast returns for symbols, or for the portfolio's holdings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				if err := requirePortfolio(); err != nil {
					return err
				}
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				symbols := args
				if len(symbols) == 0 {
					p, err := a.Portfolios.GetPortfolio(ctx, portfolioID)
					if err != nil {
						return err
					}
					symbols = p.Symbols()
				}
				if days <= 0 {
					days = a.Config.Analytics.ForecastDays
				}
				if path {
					return printJSON(cmd.OutOrStdout(), a.Predictor.PredictWithPath(ctx, symbols, days))
				}
				return printJSON(cmd.OutOrStdout(), a.Predictor.PredictStockMovement(ctx, symbols, days))
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Forecast horizon in days (default from config)")
	cmd.Flags().BoolVar(&path, "path", false, "Include recent closes and the projected price path")
	return cmd
}

func newRecommendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recommend",
		Short: "Rule-based recommendations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePortfolio(); err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				p, err := a.Portfolios.GetPortfolio(ctx, portfolioID)
				if err != nil {
					return err
				}
				recs := a.Recommender.GenerateRecommendations(ctx, p)
				return printJSON(cmd.OutOrStdout(), models.FlattenAll(recs))
			})
		},
	}
}

func newEnhancedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enhanced",
		Short: "Personalised recommendations with forecasts and feedback",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePortfolio(); err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				p, err := a.Portfolios.GetPortfolio(ctx, portfolioID)
				if err != nil {
					return err
				}
				recs := a.Recommender.GenerateEnhancedRecommendations(ctx, p, userID)
				return printJSON(cmd.OutOrStdout(), models.FlattenAll(recs))
			})
		},
	}
}

func newImpactCmd() *cobra.Command {
	var quantity float64
	cmd := &cobra.Command{
		Use:       "impact buy|sell SYMBOL",
		Short:     "Project how a trade would change allocation and risk",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(models.TradeActionBuy), string(models.TradeActionSell)},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePortfolio(); err != nil {
				return err
			}
			action := models.TradeAction(strings.ToLower(args[0]))
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				p, err := a.Portfolios.GetPortfolio(ctx, portfolioID)
				if err != nil {
					return err
				}
				impact, err := a.Risk.ProjectTrade(ctx, p, action, strings.ToUpper(args[1]), quantity)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), impact)
			})
		},
	}
	cmd.Flags().Float64Var(&quantity, "quantity", 0, "Shares to trade (default 5 to buy, half the position to sell)")
	return cmd
}

func newSettingsCmd() *cobra.Command {
	var (
		tolerance string
		goal      string
		horizon   string
		sectors   []string
		tax       bool
	)
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or update --user's risk settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("a user is required: use --user or FOLIO_USER")
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				store := a.Storage.SettingsStore()
				current := models.DefaultUserRiskSettings(userID)
				if s, err := store.GetSettings(ctx, userID); err == nil {
					current = *s
				}

				flags := cmd.Flags()
				changed := false
				if flags.Changed("tolerance") {
					current.RiskTolerance, changed = models.RiskTolerance(tolerance), true
				}
				if flags.Changed("goal") {
					current.InvestmentGoal, changed = models.InvestmentGoal(goal), true
				}
				if flags.Changed("horizon") {
					current.TimeHorizon, changed = horizon, true
				}
				if flags.Changed("sectors") {
					current.PreferredSectors, changed = sectors, true
				}
				if flags.Changed("tax") {
					current.TaxConsideration, changed = tax, true
				}
				current = current.WithDefaults()

				if changed {
					if err := store.SaveSettings(ctx, &current); err != nil {
						return err
					}
				}
				return printJSON(cmd.OutOrStdout(), current)
			})
		},
	}
	cmd.Flags().StringVar(&tolerance, "tolerance", "", "Conservative, Moderate or Aggressive")
	cmd.Flags().StringVar(&goal, "goal", "", "Growth, Income, Preservation or Speculation")
	cmd.Flags().StringVar(&horizon, "horizon", "", "Short-term, Medium-term or Long-term")
	cmd.Flags().StringSliceVar(&sectors, "sectors", nil, "Preferred sectors")
	cmd.Flags().BoolVar(&tax, "tax", false, "Opt in to tax-loss harvesting suggestions")
	return cmd
}

func newFeedbackCmd() *cobra.Command {
	var (
		kind     string
		action   string
		rating   int
		followed bool
		comment  string
	)
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Rate a recommendation type for --user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("a user is required: use --user or FOLIO_USER")
			}
			if !models.ValidRating(rating) {
				return fmt.Errorf("rating must be between %d and %d", models.MinFeedbackRating, models.MaxFeedbackRating)
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				fb := &models.RecommendationFeedback{
					UserID:               userID,
					RecommendationType:   models.Kind(kind),
					RecommendationAction: action,
					Rating:               rating,
					WasFollowed:          followed,
					Comment:              comment,
					CreatedAt:            time.Now(),
				}
				if err := a.Storage.FeedbackStore().SaveFeedback(ctx, fb); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), fb)
			})
		},
	}
	cmd.Flags().StringVar(&kind, "type", "", "Recommendation type, e.g. buy, sell, rebalance")
	cmd.Flags().StringVar(&action, "action", "", "The recommendation text being rated")
	cmd.Flags().IntVar(&rating, "rating", 0, "Rating from 1 to 5")
	cmd.Flags().BoolVar(&followed, "followed", false, "Whether the recommendation was followed")
	cmd.Flags().StringVar(&comment, "comment", "", "Optional comment")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("rating")
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daily recording scheduler and metrics endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				common.PrintBanner(a.Config, a.Logger)

				if err := a.StartScheduler(); err != nil {
					return err
				}
				a.StartMetricsServer()
				a.StartWarmCache()

				<-ctx.Done()
				common.PrintShutdownBanner(a.Logger)
				return nil
			})
		},
	}
}
