package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/folio/internal/app"
	"github.com/bobmcallan/folio/internal/common"
)

// Global flags
var (
	configPath  string
	portfolioID string
	userID      string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "folio",
		Short:         "Portfolio risk analytics, forecasts and recommendations",
		Version:       common.GetFullVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the configuration file")
	rootCmd.PersistentFlags().StringVarP(&portfolioID, "portfolio", "p", os.Getenv("FOLIO_PORTFOLIO"), "Portfolio ID")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", os.Getenv("FOLIO_USER"), "User ID for personalised output")

	rootCmd.AddCommand(
		newCreateCmd(),
		newBuyCmd(),
		newSellCmd(),
		newRecordCmd(),
		newHistoryCmd(),
		newPerformanceCmd(),
		newRiskCmd(),
		newPredictCmd(),
		newRecommendCmd(),
		newEnhancedCmd(),
		newImpactCmd(),
		newSettingsCmd(),
		newFeedbackCmd(),
		newServeCmd(),
	)
	return rootCmd
}

// withApp builds the App for one command run, cancelled on interrupt.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.NewApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func requirePortfolio() error {
	if portfolioID == "" {
		return fmt.Errorf("a portfolio is required: use --portfolio or FOLIO_PORTFOLIO")
	}
	return nil
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
