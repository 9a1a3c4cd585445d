package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/ariefcatur/go-pos-terminal/internal/bootstrap"
	"github.com/ariefcatur/go-pos-terminal/internal/config"
	"github.com/ariefcatur/go-pos-terminal/internal/pos"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	Version   = "0.1.0"
	BuildTime = "dev"
)

const appName = "posctl"

func main() {
	_ = godotenv.Load()
	if err := rootCmd(config.Load()).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd(cfg config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   appName,
		Short: "Operate a POS terminal's store from the shell",
		Long: `posctl reads sales history and reports straight from the terminal's
store (STORE_DRIVER and friends, same environment as the api binary) and
runs the admin-only catalog reset.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			bootstrap.NewLogger(cfg)
		},
	}

	cmd.PersistentFlags().StringVar(&cfg.StoreDriver, "store", cfg.StoreDriver, "Store driver (sqlite, postgres, redis, memory)")
	cmd.PersistentFlags().StringVar(&cfg.SQLitePath, "sqlite-path", cfg.SQLitePath, "SQLite database file")
	cmd.PersistentFlags().StringVar(&cfg.ReportTZ, "tz", cfg.ReportTZ, "Time zone for dates and windows")

	cmd.AddCommand(reportCmd(&cfg), salesCmd(&cfg), receiptCmd(&cfg), catalogCmd(&cfg))

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

// loadSales reads the sales history without taking the session lease.
func loadSales(ctx context.Context, cfg *config.Config) ([]pos.Sale, *time.Location, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}
	store, err := bootstrap.OpenStore(ctx, *cfg)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("close store", slog.String("error", err.Error()))
		}
	}()
	sales, err := pos.LoadSales(ctx, store)
	if err != nil {
		return nil, nil, err
	}
	return sales, loc, nil
}
