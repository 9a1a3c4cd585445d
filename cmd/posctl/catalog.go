package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ariefcatur/go-pos-terminal/internal/auth"
	"github.com/ariefcatur/go-pos-terminal/internal/bootstrap"
	"github.com/ariefcatur/go-pos-terminal/internal/config"
	"github.com/ariefcatur/go-pos-terminal/internal/pos"
	"github.com/ariefcatur/go-pos-terminal/internal/seed"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func catalogCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Admin catalog maintenance",
	}

	var secret string
	reset := &cobra.Command{
		Use:   "reset",
		Short: "Replace the catalog with the seed catalog (cart must be empty)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("POSCTL_SECRET")
			}
			if secret == "" {
				return errors.New("--secret or POSCTL_SECRET is required")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			data, err := seed.Load(cfg.SeedFile)
			if err != nil {
				return err
			}
			sess, err := auth.NewGate(cfg.AdminSecret).Login(secret)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := bootstrap.OpenStore(ctx, *cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			engine, err := pos.Open(ctx, store,
				pos.WithLogger(slog.Default()),
				pos.WithSeed(data.Catalog),
				pos.WithLease(appName+"/"+uuid.NewString(), cfg.LeaseTTL),
			)
			if err != nil {
				return err
			}
			defer func() {
				ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = engine.Close(ctx2)
			}()

			if err := engine.ResetCatalog(ctx, sess); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "catalog reset: %d items\n", len(engine.Get().Catalog))
			return nil
		},
	}
	reset.Flags().StringVar(&secret, "secret", "", "Admin secret (defaults to $POSCTL_SECRET)")
	cmd.AddCommand(reset)
	return cmd
}
