package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"bookstore/internal/config"
	"bookstore/internal/infra/db"
	"bookstore/internal/logging"
	"bookstore/internal/server"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	var envFile string

	rootCmd := &cobra.Command{
		Use:           "bookstore",
		Short:         "Bookstore order and payment service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional .env file")

	rootCmd.AddCommand(serveCmd(&envFile))
	rootCmd.AddCommand(reconcileCmd(&envFile))
	rootCmd.AddCommand(migrateCmd(&envFile))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}
			log := logging.New(cfg.GoEnv)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(cfg, log)
			if err != nil {
				return err
			}
			defer a.close()

			//起動時にスキーマを合わせる
			if err := db.Migrate(a.db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}

			e := server.New(log)
			server.RegisterRoutes(e, cfg, a.handlers())

			return server.Start(ctx, e, ":"+cfg.Port, log)
		},
	}
}

// cronから直接叩く用（HTTPを経由しない）
func reconcileCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run one reconciliation sweep of stale pending orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}
			log := logging.New(cfg.GoEnv)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(cfg, log)
			if err != nil {
				return err
			}
			defer a.close()

			summary, err := a.reconcile.ReconcileAll(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reconciled=%d expired=%d unchanged=%d errored=%d skipped=%t\n",
				summary.Reconciled, summary.Expired, summary.Unchanged, summary.Errored, summary.Skipped)
			return nil
		},
	}
}

func migrateCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}
			log := logging.New(cfg.GoEnv)

			gormDB, err := db.Connect(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			if err := db.Migrate(gormDB); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			log.Info("migration finished")
			return nil
		},
	}
}
