package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/storytime-billing/internal/lib/jwt"
	"github.com/magabrotheeeer/storytime-billing/internal/lib/logger"
	"github.com/magabrotheeeer/storytime-billing/internal/migrations"
	"github.com/magabrotheeeer/storytime-billing/internal/services/usage"
	"github.com/magabrotheeeer/storytime-billing/internal/storage"
	"github.com/magabrotheeeer/storytime-billing/internal/storage/repository"
	"github.com/magabrotheeeer/storytime-billing/internal/tiers"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := repository.New(cfg.StorageConnectionString)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
			return err
		}
		v, dirty, err := migrations.Version(db.DB, cfg.MigrationsPath)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d (dirty=%t)\n", v, dirty)
		return nil
	},
}

var syncTiersCmd = &cobra.Command{
	Use:   "sync-tiers",
	Short: "Write the tier catalog into the tier_limits table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := repository.New(cfg.StorageConnectionString)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.SyncTierLimits(cmd.Context(), tiers.All()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "synced %d tiers\n", len(tiers.All()))
		return nil
	},
}

var resetUsageCmd = &cobra.Command{
	Use:   "reset-usage <user-id>",
	Short: "Delete every usage record of a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := repository.New(cfg.StorageConnectionString)
		if err != nil {
			return err
		}
		defer db.Close()

		ledger := usage.NewLedger(db, logger.New(cfg.Env, os.Stderr))
		n, err := ledger.ResetUsage(cmd.Context(), args[0])
		if errors.Is(err, storage.ErrNotFound) {
			fmt.Fprintf(cmd.OutOrStdout(), "no usage recorded for %s\n", args[0])
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d usage records for %s\n", n, args[0])
		return nil
	},
}

var tiersCmd = &cobra.Command{
	Use:   "tiers",
	Short: "Print the tier catalog as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(tiers.All())
	},
}

var (
	tokenEmail string
	tokenRole  string
)

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Mint a bearer token for local testing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.JWT.Secret == "" {
			return errors.New("JWT_SECRET is required")
		}
		token, err := jwt.NewJWTMaker(cfg.JWT.Secret, cfg.JWT.TokenTTL).GenerateToken(args[0], tokenEmail, tokenRole)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "email claim")
	tokenCmd.Flags().StringVar(&tokenRole, "role", "user", "role claim")
}
