// Command billingctl runs one-off maintenance tasks against the billing
// database.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/storytime-billing/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "billingctl",
	Short:         "Storytime billing maintenance",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the config file (defaults to CONFIG_PATH)")
	rootCmd.AddCommand(migrateCmd, syncTiersCmd, resetUsageCmd, tiersCmd, tokenCmd)
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		return nil, fmt.Errorf("no config: pass --config or set CONFIG_PATH")
	}
	return config.Load(path)
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
