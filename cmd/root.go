package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agencyhq/agencyapi/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "agencyapi",
	Short: "Agency API server for Clerk-backed authentication and organizations",
	Long: `Agency API server verifies Clerk sessions, evaluates user permissions,
and manages organization memberships over an HTTP REST surface.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		return nil
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().String("db-url", "", "Database connection URL (env: DATABASE_URL)")
	rootCmd.PersistentFlags().String("server-addr", "", "Server bind address (env: SERVER_ADDR)")
	rootCmd.PersistentFlags().String("login-url", "", "Login redirect URL for browser requests (env: LOGIN_URL)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging (env: DEBUG)")
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
