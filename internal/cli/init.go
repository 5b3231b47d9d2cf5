package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/dispatch/internal/config"
	"github.com/example/dispatch/internal/db"
	"github.com/example/dispatch/internal/wire"
)

// InitCmd returns the init command
func InitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize dispatch in the current directory",
		Long: `Write .dispatch/config.json in the current directory and create the
database schema for the configured driver.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}

			cfg := config.Default()
			if existing, err := config.LoadConfig(dir); err == nil {
				cfg = existing
			}
			cfg.DBDriver, _ = cmd.Flags().GetString("driver")
			if v, _ := cmd.Flags().GetString("db-path"); v != "" {
				cfg.DBPath = v
			}
			if v, _ := cmd.Flags().GetString("dsn"); v != "" {
				cfg.DBDSN = v
			}
			if v, _ := cmd.Flags().GetString("redis"); v != "" {
				cfg.RedisAddr = v
			}
			if v, _ := cmd.Flags().GetString("operator"); v != "" {
				cfg.Operator = v
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			if err := config.SaveConfig(dir, cfg); err != nil {
				return err
			}
			fmt.Println("✓ Config written to .dispatch/config.json")

			// Opening the store creates or migrates the schema.
			wire.Services()
			fmt.Printf("✓ %s database initialized\n", wire.Config().DBDriver)
			fmt.Println()
			fmt.Println("Next steps:")
			fmt.Println("  dispatch invoice import invoices.xlsx")
			fmt.Println("  dispatch scan customer INV-1001 \"<payload>\"")

			return nil
		},
	}

	cmd.Flags().String("driver", config.DriverSQLite, "Storage driver (sqlite, postgres)")
	cmd.Flags().String("db-path", "", "SQLite database file (default ~/.dispatch/dispatch.db)")
	cmd.Flags().String("dsn", "", "PostgreSQL DSN")
	cmd.Flags().String("redis", "", "Redis address for events and dispatch locks")
	cmd.Flags().String("operator", "", "Default operator for scan commands")
	return cmd
}

// SeedCmd returns the seed command
func SeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load development fixtures",
		RunE: func(cmd *cobra.Command, args []string) error {
			database := wire.Services().SQLite
			if database == nil {
				return fmt.Errorf("seed supports the %s driver only", config.DriverSQLite)
			}
			if err := db.SeedFixtures(database); err != nil {
				return fmt.Errorf("failed to seed fixtures: %w", err)
			}
			fmt.Println("✓ Development fixtures loaded")
			return nil
		},
	}
}
