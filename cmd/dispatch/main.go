package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/dispatch/internal/cli"
	"github.com/example/dispatch/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "dispatch",
		Short:   "Bin dispatch scan validation",
		Version: version.String(),
		Long: `dispatch validates warehouse bins against invoices: a two-sided audit
scan (customer label, then carrier label) followed by an independent
loading scan onto the vehicle. Any over-scan blocks the invoice until an
administrator reviews the alert.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cli.InitCmd())
	rootCmd.AddCommand(cli.SeedCmd())
	rootCmd.AddCommand(cli.LabelCmd())
	rootCmd.AddCommand(cli.InvoiceCmd())

	// Scanning
	rootCmd.AddCommand(cli.ScanCmd())
	rootCmd.AddCommand(cli.LoadCmd())
	rootCmd.AddCommand(cli.DispatchCmd())
	rootCmd.AddCommand(cli.AlertCmd())

	rootCmd.AddCommand(cli.ServeCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
