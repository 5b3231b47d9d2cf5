package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/dispatch/internal/core/scan"
	"github.com/example/dispatch/internal/ports/primary"
	"github.com/example/dispatch/internal/wire"
)

// ScanCmd returns the audit scan command
func ScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Record audit scans",
		Long: `Record the two-sided audit of a bin: the customer label first, then the
carrier label. A carrier scan without --customer pairs with the latest
pending customer scan of the matching line.`,
	}

	customerCmd := &cobra.Command{
		Use:   "customer [invoice-id] [payload]",
		Short: "Record a customer label",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, operator, err := operatorContext(cmd)
			if err != nil {
				return err
			}
			return wire.ScanAdapter().Customer(ctx, args[0], args[1], operator)
		},
	}
	addOperatorFlag(customerCmd)

	carrierCmd := &cobra.Command{
		Use:   "carrier [invoice-id] [payload]",
		Short: "Record a carrier label",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, operator, err := operatorContext(cmd)
			if err != nil {
				return err
			}
			customer, _ := cmd.Flags().GetString("customer")
			return wire.ScanAdapter().Carrier(ctx, args[0], args[1], customer, operator)
		},
	}
	addOperatorFlag(carrierCmd)
	carrierCmd.Flags().String("customer", "", "Customer label payload of the same bin")

	pairCmd := &cobra.Command{
		Use:   "pair [invoice-id] [customer-payload] [carrier-payload]",
		Short: "Record both labels of a bin",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, operator, err := operatorContext(cmd)
			if err != nil {
				return err
			}
			return wire.ScanAdapter().Pair(ctx, args[0], args[1], args[2], operator)
		},
	}
	addOperatorFlag(pairCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List scans",
		RunE: func(cmd *cobra.Command, args []string) error {
			invoiceID, _ := cmd.Flags().GetString("invoice")
			lineID, _ := cmd.Flags().GetString("line")
			scanContext, _ := cmd.Flags().GetString("context")
			status, _ := cmd.Flags().GetString("status")
			return wire.ScanAdapter().List(cmd.Context(), primary.ScanFilters{
				InvoiceID: invoiceID,
				LineID:    lineID,
				Context:   scan.Context(scanContext),
				Status:    scan.Status(status),
			})
		},
	}
	listCmd.Flags().String("invoice", "", "Filter by invoice")
	listCmd.Flags().String("line", "", "Filter by invoice line")
	listCmd.Flags().String("context", "", "Filter by context (audit, loading)")
	listCmd.Flags().String("status", "", "Filter by status (pending, matched)")

	cmd.AddCommand(customerCmd, carrierCmd, pairCmd, listCmd)
	return cmd
}
