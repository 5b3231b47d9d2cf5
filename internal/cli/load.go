package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/dispatch/internal/wire"
)

// LoadCmd returns the loading scan command
func LoadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load [invoice-id] [payload]",
		Short: "Record a bin loaded onto a vehicle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, operator, err := operatorContext(cmd)
			if err != nil {
				return err
			}
			return wire.ScanAdapter().Load(ctx, args[0], args[1], operator)
		},
	}
	addOperatorFlag(cmd)

	deleteCmd := &cobra.Command{
		Use:   "delete [scan-id]",
		Short: "Delete a loading scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, operator, err := operatorContext(cmd)
			if err != nil {
				return err
			}
			return wire.ScanAdapter().DeleteLoad(ctx, args[0], operator)
		},
	}
	addOperatorFlag(deleteCmd)
	cmd.AddCommand(deleteCmd)

	return cmd
}

// DispatchCmd returns the vehicle dispatch command
func DispatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dispatch [vehicle-id]",
		Short: "Load several bins onto a vehicle at once",
		Long: `Load several bins onto a vehicle as one unit. Each --invoice pairs with
the --payload at the same position. Either every bin is loaded or none is.`,
		Example: `  dispatch dispatch TRUCK-7 --invoice INV-1001 --payload "<label>" \
    --invoice INV-1002 --payload "<label>"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			invoices, _ := cmd.Flags().GetStringArray("invoice")
			payloads, _ := cmd.Flags().GetStringArray("payload")
			if len(payloads) == 0 {
				return fmt.Errorf("at least one --payload is required")
			}
			ctx, operator, err := operatorContext(cmd)
			if err != nil {
				return err
			}
			return wire.ScanAdapter().Dispatch(ctx, args[0], invoices, payloads, operator)
		},
	}
	addOperatorFlag(cmd)
	cmd.Flags().StringArray("invoice", nil, "Invoice of the bin at the same position (repeatable)")
	cmd.Flags().StringArray("payload", nil, "Label payload (repeatable)")
	return cmd
}
