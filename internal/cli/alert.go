package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/dispatch/internal/core/alert"
	"github.com/example/dispatch/internal/ports/primary"
	"github.com/example/dispatch/internal/wire"
)

// AlertCmd returns the alert review command
func AlertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alert",
		Short: "Review mismatch alerts",
		Long:  "List, inspect, approve and reject the alerts that block invoices",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			invoiceID, _ := cmd.Flags().GetString("invoice")
			status, _ := cmd.Flags().GetString("status")
			return wire.AlertAdapter().List(cmd.Context(), primary.AlertFilters{
				InvoiceID: invoiceID,
				Status:    alert.Status(status),
			})
		},
	}
	listCmd.Flags().String("invoice", "", "Filter by invoice")
	listCmd.Flags().String("status", "", "Filter by status (pending, approved, rejected)")

	showCmd := &cobra.Command{
		Use:   "show [alert-id]",
		Short: "Show alert details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return wire.AlertAdapter().Show(cmd.Context(), args[0])
		},
	}

	approveCmd := &cobra.Command{
		Use:   "approve [alert-id]",
		Short: "Approve an alert and roll back its pending scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, operator, err := operatorContext(cmd)
			if err != nil {
				return err
			}
			note, _ := cmd.Flags().GetString("note")
			return wire.AlertAdapter().Approve(ctx, args[0], operator, note)
		},
	}
	addOperatorFlag(approveCmd)
	approveCmd.Flags().String("note", "", "Review note")

	rejectCmd := &cobra.Command{
		Use:   "reject [alert-id]",
		Short: "Reject an alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, operator, err := operatorContext(cmd)
			if err != nil {
				return err
			}
			note, _ := cmd.Flags().GetString("note")
			return wire.AlertAdapter().Reject(ctx, args[0], operator, note)
		},
	}
	addOperatorFlag(rejectCmd)
	rejectCmd.Flags().String("note", "", "Review note")

	cmd.AddCommand(listCmd, showCmd, approveCmd, rejectCmd)
	return cmd
}
