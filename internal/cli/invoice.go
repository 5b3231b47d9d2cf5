package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/dispatch/internal/adapters/spreadsheet"
	"github.com/example/dispatch/internal/ports/primary"
	"github.com/example/dispatch/internal/wire"
)

// InvoiceCmd returns the invoice command
func InvoiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoice",
		Short: "Manage invoices",
		Long:  "Create, import, list and inspect the invoices bins are scanned against",
	}
	cmd.AddCommand(invoiceCreateCmd())
	cmd.AddCommand(invoiceShowCmd())
	cmd.AddCommand(invoiceListCmd())
	cmd.AddCommand(invoiceImportCmd())
	cmd.AddCommand(invoiceTemplateCmd())
	return cmd
}

func invoiceCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create [invoice-id]",
		Short: "Create an invoice",
		Example: `  dispatch invoice create INV-1001 --customer "Northwind" \
    --line C-4711:K-88201:16 --line C-4712:K-88202:9`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			customer, _ := cmd.Flags().GetString("customer")
			specs, _ := cmd.Flags().GetStringArray("line")
			if len(specs) == 0 {
				return fmt.Errorf("at least one --line is required")
			}

			req := primary.CreateInvoiceRequest{ID: args[0], CustomerName: customer}
			for _, spec := range specs {
				line, err := parseLineSpec(spec)
				if err != nil {
					return err
				}
				req.Lines = append(req.Lines, line)
			}
			return wire.InvoiceAdapter().Create(cmd.Context(), req)
		},
	}
	cmd.Flags().String("customer", "", "Customer name")
	cmd.Flags().StringArray("line", nil, "Line as CUSTOMER_PART:CARRIER_PART:QTY (repeatable)")
	return cmd
}

// parseLineSpec parses CUSTOMER_PART:CARRIER_PART:QTY.
func parseLineSpec(spec string) (primary.CreateInvoiceLine, error) {
	parts := strings.Split(spec, ":")
	if len(parts) != 3 {
		return primary.CreateInvoiceLine{}, fmt.Errorf("invalid line %q: expected CUSTOMER_PART:CARRIER_PART:QTY", spec)
	}
	qty, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil || qty < 0 {
		return primary.CreateInvoiceLine{}, fmt.Errorf("invalid line %q: quantity must be a non-negative integer", spec)
	}
	return primary.CreateInvoiceLine{
		CustomerPartCode: strings.TrimSpace(parts[0]),
		CarrierPartCode:  strings.TrimSpace(parts[1]),
		ExpectedQuantity: qty,
	}, nil
}

func invoiceShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [invoice-id]",
		Short: "Show an invoice with scan progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return wire.InvoiceAdapter().Show(cmd.Context(), args[0])
		},
	}
}

func invoiceListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List invoices",
		RunE: func(cmd *cobra.Command, args []string) error {
			filters := primary.InvoiceFilters{}
			filters.CustomerName, _ = cmd.Flags().GetString("customer")
			if cmd.Flags().Changed("blocked") {
				blocked, _ := cmd.Flags().GetBool("blocked")
				filters.Blocked = &blocked
			}
			return wire.InvoiceAdapter().List(cmd.Context(), filters)
		},
	}
	cmd.Flags().Bool("blocked", false, "Only blocked (true) or open (false) invoices")
	cmd.Flags().String("customer", "", "Filter by customer name")
	return cmd
}

func invoiceImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file.xlsx]",
		Short: "Create invoices from a workbook",
		Long: fmt.Sprintf(`Create invoices from the first sheet of a workbook with the columns
%s. Invoices that already exist are skipped.`, strings.Join(spreadsheet.Header, ", ")),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open workbook: %w", err)
			}
			defer f.Close()
			return wire.InvoiceAdapter().Import(cmd.Context(), f)
		},
	}
}

func invoiceTemplateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "template [file.xlsx]",
		Short: "Write an empty import workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := spreadsheet.NewTemplate()
			if err != nil {
				return err
			}
			defer f.Close()
			if err := f.SaveAs(args[0]); err != nil {
				return fmt.Errorf("failed to write template: %w", err)
			}
			fmt.Printf("✓ Template written to %s\n", args[0])
			return nil
		},
	}
}
