package cli

import (
	"os"

	"github.com/spf13/cobra"

	cliadapter "github.com/example/dispatch/internal/adapters/cli"
)

// LabelCmd returns the label troubleshooting commands. They run offline.
func LabelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "label",
		Short: "Inspect label payloads",
		Long:  "Canonicalize, parse and encode raw scanner payloads without touching the database",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "canonicalize [payload]",
		Short: "Print the canonical form of a payload",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cliadapter.NewLabelAdapter(os.Stdout).Canonicalize(args[0])
		},
	})

	parseCmd := &cobra.Command{
		Use:   "parse",
		Short: "Parse a customer or carrier label",
	}
	parseCmd.AddCommand(&cobra.Command{
		Use:   "customer [payload]",
		Short: "Parse a fixed-position customer label",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cliadapter.NewLabelAdapter(os.Stdout).ParseCustomer(args[0])
		},
	})
	parseCmd.AddCommand(&cobra.Command{
		Use:   "carrier [payload]",
		Short: "Parse a marker-delimited carrier label",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cliadapter.NewLabelAdapter(os.Stdout).ParseCarrier(args[0])
		},
	})
	cmd.AddCommand(parseCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "encode [text]",
		Short: "Print the legacy digit-triplet encoding of text",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cliadapter.NewLabelAdapter(os.Stdout).Encode(args[0])
		},
	})

	return cmd
}
