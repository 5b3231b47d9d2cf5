package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/dispatch/internal/ctxutil"
	"github.com/example/dispatch/internal/wire"
)

// resolveOperator picks the operator from the --operator flag, falling back
// to the configured default.
func resolveOperator(flag, configured string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if configured != "" {
		return configured, nil
	}
	return "", fmt.Errorf("no operator given\nHint: Use --operator or set DISPATCH_OPERATOR")
}

// operatorContext resolves the operator for cmd and returns a context
// carrying it.
func operatorContext(cmd *cobra.Command) (context.Context, string, error) {
	flag, _ := cmd.Flags().GetString("operator")
	operator, err := resolveOperator(flag, wire.Config().Operator)
	if err != nil {
		return nil, "", err
	}
	return ctxutil.WithOperator(cmd.Context(), operator), operator, nil
}

func addOperatorFlag(cmd *cobra.Command) {
	cmd.Flags().String("operator", "", "Operator recording the scan (default from config)")
}
