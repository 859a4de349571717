package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// newQueryCmd translates a natural-language request into trusted SQL.
func newQueryCmd() *cobra.Command {
	var noRepair bool

	cmd := &cobra.Command{
		Use:   "query [request...]",
		Short: "Translate a natural-language request into trusted SQL",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := buildBifrost()
			if err != nil {
				return err
			}

			sql, err := b.Traverse(cmd.Context(), strings.Join(args, " "), !noRepair)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), sql)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noRepair, "no-repair", false, "reject non-compliant queries instead of repairing them")
	return cmd
}

// newCheckCmd validates SQL text offline, without the LLM.
func newCheckCmd() *cobra.Command {
	var noRepair bool

	cmd := &cobra.Command{
		Use:   "check [sql]",
		Short: "Validate a SQL statement against the configured policies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := buildBifrost()
			if err != nil {
				return err
			}

			sql, err := b.ValidateSQL(cmd.Context(), args[0], !noRepair)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), sql)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noRepair, "no-repair", false, "reject non-compliant queries instead of repairing them")
	return cmd
}
