package cli

import (
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// newPoliciesCmd prints the configured policies.
func newPoliciesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "policies",
		Short: "Show the configured policies",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := compilePolicies(); err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Policy", "Identities", "Joins", "Select columns", "Max rows"})

			for _, pc := range cfg.Policies {
				joins := append([]string{}, pc.Joins...)
				for _, ij := range pc.IdentityJoins {
					joins = append(joins, ij.Condition+" (identity :"+ij.Placeholder+")")
				}
				maxRows := "unlimited"
				if pc.MaxLimit != nil {
					maxRows = strconv.Itoa(*pc.MaxLimit)
				}
				t.AppendRow(table.Row{
					pc.Name,
					strings.Join(pc.Identities, "\n"),
					strings.Join(joins, "\n"),
					strings.Join(pc.SelectColumns, "\n"),
					maxRows,
				})
			}

			t.SetStyle(table.StyleLight)
			t.Render()
			return nil
		},
	}
}
