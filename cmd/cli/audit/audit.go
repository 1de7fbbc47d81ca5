package audit

import (
	"github.com/crucial707/inkwell/cmd/cli/config"
	"github.com/crucial707/inkwell/cmd/cli/output"
	"github.com/spf13/cobra"
)

// InitAudit registers the audit command.
func InitAudit(rootCmd *cobra.Command) {
	rootCmd.AddCommand(listAuditCmd())
}

func listAuditCmd() *cobra.Command {
	var limit, offset int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent post activity (admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := config.Open()
			if err != nil {
				return err
			}
			entries, err := c.ListAudit(cmd.Context(), limit, offset)
			if err != nil {
				return config.Explain(err)
			}
			if jsonOut {
				return output.PrintJSON(cmd.OutOrStdout(), entries)
			}
			rows := make([][]interface{}, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []interface{}{
					e.ID, e.CreatedAt.Format("2006-01-02 15:04:05"), e.UserID,
					e.Action, e.ResourceType, e.ResourceID, output.Truncate(e.Details, 50),
				})
			}
			output.RenderTable(cmd.OutOrStdout(),
				[]string{"ID", "When", "User", "Action", "Resource", "Resource ID", "Details"}, rows)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Entries to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "Entries to skip")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output raw JSON")
	return cmd
}
