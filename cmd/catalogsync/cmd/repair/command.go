// Package repair implements the repair command.
package repair

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/catalogsync/internal/appcontext"
	"github.com/agentstation/catalogsync/internal/cmd/cmdutil"
	"github.com/agentstation/catalogsync/internal/cmd/output"
)

// NewCommand creates the repair command using app context.
func NewCommand(app appcontext.Interface) *cobra.Command {
	return &cobra.Command{
		Use:     "repair",
		GroupID: "management",
		Short:   "Restore current revisions lost by interrupted writes",
		Long: `Repair scans the catalog for entities that have archived snapshots but no
current revision, which happens when a supersede was interrupted after the
archive step, and restores the newest archived snapshot as current.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cs, err := app.CatalogSync()
			if err != nil {
				return err
			}
			result, err := cs.Repair(cmd.Context())
			if result != nil {
				format := output.DetectFormat(app.OutputFormat())
				if perr := output.Print(cmd.OutOrStdout(), format, result, output.ResultToTableData(result)); perr != nil {
					return perr
				}
			}
			if err != nil {
				return err
			}
			if !result.IsSuccess() {
				return cmdutil.ErrFailures
			}
			return nil
		},
	}
}
