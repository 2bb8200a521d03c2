// Package verify implements the verify command.
package verify

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/catalogsync/internal/appcontext"
	"github.com/agentstation/catalogsync/internal/cmd/cmdutil"
	"github.com/agentstation/catalogsync/internal/cmd/output"
)

// NewCommand creates the verify command using app context.
func NewCommand(app appcontext.Interface) *cobra.Command {
	return &cobra.Command{
		Use:     "verify",
		GroupID: "management",
		Short:   "Check the catalog for broken version invariants",
		Long: `Verify checks every entity in the catalog:

• the archive never contains the current version
• every entity with an archive has a current revision
• every snapshot can be read on its own
• no interrupted archive or restore is left on disk

It exits non-zero when a violation is found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cs, err := app.CatalogSync()
			if err != nil {
				return err
			}
			report, err := cs.Verify(cmd.Context())
			if err != nil {
				return err
			}
			format := output.DetectFormat(app.OutputFormat())
			if err := output.Print(cmd.OutOrStdout(), format, report, output.VerifyToTableData(report)); err != nil {
				return err
			}
			if !report.OK() {
				return fmt.Errorf("%w: %s", cmdutil.ErrFailures, report.Summary())
			}
			return nil
		},
	}
}
