// Package versions implements the versions command.
package versions

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/catalogsync/internal/appcontext"
	"github.com/agentstation/catalogsync/internal/cmd/cmdutil"
	"github.com/agentstation/catalogsync/internal/cmd/output"
)

// NewCommand creates the versions command using app context.
func NewCommand(app appcontext.Interface) *cobra.Command {
	return &cobra.Command{
		Use:     "versions <kind> <id>",
		GroupID: "core",
		Short:   "List the current and archived versions of an entity",
		Long:    "Versions lists an entity's current version and archived snapshots, newest first.\n\nKinds: " + cmdutil.KindUsage + ".",
		Example: `  catalogsync versions event OrderPlaced
  catalogsync versions service Orders -o json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := cmdutil.ParseKey(args[0], args[1])
			if err != nil {
				return err
			}
			cs, err := app.CatalogSync()
			if err != nil {
				return err
			}
			list, err := cs.Versions(cmd.Context(), key)
			if err != nil {
				return err
			}
			format := output.DetectFormat(app.OutputFormat())
			return output.Print(cmd.OutOrStdout(), format, list, output.VersionsToTableData(list))
		},
	}
}
