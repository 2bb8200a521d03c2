// Package provenance implements the provenance command.
package provenance

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/catalogsync/internal/appcontext"
	"github.com/agentstation/catalogsync/internal/cmd/output"
	"github.com/agentstation/catalogsync/pkg/errors"
	"github.com/agentstation/catalogsync/pkg/provenance"
)

// NewCommand creates the provenance command using app context.
func NewCommand(app appcontext.Interface) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:     "provenance [field-pattern]...",
		GroupID: "management",
		Short:   "Show which source and version wrote each source-owned field",
		Long: `Provenance prints the history recorded by sync runs in the provenance file
(provenance_file in the config, or --file). Patterns filter fields, for
example "name" or "message/event:OrderPlaced:*".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				file = app.ProvenanceFile()
			}
			if file == "" {
				return errors.NewConfigError("provenance", "no provenance file configured", nil)
			}
			pf, err := provenance.Load(file)
			if err != nil {
				return err
			}
			m := provenance.Map{}
			if pf != nil {
				m = pf.Provenance
			}
			format := output.DetectFormat(app.OutputFormat())
			return output.Print(cmd.OutOrStdout(), format, m, output.ProvenanceToTableData(m, args))
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "provenance file to read")
	return cmd
}
