// Package show implements the show command.
package show

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/agentstation/catalogsync/internal/appcontext"
	"github.com/agentstation/catalogsync/internal/cmd/cmdutil"
	"github.com/agentstation/catalogsync/internal/cmd/output"
	"github.com/agentstation/catalogsync/pkg/catalogs"
	"github.com/agentstation/catalogsync/pkg/store"
)

// NewCommand creates the show command using app context.
func NewCommand(app appcontext.Interface) *cobra.Command {
	return &cobra.Command{
		Use:     "show <kind> <id> [version]",
		GroupID: "core",
		Short:   "Print an entity's current revision or an archived snapshot",
		Long: `Show prints an entity. Without a version, or with "latest", the current
revision is shown. Table output prints the index document as stored.

Kinds: ` + cmdutil.KindUsage + ".",
		Example: `  catalogsync show event OrderPlaced
  catalogsync show event OrderPlaced 1.0.0
  catalogsync show service Orders -o yaml`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := cmdutil.ParseKey(args[0], args[1])
			if err != nil {
				return err
			}
			version := ""
			if len(args) == 3 {
				version = args[2]
			}
			cs, err := app.CatalogSync()
			if err != nil {
				return err
			}
			entity, err := cs.Show(cmd.Context(), key, version)
			if err != nil {
				return err
			}

			format := output.DetectFormat(app.OutputFormat())
			if format == output.FormatJSON || format == output.FormatYAML {
				return output.NewFormatter(format).Format(cmd.OutOrStdout(), entity)
			}
			return printDocument(cmd.OutOrStdout(), entity)
		},
	}
}

// printDocument writes the entity's index document and lists its attachments.
func printDocument(w io.Writer, e *catalogs.Entity) error {
	doc, err := store.Encode(e)
	if err != nil {
		return err
	}
	if _, err := w.Write(doc); err != nil {
		return err
	}
	if len(e.Files) == 0 {
		return nil
	}
	names := make([]string, 0, len(e.Files))
	for name := range e.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(w)
	for _, name := range names {
		fmt.Fprintf(w, "attachment: %s (%d bytes)\n", name, len(e.Files[name]))
	}
	return nil
}
