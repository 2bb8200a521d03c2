// Package sync implements the sync command.
package sync

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/agentstation/catalogsync"
	"github.com/agentstation/catalogsync/internal/appcontext"
	"github.com/agentstation/catalogsync/internal/cmd/cmdutil"
	"github.com/agentstation/catalogsync/internal/cmd/output"
	"github.com/agentstation/catalogsync/internal/sources/manifest"
	"github.com/agentstation/catalogsync/pkg/sources"
)

// Flags holds the sync command flags.
type Flags struct {
	DryRun             bool
	Generator          string
	ForwardOnly        bool
	LatestOnly         bool
	NoPreserveMessages bool
	Summary            string
}

// DefaultGenerator names the generator when --generator is not given.
const DefaultGenerator = "manifest"

// NewCommand creates the sync command using app context.
func NewCommand(app appcontext.Interface) *cobra.Command {
	flags := &Flags{}

	cmd := &cobra.Command{
		Use:     "sync <manifest>...",
		GroupID: "core",
		Short:   "Reconcile manifest revisions into the catalog",
		Args:    cobra.MinimumNArgs(1),
		Long: `Sync reads revisions from one or more manifest files or directories and
reconciles them into the catalog:

• new entities are created with rendered defaults
• a newer latest revision archives the current one and replaces it
• older revisions are written straight into the archive
• hand-edited fields are never overwritten

Options for the generator are read from the "generators" section of the
config file; the flags below override them for a single run.`,
		Example: `  catalogsync sync asyncapi.yaml                 # Reconcile one manifest
  catalogsync sync manifests/ --dry-run           # Preview every action
  catalogsync sync orders.yaml --generator orders # Use the "orders" generator options
  catalogsync sync events.json --latest-only      # Skip non-latest revisions`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Execute(cmd.Context(), app, cmd.OutOrStdout(), flags, args)
		},
	}

	cmd.Flags().BoolVar(&flags.DryRun, "dry-run", false, "report actions without writing to the catalog")
	cmd.Flags().StringVarP(&flags.Generator, "generator", "g", DefaultGenerator, "generator name used for options and provenance")
	cmd.Flags().BoolVar(&flags.ForwardOnly, "forward-only", false, "let newer non-latest revisions supersede")
	cmd.Flags().BoolVar(&flags.LatestOnly, "latest-only", false, "skip revisions that are not flagged latest")
	cmd.Flags().BoolVar(&flags.NoPreserveMessages, "no-preserve-messages", false, "replace sends/receives on supersede instead of merging")
	cmd.Flags().StringVar(&flags.Summary, "summary", "", "summary applied to newly created entities")

	return cmd
}

// Execute runs a sync over the manifest paths and prints the report.
func Execute(ctx context.Context, app appcontext.Interface, w io.Writer, flags *Flags, paths []string) error {
	gen := app.Generator(flags.Generator)
	if flags.ForwardOnly {
		gen.ForwardOnly = true
	}
	if flags.LatestOnly {
		gen.IncludeAllVersions = false
	}
	if flags.NoPreserveMessages {
		gen.PreserveExistingMessages = false
	}
	if flags.Summary != "" {
		gen.Summary = flags.Summary
	}

	cs, err := app.CatalogSyncWithOptions(
		catalogsync.WithGenerator(gen),
		catalogsync.WithDryRun(flags.DryRun),
	)
	if err != nil {
		return err
	}

	src := manifest.New(
		manifest.WithPaths(paths...),
		manifest.WithID(sources.ID(flags.Generator)),
	)
	result, err := cs.Sync(ctx, src)
	if result != nil {
		format := output.DetectFormat(app.OutputFormat())
		if perr := output.Print(w, format, result, output.ResultToTableData(result)); perr != nil {
			return perr
		}
	}
	if err != nil {
		return err
	}

	app.Logger().Info().
		Int("created", result.Metadata.Stats.Created).
		Int("superseded", result.Metadata.Stats.Superseded).
		Int("failed", result.Metadata.Stats.Failed).
		Bool("dry_run", flags.DryRun).
		Msg(result.Summary())

	if !result.IsSuccess() {
		return cmdutil.ErrFailures
	}
	return nil
}
