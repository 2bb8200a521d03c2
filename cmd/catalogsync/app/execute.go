package app

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentstation/catalogsync/internal/cmd/cmdutil"
	"github.com/agentstation/catalogsync/internal/cmd/output"
)

// Execute runs the catalogsync CLI application with the given arguments.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// createRootCommand creates the root cobra command with all subcommands.
func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "catalogsync",
		Short:   "Event catalog reconciliation CLI",
		Version: a.version,
		Long: `Catalogsync keeps an event catalog in step with the systems it describes.

Sources such as AsyncAPI or OpenAPI generators emit revisions of domains,
services, channels and messages. Catalogsync merges them into a versioned
on-disk catalog: newer revisions archive older ones, older revisions land in
the archive, and fields edited by hand are never overwritten.`,
		PersistentPreRunE: a.setupCommand,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	rootCmd.AddGroup(&cobra.Group{
		ID:    "core",
		Title: "Core Commands:",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "management",
		Title: "Management Commands:",
	})

	rootCmd.PersistentFlags().StringVar(&a.config.ConfigFile, "config", "", "config file (default is $HOME/.catalogsync.yaml)")
	rootCmd.PersistentFlags().StringP("root", "r", "", "catalog root directory (env CATALOG_ROOT)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (shortcut for --log-level=debug)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output (shortcut for --log-level=warn)")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringP("format", "o", "", "output format: table, json, yaml")
	rootCmd.PersistentFlags().String("log-level", "", "log level: trace, debug, info, warn, error (overrides -v/-q)")

	rootCmd.SetVersionTemplate("catalogsync {{.Version}}\n")

	a.registerCommands(rootCmd)

	return rootCmd
}

// setupCommand is called before any command runs.
func (a *App) setupCommand(cmd *cobra.Command, _ []string) error {
	if cmd.Flags().Changed("config") {
		config, err := loadConfig(a.config.ConfigFile)
		if err != nil {
			return err
		}
		a.config = config
	}

	a.config.UpdateFromFlags(
		cmdutil.MustGetBool(cmd, "verbose"),
		cmdutil.MustGetBool(cmd, "quiet"),
		cmdutil.MustGetBool(cmd, "no-color"),
		cmdutil.MustGetString(cmd, "format"),
		cmdutil.MustGetString(cmd, "log-level"),
		cmdutil.MustGetString(cmd, "root"),
	)

	if _, err := output.ParseFormat(a.config.Format); err != nil {
		return err
	}

	// Reinitialize logger with updated config
	logger := NewLogger(a.config)
	a.logger = &logger

	return nil
}

// ExitOnError prints an error and exits with status 1.
// This is meant to be used in main.go for top-level error handling.
func ExitOnError(err error) {
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}
