package app

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/catalogsync/cmd/catalogsync/cmd/provenance"
	"github.com/agentstation/catalogsync/cmd/catalogsync/cmd/repair"
	"github.com/agentstation/catalogsync/cmd/catalogsync/cmd/show"
	"github.com/agentstation/catalogsync/cmd/catalogsync/cmd/sync"
	"github.com/agentstation/catalogsync/cmd/catalogsync/cmd/verify"
	"github.com/agentstation/catalogsync/cmd/catalogsync/cmd/versions"
)

// registerCommands registers all subcommands with the root command.
func (a *App) registerCommands(rootCmd *cobra.Command) {
	// Core commands
	rootCmd.AddCommand(sync.NewCommand(a))
	rootCmd.AddCommand(versions.NewCommand(a))
	rootCmd.AddCommand(show.NewCommand(a))

	// Management commands
	rootCmd.AddCommand(repair.NewCommand(a))
	rootCmd.AddCommand(verify.NewCommand(a))
	rootCmd.AddCommand(provenance.NewCommand(a))

	// Utility commands
	rootCmd.AddCommand(a.newVersionCommand())
}

// newVersionCommand creates the version command.
func (a *App) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("catalogsync %s\n", a.version)
			if a.config.Verbose {
				cmd.Printf("  commit:   %s\n", a.commit)
				cmd.Printf("  built:    %s\n", a.date)
				cmd.Printf("  built by: %s\n", a.builtBy)
			}
		},
	}
}
