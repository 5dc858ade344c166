package root

import (
	"github.com/spf13/cobra"
)

// rootCmd is the base command for the Lumina admin CLI. Subcommands (company,
// backup, auth) are attached here.
var rootCmd = &cobra.Command{
	Use:           "lumina",
	Short:         "Lumina admin CLI",
	Long:          "Administrative utilities for Lumina (company provisioning, backups, dev tokens).",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// Root returns the mutable root command for wiring from subpackages.
func Root() *cobra.Command {
	return rootCmd
}
