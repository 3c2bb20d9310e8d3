package main

import (
	"github.com/spf13/cobra"
)

var (
	serverURL string
	outputFmt string
	actor     string
)

var rootCmd = &cobra.Command{
	Use:   "regctl",
	Short: "CLI for the wizard definition registry",
	Long: `regctl manages versioned wizard and page definitions on a registry server.

Drafts are created and edited in place, then published as immutable versions.
Release channels point consumers at a specific published version per channel.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Registry server URL")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", "", "Acting principal recorded in audit events")

	rootCmd.AddCommand(wizardsCmd)
	rootCmd.AddCommand(pagesCmd)
	rootCmd.AddCommand(releasesCmd)
	rootCmd.AddCommand(healthCmd)
}
