package main

import (
	"github.com/spf13/cobra"
)

// releasePointer mirrors the server's release pointer response shape.
type releasePointer struct {
	WizardKey     string `json:"wizardKey"`
	Channel       string `json:"channel"`
	WizardVersion string `json:"wizardVersion"`
	PointedBy     string `json:"pointedBy,omitempty"`
	UpdatedAt     string `json:"updatedAt"`
}

var releasesCmd = &cobra.Command{
	Use:   "releases",
	Short: "Manage release channel pointers",
}

var releaseChannelsCmd = &cobra.Command{
	Use:   "channels <wizard-key>",
	Short: "List release channels for a wizard",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var pointers []releasePointer
		if err := newClient().getJSON("/api/v1/releases/"+args[0]+"/channels", &pointers); err != nil {
			return err
		}
		return printPointers(pointers)
	},
}

var releaseResolveCmd = &cobra.Command{
	Use:   "resolve <wizard-key> <channel>",
	Short: "Resolve a channel to its pinned wizard version",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var pointer releasePointer
		if err := newClient().getJSON("/api/v1/releases/"+args[0]+"/channels/"+args[1], &pointer); err != nil {
			return err
		}
		return printPointers([]releasePointer{pointer})
	},
}

var releasePointCmd = &cobra.Command{
	Use:   "point <wizard-key> <channel> <version>",
	Short: "Point a channel at a published wizard version",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := map[string]any{"version": args[2]}
		if actor != "" {
			req["pointedBy"] = actor
		}
		var pointer releasePointer
		if err := newClient().putJSON("/api/v1/releases/"+args[0]+"/channels/"+args[1], req, &pointer); err != nil {
			return err
		}
		return printPointers([]releasePointer{pointer})
	},
}

func init() {
	releasesCmd.AddCommand(releaseChannelsCmd, releaseResolveCmd, releasePointCmd)
}

func printPointers(pointers []releasePointer) error {
	if outputFmt != "table" {
		return printOutput(pointers)
	}
	rows := make([][]string, 0, len(pointers))
	for _, p := range pointers {
		rows = append(rows, []string{p.WizardKey, p.Channel, p.WizardVersion, p.PointedBy, p.UpdatedAt})
	}
	printTable([]string{"Wizard", "Channel", "Version", "Pointed By", "Updated"}, rows)
	return nil
}
