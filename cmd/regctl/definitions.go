package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// definition mirrors the server's definition response shape.
type definition struct {
	ID            string         `json:"id"`
	Key           string         `json:"key"`
	Version       string         `json:"version"`
	Status        string         `json:"status"`
	SchemaVersion string         `json:"schemaVersion"`
	Body          map[string]any `json:"body"`
	Checksum      string         `json:"checksum"`
	CreatedBy     string         `json:"createdBy"`
	CreatedAt     string         `json:"createdAt"`
	PublishedAt   string         `json:"publishedAt,omitempty"`
}

type publishResult struct {
	Key         string `json:"key"`
	Version     string `json:"version"`
	Status      string `json:"status"`
	Checksum    string `json:"checksum"`
	PublishedAt string `json:"publishedAt"`
}

var (
	draftBodyFile    string
	draftSchemaVer   string
	includePublished bool
)

var wizardsCmd = newDefinitionCmd("wizards", "wizard")
var pagesCmd = newDefinitionCmd("pages", "page")

// newDefinitionCmd builds the command tree for one definition kind. Wizards
// and pages expose the same operations against different API prefixes.
func newDefinitionCmd(use, kind string) *cobra.Command {
	apiPrefix := "/api/v1/" + use

	cmd := &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("Manage %s definitions", kind),
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("List %s definitions", kind),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := apiPrefix
			if includePublished {
				path += "?include_published=true"
			}
			var defs []definition
			if err := newClient().getJSON(path, &defs); err != nil {
				return err
			}
			return printDefinitions(defs)
		},
	}
	listCmd.Flags().BoolVar(&includePublished, "published", false, "Include latest published versions alongside drafts")

	createCmd := &cobra.Command{
		Use:   "create <key>",
		Short: fmt.Sprintf("Create a %s draft from a JSON body file", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readBodyFile(draftBodyFile)
			if err != nil {
				return err
			}
			req := map[string]any{"key": args[0], "body": body}
			if draftSchemaVer != "" {
				req["schemaVersion"] = draftSchemaVer
			}
			if actor != "" {
				req["createdBy"] = actor
			}
			var def definition
			if err := newClient().postJSON(apiPrefix, req, &def); err != nil {
				return err
			}
			return printDefinitions([]definition{def})
		},
	}
	createCmd.Flags().StringVarP(&draftBodyFile, "file", "f", "", "Path to JSON body file (required)")
	createCmd.Flags().StringVar(&draftSchemaVer, "schema-version", "", "Schema version to validate against on publish")
	_ = createCmd.MarkFlagRequired("file")

	updateCmd := &cobra.Command{
		Use:   "update <key>",
		Short: fmt.Sprintf("Replace the %s draft body from a JSON file", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readBodyFile(draftBodyFile)
			if err != nil {
				return err
			}
			req := map[string]any{"body": body}
			if actor != "" {
				req["createdBy"] = actor
			}
			var def definition
			if err := newClient().putJSON(apiPrefix+"/"+args[0]+"/draft", req, &def); err != nil {
				return err
			}
			return printDefinitions([]definition{def})
		},
	}
	updateCmd.Flags().StringVarP(&draftBodyFile, "file", "f", "", "Path to JSON body file (required)")
	_ = updateCmd.MarkFlagRequired("file")

	getCmd := &cobra.Command{
		Use:   "get <key> [version]",
		Short: fmt.Sprintf("Get a %s: the draft, a version, or latest published", kind),
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := apiPrefix + "/" + args[0] + "/draft"
			if len(args) == 2 {
				if args[1] == "latest" {
					path = apiPrefix + "/" + args[0] + "/latest"
				} else {
					path = apiPrefix + "/" + args[0] + "/versions/" + args[1]
				}
			}
			var def definition
			if err := newClient().getJSON(path, &def); err != nil {
				return err
			}
			if outputFmt == "table" {
				return printJSON(def)
			}
			return printOutput(def)
		},
	}

	versionsCmd := &cobra.Command{
		Use:   "versions <key>",
		Short: fmt.Sprintf("List all versions of a %s", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var defs []definition
			if err := newClient().getJSON(apiPrefix+"/"+args[0]+"/versions", &defs); err != nil {
				return err
			}
			return printDefinitions(defs)
		},
	}

	publishCmd := &cobra.Command{
		Use:   "publish <key>",
		Short: fmt.Sprintf("Publish the %s draft as the next immutable version", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result publishResult
			if err := newClient().postJSON(apiPrefix+"/"+args[0]+"/publish", nil, &result); err != nil {
				return err
			}
			if outputFmt == "table" {
				printTable(
					[]string{"Key", "Version", "Status", "Checksum"},
					[][]string{{result.Key, result.Version, result.Status, truncate(result.Checksum, 16)}},
				)
				return nil
			}
			return printOutput(result)
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <key>",
		Short: fmt.Sprintf("Delete the %s draft (published versions are kept)", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient().delete(apiPrefix + "/" + args[0] + "/draft"); err != nil {
				return err
			}
			fmt.Printf("draft %q deleted\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(listCmd, createCmd, updateCmd, getCmd, versionsCmd, publishCmd, deleteCmd)
	return cmd
}

func readBodyFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read body file: %w", err)
	}
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("parse body file: %w", err)
	}
	return body, nil
}

func printDefinitions(defs []definition) error {
	if outputFmt != "table" {
		return printOutput(defs)
	}
	rows := make([][]string, 0, len(defs))
	for _, d := range defs {
		rows = append(rows, []string{
			d.Key, d.Version, d.Status, d.SchemaVersion, truncate(d.Checksum, 16), d.CreatedBy,
		})
	}
	printTable([]string{"Key", "Version", "Status", "Schema", "Checksum", "Created By"}, rows)
	return nil
}
