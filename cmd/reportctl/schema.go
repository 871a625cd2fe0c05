// Package main provides the schema command.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reportdash/reportctl/internal/schema"
)

var schemaFormat string

func init() {
	schemaCmd.Flags().StringVarP(&schemaFormat, "format", "f", "json", "Output format: json or markdown")
}

// schemaCmd prints the command tree for tools and agents.
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the CLI command schema",
	Long: `Print every command and flag in machine-readable form.

Examples:
  reportctl schema
  reportctl schema --format markdown > REFERENCE.md`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := schema.GetCLISchema(cmd.Root(), version)
		switch schemaFormat {
		case "json":
			out, err := schema.ToJSON(s, true)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
		case "markdown", "md":
			fmt.Fprint(cmd.OutOrStdout(), schema.ToMarkdown(s))
		default:
			return fmt.Errorf("invalid format %q (expected json or markdown)", schemaFormat)
		}
		return nil
	},
}
