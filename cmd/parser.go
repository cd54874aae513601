package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"apiview/internal/errs"
	"apiview/internal/infrastructure/parser"
)

var parserCmd = &cobra.Command{
	Use:   "parser",
	Short: "Inspect the registered parsers",
}

var parserSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of YAML/TOML API descriptors",
	RunE: func(cmd *cobra.Command, _ []string) error {
		schema, err := parser.DescriptorSchema()
		if err != nil {
			return errs.Wrap(err, "build descriptor schema")
		}
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), string(schema)); err != nil {
			return errs.Wrap(err, "write schema output")
		}
		return nil
	},
}

var parserListCmd = &cobra.Command{
	Use:   "list",
	Short: "List parsers with their extensions and current versions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		registry, err := parser.NewDefaultRegistry(nil)
		if err != nil {
			return errs.Wrap(err, "build parser registry")
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		if _, err := fmt.Fprintln(w, "PARSER\tEXTENSIONS\tVERSION"); err != nil {
			return errs.Wrap(err, "write parser list")
		}
		for _, p := range registry.Parsers() {
			if _, err := fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name(), strings.Join(p.Extensions(), ","), p.VersionString()); err != nil {
				return errs.Wrap(err, "write parser list")
			}
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(parserCmd)
	parserCmd.AddCommand(parserSchemaCmd)
	parserCmd.AddCommand(parserListCmd)
}
