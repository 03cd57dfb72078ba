package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rickchristie/cellfmt"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newListCmd(c *cli) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List formatters and whether their tools are installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			infos := c.reg.List(cmd.Context(), false)
			return writeList(cmd.OutOrStdout(), output, infos)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json or yaml")
	return cmd
}

func writeList(w io.Writer, output string, infos []cellfmt.FormatterInfo) error {
	switch output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(cellfmt.NewFormatterList(infos))
	case "yaml":
		return writeYAML(w, infos)
	case "text":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tSTATUS\tLABEL")
		for _, info := range infos {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", info.Name, info.Status, info.Label)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format %q", output)
	}
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
