package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/rickchristie/cellfmt"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newBatchCmd(c *cli) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run one format request read from standard input",
		Long: `Run one format request read from standard input.

The request has the same shape as the body of POST /format and may be
written in JSON or YAML:

  formatter: black
  notebook: true
  code:
    - "x=1"
    - "%%timeit\ny=2"
  options:
    line_length: 100`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := decodeBatch(cmd.InOrStdin())
			if err != nil {
				return err
			}
			if c.cfg.GroupImports {
				req.GroupImports = true
			}
			resp, err := c.reg.FormatBatch(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeBatch(cmd.OutOrStdout(), output, resp)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "json", "output format: json or yaml")
	return cmd
}

// decodeBatch reads a request in YAML, which also accepts JSON.
func decodeBatch(r io.Reader) (*cellfmt.BatchRequest, error) {
	var req cellfmt.BatchRequest
	if err := yaml.NewDecoder(r).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("decode request: empty input")
		}
		return nil, fmt.Errorf("decode request: %w", err)
	}
	return &req, nil
}

func writeBatch(w io.Writer, output string, resp *cellfmt.BatchResponse) error {
	switch output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(resp)
	case "yaml":
		return writeYAML(w, resp)
	default:
		return fmt.Errorf("unknown output format %q", output)
	}
}
