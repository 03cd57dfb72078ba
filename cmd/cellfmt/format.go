package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/rickchristie/cellfmt"
	"github.com/rickchristie/cellfmt/notebook"
	"github.com/rickchristie/cellfmt/registry"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	errNotFormatted   = errors.New("some sources could not be formatted")
	errWouldReformat  = errors.New("some sources would be reformatted")
	errNoFormatter    = errors.New("no formatter configured")
	errStdinWithWrite = errors.New("cannot --write standard input")
)

type formatFlags struct {
	formatters   []string
	lang         string
	options      []string
	groupImports bool
	write        bool
	diff         bool
	check        bool
}

func newFormatCmd(c *cli) *cobra.Command {
	var flags formatFlags

	cmd := &cobra.Command{
		Use:   "format [file...]",
		Short: "Format notebooks and source files",
		Long: `Format notebooks and source files.

Notebooks (.ipynb) have every code cell formatted in notebook mode, with
magics and shell escapes preserved. Other files are formatted as a whole.
Without --formatter the chain configured for the detected language is used.
With no file, or "-", standard input is read.

Options are passed as key=value with YAML values, e.g. --option line_length=100.
Prefix the key with a formatter name to scope it: --option black.line_length=100.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.write && flags.diff {
				return errors.New("--write and --diff are mutually exclusive")
			}
			opts, err := parseOptions(flags.options)
			if err != nil {
				return err
			}
			r := &chainRunner{
				reg:          c.reg,
				defaults:     c.cfg.Defaults(),
				chain:        flags.formatters,
				options:      opts,
				groupImports: flags.groupImports || c.cfg.GroupImports,
			}
			if len(args) == 0 {
				args = []string{"-"}
			}
			return formatPaths(cmd.Context(), r, flags, args, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.StringSliceVarP(&flags.formatters, "formatter", "f", nil, "formatters to apply in order (default: per language)")
	f.StringVarP(&flags.lang, "lang", "l", "", "language of standard input or of files enry cannot detect")
	f.StringArrayVarP(&flags.options, "option", "O", nil, "formatter option as key=value, repeatable")
	f.BoolVar(&flags.groupImports, "group-imports", false, "move imports of all cells into the first cell with imports")
	f.BoolVarP(&flags.write, "write", "w", false, "write the result back to the file")
	f.BoolVarP(&flags.diff, "diff", "d", false, "print a unified diff instead of the result")
	f.BoolVar(&flags.check, "check", false, "exit non-zero if any file would change")
	return cmd
}

func formatPaths(
	ctx context.Context,
	r *chainRunner,
	flags formatFlags,
	paths []string,
	stdin io.Reader,
	stdout, stderr io.Writer,
) error {
	var failed, changedAny bool
	for _, path := range paths {
		name, content, mode, err := readSource(path, stdin)
		if err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", name, err)
			failed = true
			continue
		}

		lang := flags.lang
		if lang == "" {
			lang = notebook.Language(path, content)
		}
		out, cellErrs, err := r.formatSource(ctx, path, lang, content)
		if err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", name, err)
			failed = true
			continue
		}
		for _, ce := range cellErrs {
			fmt.Fprintf(stderr, "%s: %s\n", name, ce)
			failed = true
		}

		changed := !bytes.Equal(content, out)
		changedAny = changedAny || changed
		switch {
		case flags.check:
			if changed {
				fmt.Fprintf(stdout, "would reformat %s\n", name)
			}
		case flags.diff:
			if changed {
				io.WriteString(stdout, unifiedDiff(name, content, out))
			}
		case flags.write:
			if path == "-" {
				return errStdinWithWrite
			}
			if !changed {
				continue
			}
			if err := os.WriteFile(path, out, mode); err != nil {
				fmt.Fprintf(stderr, "%s: %v\n", name, err)
				failed = true
				continue
			}
			fmt.Fprintf(stderr, "reformatted %s\n", name)
		default:
			stdout.Write(out)
		}
	}

	switch {
	case failed:
		return errNotFormatted
	case flags.check && changedAny:
		return errWouldReformat
	}
	return nil
}

func readSource(path string, stdin io.Reader) (string, []byte, os.FileMode, error) {
	if path == "-" {
		content, err := io.ReadAll(stdin)
		return "<stdin>", content, 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return path, nil, 0, err
	}
	content, err := os.ReadFile(path)
	return path, content, info.Mode().Perm(), err
}

// cellError is a formatter failure on one cell. Cell is -1 for whole files.
type cellError struct {
	Cell      int
	Formatter string
	Message   string
}

func (e cellError) String() string {
	if e.Cell < 0 {
		return fmt.Sprintf("%s: %s", e.Formatter, e.Message)
	}
	return fmt.Sprintf("cell %d: %s: %s", e.Cell, e.Formatter, e.Message)
}

// chainRunner runs registry formatters one after another over the same cells.
// A cell that fails in one formatter keeps its last good code and still goes
// through the rest of the chain.
type chainRunner struct {
	reg          *registry.Registry
	defaults     notebook.DefaultFormatters
	chain        []string
	options      scopedOptions
	groupImports bool
}

func (r *chainRunner) chainFor(lang string) ([]string, error) {
	if len(r.chain) > 0 {
		return r.chain, nil
	}
	chain := r.defaults.For(lang)
	if len(chain) == 0 {
		if lang == "" {
			return nil, fmt.Errorf("%w: language not detected, use --lang or --formatter", errNoFormatter)
		}
		return nil, fmt.Errorf("%w for language %q", errNoFormatter, lang)
	}
	return chain, nil
}

// formatSource formats a notebook or a plain source file.
func (r *chainRunner) formatSource(ctx context.Context, path, lang string, content []byte) ([]byte, []cellError, error) {
	if !strings.EqualFold(filepath.Ext(path), ".ipynb") {
		chain, err := r.chainFor(lang)
		if err != nil {
			return nil, nil, err
		}
		cells, errs, err := r.formatCells(ctx, chain, []string{string(content)}, false)
		if err != nil {
			return nil, nil, err
		}
		for i := range errs {
			errs[i].Cell = -1
		}
		return []byte(cells[0]), errs, nil
	}

	nb, err := notebook.Parse(content)
	if err != nil {
		return nil, nil, err
	}
	chain, err := r.chainFor(nb.Language())
	if err != nil {
		return nil, nil, err
	}
	cells, errs, err := r.formatCells(ctx, chain, nb.CodeCells(), true)
	if err != nil {
		return nil, nil, err
	}
	if err := nb.SetCodeCells(cells); err != nil {
		return nil, nil, err
	}
	out, err := nb.Bytes()
	if err != nil {
		return nil, nil, err
	}
	return out, errs, nil
}

// formatCells runs every formatter in chain over cells. Resolution errors
// abort; per-cell failures are collected.
func (r *chainRunner) formatCells(ctx context.Context, chain, cells []string, nb bool) ([]string, []cellError, error) {
	out := append([]string(nil), cells...)
	var errs []cellError
	for _, name := range chain {
		resp, err := r.reg.FormatBatch(ctx, &cellfmt.BatchRequest{
			Formatter:    name,
			Notebook:     nb,
			Code:         out,
			Options:      r.options.For(name),
			UseCache:     true,
			GroupImports: r.groupImports,
		})
		if err != nil {
			return nil, nil, err
		}
		for i, res := range resp.Code {
			if !res.OK() {
				errs = append(errs, cellError{Cell: i, Formatter: name, Message: res.Message()})
				continue
			}
			out[i] = res.Text()
		}
	}
	return out, errs, nil
}

// scopedOptions holds options for every formatter under "" and options for
// a single formatter under its name.
type scopedOptions map[string]cellfmt.Options

// For returns the options passed to the named formatter, or nil.
func (s scopedOptions) For(name string) cellfmt.Options {
	if len(s[""]) == 0 && len(s[name]) == 0 {
		return nil
	}
	opts := cellfmt.Options{}
	for k, v := range s[""] {
		opts[k] = v
	}
	for k, v := range s[name] {
		opts[k] = v
	}
	return opts
}

// parseOptions parses key=value pairs. Values are YAML, so numbers, booleans,
// lists and maps keep their types: line_length=100, targets=[py38, py39].
func parseOptions(pairs []string) (scopedOptions, error) {
	opts := scopedOptions{}
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid option %q, want key=value", pair)
		}

		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		if value == nil {
			value = raw
		}

		scope := ""
		if name, rest, ok := strings.Cut(key, "."); ok {
			scope, key = name, rest
		}
		if opts[scope] == nil {
			opts[scope] = cellfmt.Options{}
		}
		opts[scope][key] = value
	}
	return opts, nil
}

func unifiedDiff(name string, before, after []byte) string {
	text, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        splitLines(string(before)),
		B:        splitLines(string(after)),
		FromFile: name,
		ToFile:   name + " (formatted)",
		Context:  3,
	})
	return text
}

func splitLines(s string) []string {
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if n := len(lines); n > 0 && !strings.HasSuffix(lines[n-1], "\n") {
		lines[n-1] += "\n"
	}
	return lines
}
