package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/rickchristie/cellfmt/registry"
	"github.com/spf13/cobra"
)

const (
	promptFirst    = ">>> "
	promptContinue = "... "
)

const replHelp = `Type a cell and finish it with an empty line.
Commands:
  :use NAME[,NAME...]   format with these formatters
  :lang LANG            use the default formatters for LANG
  :list                 list formatters
  :refresh              forget cached availability
  :quit                 leave (also Ctrl-D)`

func newReplCmd(c *cli) *cobra.Command {
	var formatters []string
	var lang string

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Format cells interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rl, err := readline.NewEx(&readline.Config{
				Prompt: promptFirst,
				Stdin:  io.NopCloser(cmd.InOrStdin()),
				Stdout: cmd.OutOrStdout(),
				Stderr: cmd.ErrOrStderr(),
			})
			if err != nil {
				return fmt.Errorf("failed to create readline: %w", err)
			}
			defer rl.Close()

			s := &replSession{
				runner: &chainRunner{
					reg:      c.reg,
					defaults: c.cfg.Defaults(),
					chain:    formatters,
				},
				reg:  c.reg,
				lang: lang,
				out:  cmd.OutOrStdout(),
			}
			fmt.Fprintln(s.out, replHelp)

			for {
				line, err := rl.Readline()
				if err != nil {
					if errors.Is(err, readline.ErrInterrupt) {
						s.reset()
						rl.SetPrompt(promptFirst)
						continue
					}
					if errors.Is(err, io.EOF) {
						s.flush(cmd.Context())
						return nil
					}
					return fmt.Errorf("failed to read input: %w", err)
				}
				if s.feed(cmd.Context(), line) {
					return nil
				}
				if s.pending() {
					rl.SetPrompt(promptContinue)
				} else {
					rl.SetPrompt(promptFirst)
				}
			}
		},
	}
	cmd.Flags().StringSliceVarP(&formatters, "formatter", "f", nil, "formatters to apply in order")
	cmd.Flags().StringVarP(&lang, "lang", "l", "python", "language whose default formatters are used")
	return cmd
}

// replSession collects lines into a cell and formats it when an empty line
// ends the cell.
type replSession struct {
	runner *chainRunner
	reg    *registry.Registry
	lang   string
	out    io.Writer
	lines  []string
}

func (s *replSession) pending() bool {
	return len(s.lines) > 0
}

func (s *replSession) reset() {
	s.lines = nil
}

// feed handles one input line and reports whether the session should end.
func (s *replSession) feed(ctx context.Context, line string) bool {
	if !s.pending() && strings.HasPrefix(line, ":") {
		return s.command(ctx, strings.Fields(line[1:]))
	}
	if strings.TrimSpace(line) == "" {
		s.flush(ctx)
		return false
	}
	s.lines = append(s.lines, line)
	return false
}

func (s *replSession) command(ctx context.Context, fields []string) bool {
	if len(fields) == 0 {
		fmt.Fprintln(s.out, replHelp)
		return false
	}
	switch fields[0] {
	case "quit", "q", "exit":
		return true
	case "use":
		if len(fields) < 2 {
			fmt.Fprintln(s.out, "usage: :use NAME[,NAME...]")
			return false
		}
		s.runner.chain = strings.Split(fields[1], ",")
		fmt.Fprintf(s.out, "using %s\n", strings.Join(s.runner.chain, ", "))
	case "lang":
		if len(fields) < 2 {
			fmt.Fprintln(s.out, "usage: :lang LANG")
			return false
		}
		s.lang = fields[1]
		s.runner.chain = nil
		fmt.Fprintf(s.out, "using %s defaults: %s\n", s.lang, strings.Join(s.runner.defaults.For(s.lang), ", "))
	case "list":
		if err := writeList(s.out, "text", s.reg.List(ctx, true)); err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
	case "refresh":
		s.reg.Invalidate()
		fmt.Fprintln(s.out, "availability cache cleared")
	default:
		fmt.Fprintf(s.out, "unknown command :%s\n", fields[0])
	}
	return false
}

// flush formats the pending cell in notebook mode and prints the result.
func (s *replSession) flush(ctx context.Context) {
	if !s.pending() {
		return
	}
	code := strings.Join(s.lines, "\n")
	s.reset()

	chain, err := s.runner.chainFor(s.lang)
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
		return
	}
	cells, errs, err := s.runner.formatCells(ctx, chain, []string{code}, true)
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
		return
	}
	for _, ce := range errs {
		fmt.Fprintf(s.out, "error: %s: %s\n", ce.Formatter, ce.Message)
	}
	fmt.Fprintln(s.out, cells[0])
}
