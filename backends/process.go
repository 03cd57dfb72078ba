// Package backends provides the concrete formatters behind the registry.
//
// Three kinds of backend exist:
//   - Process: an external tool fed through stdin/stdout (black, isort, ...)
//   - RScript: R packages reached by spawning a fresh Rscript per call
//   - in-process: go/format and LLM models
//
// Python and R backends are wrapped by the escaping pipeline for their
// language. GoFmt is not, since Go source has no notebook magics.
package backends

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/rickchristie/cellfmt"
	"go.uber.org/zap"
)

// StderrPolicy decides what a Process does with output on stderr.
type StderrPolicy int

const (
	// SoftFail treats any stderr output as failure and returns the original
	// code unchanged instead of partial output. A non-zero exit with an empty
	// stderr is still an error.
	SoftFail StderrPolicy = iota

	// ExitCode trusts the exit status: a non-zero exit is an error carrying
	// stderr, a zero exit with stderr returns the original code unchanged.
	ExitCode
)

// Invocation is one external command to run.
type Invocation struct {
	Path  string
	Args  []string
	Stdin string
	Env   []string
}

// Output is what a finished command produced.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes commands. The default runs them with os/exec; tests swap
// in a fake.
type Runner interface {
	// Run executes inv. A non-zero exit is reported in Output.ExitCode, not
	// as an error; the error is for commands that could not run at all.
	Run(ctx context.Context, inv Invocation) (Output, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, inv Invocation) (Output, error) {
	cmd := exec.CommandContext(ctx, inv.Path, inv.Args...)
	cmd.Stdin = strings.NewReader(inv.Stdin)
	if len(inv.Env) > 0 {
		cmd.Env = append(os.Environ(), inv.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		return out, nil
	}
	return out, err
}

// ExitError is returned when a tool exits with a non-zero status.
type ExitError struct {
	Tool   string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr != "" {
		return e.Stderr
	}
	return fmt.Sprintf("%s exited with status %d", e.Tool, e.Code)
}

// ProcessConfig holds the environment shared by process backends.
type ProcessConfig struct {
	// Path overrides the executable. Empty means look the tool up on PATH.
	Path string

	// Env is appended to the child's environment. The server's own
	// environment is never modified.
	Env []string

	// Runner executes commands. Defaults to ExecRunner.
	Runner Runner

	// LookPath resolves executables. Defaults to exec.LookPath.
	LookPath func(file string) (string, error)

	// Logger receives soft-failure warnings. Defaults to a no-op logger.
	Logger *zap.Logger
}

func (c ProcessConfig) withDefaults() ProcessConfig {
	if c.Runner == nil {
		c.Runner = ExecRunner{}
	}
	if c.LookPath == nil {
		c.LookPath = exec.LookPath
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// ArgsFunc translates request options into command-line arguments for the
// detected tool version ("" when unknown).
type ArgsFunc func(version string, opts cellfmt.Options) ([]string, error)

// ProcessSpec describes an external formatting tool.
type ProcessSpec struct {
	Label  string
	Binary string

	// VersionArgs are passed to probe the tool version, e.g. ["--version"].
	// Nil skips version probing.
	VersionArgs []string

	// Args builds the formatting command line. Code is always sent on stdin.
	Args ArgsFunc

	Policy StderrPolicy

	// CleanStderr turns the tool's stderr into an error message.
	CleanStderr func(stderr string) string

	// Schema describes accepted options as JSON Schema.
	Schema map[string]any
}

// Process formats code by piping it through an external tool.
type Process struct {
	spec ProcessSpec
	cfg  ProcessConfig

	mu      sync.RWMutex
	version string
}

// NewProcess creates a process backend.
func NewProcess(spec ProcessSpec, cfg ProcessConfig) *Process {
	return &Process{spec: spec, cfg: cfg.withDefaults()}
}

// Label implements cellfmt.Formatter.
func (p *Process) Label() string {
	return p.spec.Label
}

// OptionSchema implements cellfmt.OptionSchemaProvider.
func (p *Process) OptionSchema() map[string]any {
	return p.spec.Schema
}

// Version returns the tool version found by the last successful probe.
func (p *Process) Version() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.version
}

func (p *Process) path() (string, error) {
	name := p.spec.Binary
	if p.cfg.Path != "" {
		name = p.cfg.Path
	}
	return p.cfg.LookPath(name)
}

// Available looks the tool up and, when configured, runs its version probe.
// A missing executable is unavailable; a probe that fails to run or exits
// non-zero is a check error.
func (p *Process) Available(ctx context.Context) cellfmt.Availability {
	path, err := p.path()
	if err != nil {
		return cellfmt.Unavailable(fmt.Errorf("%s: %w", p.spec.Binary, err))
	}
	if p.spec.VersionArgs == nil {
		return cellfmt.Available()
	}

	out, err := p.cfg.Runner.Run(ctx, Invocation{Path: path, Args: p.spec.VersionArgs, Env: p.cfg.Env})
	if err != nil {
		return cellfmt.CheckFailed(fmt.Errorf("%s version probe: %w", p.spec.Binary, err))
	}
	if out.ExitCode != 0 {
		return cellfmt.CheckFailed(&ExitError{
			Tool:   p.spec.Binary,
			Code:   out.ExitCode,
			Stderr: strings.TrimSpace(out.Stderr),
		})
	}

	p.mu.Lock()
	p.version = ParseVersion(out.Stdout + "\n" + out.Stderr)
	p.mu.Unlock()
	return cellfmt.Available()
}

// Format implements cellfmt.Formatter.
func (p *Process) Format(ctx context.Context, code string, _ bool, opts cellfmt.Options) (string, error) {
	path, err := p.path()
	if err != nil {
		return "", fmt.Errorf("%s: %w", p.spec.Binary, err)
	}

	var args []string
	if p.spec.Args != nil {
		args, err = p.spec.Args(p.Version(), opts)
		if err != nil {
			return "", err
		}
	}

	out, err := p.cfg.Runner.Run(ctx, Invocation{Path: path, Args: args, Stdin: code, Env: p.cfg.Env})
	if err != nil {
		return "", fmt.Errorf("%s: %w", p.spec.Binary, err)
	}

	stderr := strings.TrimSpace(out.Stderr)
	switch {
	case p.spec.Policy == SoftFail && stderr != "":
		return p.unchanged(code, stderr), nil
	case out.ExitCode != 0:
		if p.spec.CleanStderr != nil {
			stderr = p.spec.CleanStderr(stderr)
		}
		return "", &ExitError{Tool: p.spec.Binary, Code: out.ExitCode, Stderr: stderr}
	case stderr != "":
		return p.unchanged(code, stderr), nil
	}
	return out.Stdout, nil
}

func (p *Process) unchanged(code, stderr string) string {
	p.cfg.Logger.Warn("formatter wrote to stderr, returning code unchanged",
		zap.String("tool", p.spec.Binary),
		zap.String("stderr", stderr))
	return code
}

var (
	_ cellfmt.Formatter            = (*Process)(nil)
	_ cellfmt.OptionSchemaProvider = (*Process)(nil)
)
