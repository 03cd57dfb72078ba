package backends

import (
	"slices"

	"github.com/rickchristie/cellfmt"
	"github.com/rickchristie/cellfmt/registry"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
)

// CommandConfig declares a custom command-line formatter.
type CommandConfig struct {
	Name  string   `mapstructure:"name" yaml:"name"`
	Label string   `mapstructure:"label" yaml:"label"`
	Argv  []string `mapstructure:"argv" yaml:"argv"`
	// Lang selects the escaping pipeline: "python", "r" or "" for none.
	Lang string `mapstructure:"lang" yaml:"lang"`
}

// Config selects and configures the default formatter table.
type Config struct {
	// Paths overrides the executable per formatter name, e.g. {"black": "/opt/black"}.
	Paths map[string]string

	// Env is appended to every child process environment.
	Env []string

	// Disabled formatter names are not registered.
	Disabled []string

	// Commands are registered after the built-in formatters.
	Commands []CommandConfig

	// Model enables the "llm" formatter when set.
	Model     llms.Model
	ModelName string

	// Runner and LookPath replace process execution, mainly for tests.
	Runner   Runner
	LookPath func(string) (string, error)

	Logger *zap.Logger
}

func (c Config) process(name string) ProcessConfig {
	return ProcessConfig{
		Path:     c.Paths[name],
		Env:      c.Env,
		Runner:   c.Runner,
		LookPath: c.LookPath,
		Logger:   c.logger().With(zap.String("formatter", name)),
	}
}

func (c Config) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// Builtins returns the built-in formatters by name, in registration order.
func Builtins(cfg Config) []Named {
	named := []Named{
		{"black", Black(cfg.process("black"))},
		{"blue", Blue(cfg.process("blue"))},
		{"isort", Isort(cfg.process("isort"))},
		{"autopep8", Autopep8(cfg.process("autopep8"))},
		{"yapf", Yapf(cfg.process("yapf"))},
		{"ruff", Ruff(cfg.process("ruff"))},
		{"ruffformat", RuffFormat(cfg.process("ruffformat"))},
		{"styler", Styler(cfg.process("styler"))},
		{"formatR", FormatR(cfg.process("formatR"))},
		{"gofmt", NewGoFmt()},
	}
	if cfg.Model != nil {
		llm := NewLLM(cfg.Model).WithModelName(cfg.ModelName).WithLogger(cfg.logger().With(zap.String("formatter", "llm")))
		named = append(named, Named{"llm", LLMFormatter(llm)})
	}
	for _, c := range cfg.Commands {
		label := c.Label
		if label == "" {
			label = "Apply " + c.Name + " Formatter"
		}
		named = append(named, Named{c.Name, Command(label, c.Argv, c.Lang, cfg.process(c.Name))})
	}
	return named
}

// Named pairs a formatter with its registry name.
type Named struct {
	Name      string
	Formatter cellfmt.Formatter
}

// RegisterDefaults registers every built-in and configured formatter that is
// not disabled.
func RegisterDefaults(reg *registry.Registry, cfg Config) *registry.Registry {
	for _, n := range Builtins(cfg) {
		if slices.Contains(cfg.Disabled, n.Name) {
			continue
		}
		reg.Register(n.Name, n.Formatter)
	}
	return reg
}
