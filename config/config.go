// Package config loads cellfmt settings from a YAML file, the environment and
// command-line flags.
//
// Values are resolved by viper in the usual order: flags bound with
// BindPFlag, then CELLFMT_* environment variables, then cellfmt.yaml, then
// defaults. Nested keys map to environment variables with "." replaced by
// "_", e.g. server.addr is CELLFMT_SERVER_ADDR.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rickchristie/cellfmt/backends"
	"github.com/rickchristie/cellfmt/notebook"
	"github.com/rickchristie/cellfmt/server"
	"github.com/spf13/viper"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "CELLFMT"

// FileName is the config file looked up when none is given.
const FileName = "cellfmt"

// Config is the full cellfmt configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
	Formatters FormattersConfig `mapstructure:"formatters" yaml:"formatters"`
	LLM        LLMConfig        `mapstructure:"llm" yaml:"llm"`

	// DefaultFormatter maps a language to the formatter chain used when none
	// is named, e.g. python: [isort, black]. "noop" disables a language.
	DefaultFormatter map[string][]string `mapstructure:"default_formatter" yaml:"default_formatter"`

	// GroupImports consolidates imports across cells on every request.
	GroupImports bool `mapstructure:"group_imports" yaml:"group_imports"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr               string        `mapstructure:"addr" yaml:"addr"`
	BasePath           string        `mapstructure:"base_path" yaml:"base_path"`
	CheckPluginVersion bool          `mapstructure:"check_plugin_version" yaml:"check_plugin_version"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	BodyLimit          string        `mapstructure:"body_limit" yaml:"body_limit"`
	Metrics            bool          `mapstructure:"metrics" yaml:"metrics"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// Level is a zap level name: debug, info, warn or error.
	Level string `mapstructure:"level" yaml:"level"`

	// Format is "json" or "console".
	Format string `mapstructure:"format" yaml:"format"`
}

// FormattersConfig selects and configures formatter backends.
type FormattersConfig struct {
	Disabled []string                 `mapstructure:"disabled" yaml:"disabled"`
	Paths    map[string]string        `mapstructure:"paths" yaml:"paths"`
	Env      []string                 `mapstructure:"env" yaml:"env"`
	Commands []backends.CommandConfig `mapstructure:"commands" yaml:"commands"`
}

// LLMConfig configures the OpenAI-compatible model behind the "llm"
// formatter. The formatter is registered only when Token is set.
type LLMConfig struct {
	Token   string `mapstructure:"token" yaml:"token"`
	Model   string `mapstructure:"model" yaml:"model"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	def := server.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Addr:            def.Addr,
			BasePath:        def.BasePath,
			ShutdownTimeout: def.ShutdownTimeout,
			BodyLimit:       def.BodyLimit,
			Metrics:         true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		LLM: LLMConfig{
			Model: "gpt-4o-mini",
		},
		DefaultFormatter: notebook.BuiltinDefaults(),
	}
}

// SetDefaults registers every default on v. Keys must be known to viper for
// environment variables to override them during Unmarshal.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.base_path", d.Server.BasePath)
	v.SetDefault("server.check_plugin_version", d.Server.CheckPluginVersion)
	v.SetDefault("server.request_timeout", d.Server.RequestTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.body_limit", d.Server.BodyLimit)
	v.SetDefault("server.metrics", d.Server.Metrics)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("formatters.disabled", []string{})
	v.SetDefault("formatters.env", []string{})
	v.SetDefault("llm.token", "")
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.base_url", "")
	v.SetDefault("group_imports", false)
	for lang, chain := range d.DefaultFormatter {
		v.SetDefault("default_formatter."+lang, chain)
	}
}

// Load reads the configuration into a new Config. file names an explicit
// config file; when empty, cellfmt.yaml is looked up in the working
// directory and the user config directory, and a missing file is not an
// error.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "cellfmt"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values viper cannot check by type alone.
func (c *Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log.level: %w", err)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format must be json or console, got %q", c.Log.Format)
	}

	seen := map[string]bool{}
	for i, cmd := range c.Formatters.Commands {
		if cmd.Name == "" {
			return fmt.Errorf("config: formatters.commands[%d]: name is required", i)
		}
		if len(cmd.Argv) == 0 {
			return fmt.Errorf("config: formatters.commands[%d] (%s): argv is required", i, cmd.Name)
		}
		if seen[cmd.Name] {
			return fmt.Errorf("config: formatters.commands[%d]: duplicate name %q", i, cmd.Name)
		}
		seen[cmd.Name] = true
	}
	return nil
}

// Logger builds the zap logger described by Log.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("config: log.level: %w", err)
	}

	zc := zap.NewProductionConfig()
	if c.Log.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// ServerConfig returns the HTTP server settings.
func (c *Config) ServerConfig() server.Config {
	return server.Config{
		Addr:               c.Server.Addr,
		BasePath:           c.Server.BasePath,
		CheckPluginVersion: c.Server.CheckPluginVersion,
		RequestTimeout:     c.Server.RequestTimeout,
		ShutdownTimeout:    c.Server.ShutdownTimeout,
		BodyLimit:          c.Server.BodyLimit,
		GroupImports:       c.GroupImports,
	}
}

// BackendConfig returns the formatter table settings. It creates the OpenAI
// client when llm.token is set.
func (c *Config) BackendConfig(logger *zap.Logger) (backends.Config, error) {
	cfg := backends.Config{
		Paths:    c.Formatters.Paths,
		Env:      c.Formatters.Env,
		Disabled: c.Formatters.Disabled,
		Commands: c.Formatters.Commands,
		Logger:   logger,
	}
	if c.LLM.Token == "" {
		return cfg, nil
	}

	opts := []openai.Option{
		openai.WithToken(c.LLM.Token),
		openai.WithModel(c.LLM.Model),
	}
	if c.LLM.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(c.LLM.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return cfg, fmt.Errorf("failed to create LLM client: %w", err)
	}
	cfg.Model = llm
	cfg.ModelName = c.LLM.Model
	return cfg, nil
}

// Defaults returns the per-language default formatter chains.
func (c *Config) Defaults() notebook.DefaultFormatters {
	return notebook.DefaultFormatters(c.DefaultFormatter)
}
