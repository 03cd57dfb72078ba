// Command cellfmt formats notebooks and source files, and serves the
// JupyterLab code formatter HTTP API.
//
//	cellfmt serve                      start the HTTP server
//	cellfmt list                       show formatters and their availability
//	cellfmt format notebook.ipynb      format every code cell of a notebook
//	cellfmt batch < request.yaml       run one batch request
//	cellfmt repl                       format snippets interactively
//	cellfmt version                    print the version
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/rickchristie/cellfmt"
	"github.com/rickchristie/cellfmt/backends"
	"github.com/rickchristie/cellfmt/config"
	"github.com/rickchristie/cellfmt/hooks"
	"github.com/rickchristie/cellfmt/registry"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// cli holds state shared by every subcommand.
type cli struct {
	v       *viper.Viper
	cfgFile string

	cfg    *config.Config
	logger *zap.Logger

	// backendConfig builds the formatter table settings. Tests replace it to
	// avoid spawning real tools.
	backendConfig func(*config.Config, *zap.Logger) (backends.Config, error)

	reg     *registry.Registry
	metrics *hooks.Metrics
}

func newCLI() *cli {
	return &cli{
		v: viper.New(),
		backendConfig: func(cfg *config.Config, logger *zap.Logger) (backends.Config, error) {
			return cfg.BackendConfig(logger)
		},
	}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "cellfmt",
		Short:         "Format notebook cells and source files with pluggable formatters",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// A missing .env file is fine.
			_ = godotenv.Load()
			return c.load()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.cfgFile, "config", "", "config file (default ./cellfmt.yaml)")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("log-format", "", "log format: json or console")
	mustBind(c.v, "log.level", flags.Lookup("log-level"))
	mustBind(c.v, "log.format", flags.Lookup("log-format"))

	root.AddCommand(
		newServeCmd(c),
		newListCmd(c),
		newFormatCmd(c),
		newBatchCmd(c),
		newReplCmd(c),
		newVersionCmd(),
	)
	return root
}

// load reads the configuration and builds the logger and the registry.
func (c *cli) load() error {
	cfg, err := config.Load(c.v, c.cfgFile)
	if err != nil {
		return err
	}
	logger, err := cfg.Logger()
	if err != nil {
		return err
	}
	bc, err := c.backendConfig(cfg, logger)
	if err != nil {
		return err
	}

	metrics := hooks.NewMetrics(hooks.DefaultMetricsConfig())
	hr := hooks.NewRegistry().
		Register(hooks.NewLogging(logger)).
		Register(metrics)
	reg := registry.New().
		WithLogger(logger).
		WithHooks(hr)

	c.cfg = cfg
	c.logger = logger
	c.metrics = metrics
	c.reg = backends.RegisterDefaults(reg, bc)
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the cellfmt version",
		Args:  cobra.NoArgs,
		// Skips config loading.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cellfmt %s\n", cellfmt.Version)
		},
	}
}

func mustBind(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	root := newRootCmd(newCLI())
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return err
	}
	return nil
}
