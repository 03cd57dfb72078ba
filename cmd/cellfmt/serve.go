package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rickchristie/cellfmt/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JupyterLab code formatter HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			s := c.server()
			cfg := s.Config()
			fmt.Fprintf(cmd.OutOrStdout(), "cellfmt serving http://%s%s\n", cfg.Addr, cfg.BasePath)
			return s.Run(ctx)
		},
	}

	flags := cmd.Flags()
	flags.String("addr", "", "listen address (default 127.0.0.1:8765)")
	flags.String("base-path", "", "route prefix (default /jupyterlab_code_formatter)")
	flags.Bool("check-plugin-version", false, "reject requests from a mismatched frontend extension")
	mustBind(c.v, "server.addr", flags.Lookup("addr"))
	mustBind(c.v, "server.base_path", flags.Lookup("base-path"))
	mustBind(c.v, "server.check_plugin_version", flags.Lookup("check-plugin-version"))
	return cmd
}

func (c *cli) server() *server.Server {
	s := server.New(c.reg, c.cfg.ServerConfig()).WithLogger(c.logger)
	if c.cfg.Server.Metrics {
		s = s.WithMetrics(c.metrics.Registry())
	}

	// Probe once at startup so the first listing is served warm.
	for _, info := range c.reg.List(context.Background(), false) {
		c.logger.Info("formatter",
			zap.String("name", info.Name),
			zap.Bool("enabled", info.Enabled),
			zap.Stringer("status", info.Status))
	}
	return s
}
