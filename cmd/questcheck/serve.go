package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/cgast/questcheck/internal/config"
	"github.com/cgast/questcheck/internal/server"
	"github.com/cgast/questcheck/internal/source"
	"github.com/cgast/questcheck/pkg/protocol"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr  string
		watch bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP grading API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			svc, err := a.newService(ctx, reg)
			if err != nil {
				return err
			}
			defer svc.Close()

			if watch || a.cfg.Catalog.Watch {
				if a.cfg.Catalog.Source() != config.SourceFile {
					return fmt.Errorf("--watch needs a file catalog (--catalog or catalog.path)")
				}
				w, err := source.NewWatcher(a.cfg.Catalog.Path, a.logger)
				if err != nil {
					return err
				}
				go w.Run(ctx, svc.grader.Reload)
			}

			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			srv := server.New(svc.grader, svc.bus,
				server.WithLogger(a.logger),
				server.WithGatherer(reg),
				server.WithMaxBodyBytes(a.cfg.Server.MaxSourceBytes()),
			)
			return srv.Run(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload the catalog file when it changes")
	return cmd
}

func newRPCCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rpc",
		Short: "Serve JSON-RPC 2.0 over stdin/stdout",
		Long: `Reads one JSON-RPC request per line from stdin and writes one response
per line to stdout. Methods: catalog.info, missions.list, missions.get,
mission.validate, attempts.list, path.next.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, err := a.newService(ctx, nil)
			if err != nil {
				return err
			}
			defer svc.Close()

			h := protocol.NewHandler()
			svc.grader.Register(h)
			err = h.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
