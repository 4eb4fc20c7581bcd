package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"pairdb/internal/admin"
	"pairdb/internal/config"
	"pairdb/internal/logger"
	"pairdb/internal/metrics"
	"pairdb/internal/network"
	"pairdb/internal/storage"
	"pairdb/internal/transaction"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		quiet      bool
	)

	cmd := &cobra.Command{
		Use:          "pairdb <port>",
		Short:        "In-memory two-table store served over a line-based TCP protocol",
		Args:         requirePort,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := config.PortAddr(args[0])
			if err != nil {
				return err
			}
			cfg, err := config.Load(configPath, cmd.Flags())
			if err != nil {
				return err
			}
			cfg.ListenAddr = addr
			if quiet {
				cfg.LogLevel = "error"
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			closeLog, err := setupLogging(cfg)
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "Path to a config file (yaml, json or toml)")
	f.BoolVar(&quiet, "quiet", false, "Disable info logging (log only errors)")
	f.String("admin-addr", "", "Admin HTTP address; empty disables it")
	f.String("log-level", "info", "Log level: error, warn, info, debug")
	f.String("log-file", "", "Also append logs to this file")
	return cmd
}

// requirePort accepts exactly one argument and prints usage otherwise.
// SilenceUsage keeps runtime errors quiet, so arity errors print it here.
func requirePort(cmd *cobra.Command, args []string) error {
	if err := cobra.ExactArgs(1)(cmd, args); err != nil {
		cmd.PrintErr(cmd.UsageString())
		return err
	}
	return nil
}

// setupLogging points the logger at stdout and, when configured, a log file.
func setupLogging(cfg *config.Config) (func(), error) {
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	var w io.Writer = os.Stdout
	closeFn := func() {}
	if cfg.LogFile != "" {
		logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w = io.MultiWriter(os.Stdout, logFile)
		closeFn = func() { logFile.Close() }
	}
	logger.Setup(w)
	logger.SetLevel(level)
	return closeFn, nil
}

// serve runs the reactor, the TCP server and the optional admin server until
// ctx is cancelled or one of them fails.
func serve(ctx context.Context, cfg *config.Config) error {
	logger.Info("----------------------------------------")
	logger.Info("pairdb initializing...")

	store := storage.NewStore()
	store.OnCommand = metrics.ObserveCommand

	txMgr := transaction.NewManager(store, cfg.RequestQueue)
	txMgr.Start()
	defer txMgr.Stop()

	g, gctx := errgroup.WithContext(ctx)

	server := network.NewServer(cfg, txMgr)
	g.Go(func() error {
		return server.ListenAndServe(gctx)
	})

	if cfg.AdminAddr != "" {
		adminSrv := admin.NewServer(cfg.AdminAddr, txMgr)
		g.Go(func() error {
			return adminSrv.ListenAndServe(gctx)
		})
	}

	err := g.Wait()
	logger.Info("Shutting down...")
	return err
}
