package main

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/gordian-engine/gcircle/rc/rchttp"
	"github.com/gordian-engine/gcircle/rc/rcledger"
	"github.com/gordian-engine/gcircle/rc/rcledger/rcbadger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve circles over HTTP from a local ledger",
		Args:  cobra.NoArgs,

		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadServeConfig(configPath)
			if err != nil {
				return err
			}
			if err := applyServeFlags(cmd, &cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			log, err := newLogger(cmd, cfg.LogLevel)
			if err != nil {
				return err
			}
			return runServe(cmd, log, cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "path to a YAML config file")
	f.String("listen", "", "address to listen on")
	f.String("data-dir", "", "ledger database directory")
	f.Bool("in-memory", false, "keep the ledger in memory only")
	f.String("predicate", "", "ledger acceptance rules (full or minimal)")
	f.Int("max-retries", 0, "retries when a concurrent commit supersedes a request")
	f.Bool("metrics", true, "expose Prometheus metrics at /metrics")

	return cmd
}

// applyServeFlags overrides cfg with every flag the user set explicitly.
func applyServeFlags(cmd *cobra.Command, cfg *ServeConfig) error {
	f := cmd.Flags()
	var err error
	if f.Changed("listen") {
		cfg.Listen, err = f.GetString("listen")
	}
	if err == nil && f.Changed("data-dir") {
		cfg.DataDir, err = f.GetString("data-dir")
	}
	if err == nil && f.Changed("in-memory") {
		cfg.InMemory, err = f.GetBool("in-memory")
	}
	if err == nil && f.Changed("predicate") {
		cfg.Predicate, err = f.GetString("predicate")
	}
	if err == nil && f.Changed("max-retries") {
		cfg.MaxRetries, err = f.GetInt("max-retries")
	}
	if err == nil && f.Changed("metrics") {
		cfg.Metrics, err = f.GetBool("metrics")
	}
	if err == nil && f.Changed("log-level") {
		cfg.LogLevel, err = f.GetString("log-level")
	}
	return err
}

func runServe(cmd *cobra.Command, log *slog.Logger, cfg ServeConfig) error {
	ctx := cmd.Context()

	bcfg := rcbadger.DefaultConfig(cfg.DataDir)
	if cfg.InMemory {
		bcfg = rcbadger.InMemoryConfig()
	}
	bcfg.Logger = log.With("sys", "badger")
	ledger, err := rcbadger.Open(log.With("sys", "ledger"), bcfg, cfg.LedgerPredicate())
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer func() {
		if err := ledger.Close(); err != nil {
			log.Warn("Error closing ledger", "err", err)
		}
	}()

	ccfg := rcledger.DefaultClientConfig(ledger)
	ccfg.MaxRetries = cfg.MaxRetries

	scfg := rchttp.ServerConfig{Historian: ledger}
	if cfg.Metrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		ccfg.Metrics = rcledger.NewMetrics(reg)
		scfg.Gatherer = reg
	}
	scfg.Client = rcledger.NewClient(log.With("sys", "client"), ccfg)

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Listen, err)
	}
	scfg.Listener = ln

	log.Info("Serving circles", "addr", ln.Addr().String(), "in_memory", cfg.InMemory)
	srv := rchttp.NewServer(ctx, log.With("sys", "http"), scfg)
	srv.Wait()

	log.Info("Server stopped")
	return nil
}
