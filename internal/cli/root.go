// Package cli implements the ledger command line.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/bread-credit-ledger/internal/config"
	interfaces "github.com/sheikh-saqib/bread-credit-ledger/internal/interfaces"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/logger"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/metrics"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/notify"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/service"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/storage"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Customer credit ledger for a bakery",
	Long: `ledger tracks customers buying on credit, their debts and payments,
and bread orders. It serves a JSON API and can export, import, reset and
verify the ledger from the command line.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a TOML config file (default $LEDGER_CONFIG)")
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app is everything a command needs, wired from configuration.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	store   interfaces.LedgerStore
	hub     *notify.Hub
	metrics *metrics.Metrics
	svc     *service.Service
}

func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, cfg, log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Backend, err)
	}

	a := &app{cfg: cfg, logger: log, store: store, hub: notify.NewHub(16)}
	var opts []service.Option
	if cfg.Metrics.Enabled {
		a.metrics = metrics.New()
		opts = append(opts, service.WithMetrics(a.metrics))
	}
	a.svc = service.New(store, a.hub, log, opts...)
	return a, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close store", zap.Error(err))
	}
	a.logger.Sync()
}
