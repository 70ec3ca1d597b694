package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/bread-credit-ledger/internal/api"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/events/kafka"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/notify"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the ledger HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(a.cfg.Kafka.Brokers) > 0 {
		publisher, err := kafka.NewPublisher(a.cfg.Kafka)
		if err != nil {
			return err
		}
		defer publisher.Close()
		go notify.Relay(ctx, a.hub, publisher, a.logger)
		a.logger.Info("relaying data-changed events to kafka",
			zap.Strings("brokers", a.cfg.Kafka.Brokers),
			zap.String("topic", a.cfg.Kafka.Topic),
		)
	}

	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr(),
		Handler:           api.NewServer(a.svc, a.hub, a.metrics, a.logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting server", zap.String("addr", srv.Addr), zap.String("backend", a.cfg.Storage.Backend))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
