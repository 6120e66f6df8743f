package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/MrEthical07/goGuard/internal/server"
	"github.com/MrEthical07/goGuard/metrics/export/prometheus"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the check, success and admin endpoints over HTTP",
	Long: `Start the HTTP server.

Counters live in memory unless redis.addr (or GOGUARD_REDIS_ADDR) is set.
Use "mini" as the address to run against an embedded miniredis.
Admin endpoints are mounted only when admin.secret is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		cfg, err := engineConfig()
		if err != nil {
			return err
		}
		for _, w := range cfg.Lint() {
			logger.Warn("configuration lint", zap.String("code", w.Code), zap.String("severity", w.Severity.String()), zap.String("message", w.Message))
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		engine, res, err := buildEngine(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer res.Close()
		defer engine.Close()

		tokens, err := tokenManager()
		if err != nil {
			return err
		}

		opts := server.Options{
			Addr:   viper.GetString("server.addr"),
			Tokens: tokens,
			Logger: logger,
		}
		if cfg.Metrics.Enabled {
			h, err := prometheus.Handler(engine)
			if err != nil {
				return err
			}
			opts.Metrics = h
		}
		srv := server.New(engine, opts)

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), viper.GetDuration("server.shutdown_timeout"))
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
			return err
		}
		logger.Info("server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	serveCmd.Flags().String("redis", "", `redis address, or "mini" for embedded miniredis`)
	_ = viper.BindPFlag("redis.addr", serveCmd.Flags().Lookup("redis"))
}
