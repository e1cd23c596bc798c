package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	chiTransport "github.com/kailas-cloud/catalogsearch/internal/transport/chi"
	"github.com/kailas-cloud/catalogsearch/internal/version"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), flags)
		},
	}
}

func runServe(ctx context.Context, flags *rootFlags) error {
	a, err := newApp(ctx, flags.env)
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.logger

	logger.Info("Starting catalogsearch API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", a.env),
		zap.Int("http_port", a.cfg.HTTP.Port),
		zap.String("index_backend", a.backend),
		zap.String("llm_mode", a.cfg.LLM.Mode),
	)

	if err := a.checkSnapshot(ctx); err != nil {
		logger.Error("Index snapshot rejected", zap.Error(err))
		return err
	}
	if _, err := a.categories.EnsureLoaded(ctx); err != nil {
		logger.Warn("Categories not loaded, category matching disabled until reload", zap.Error(err))
	}

	server := chiTransport.NewServer(chiTransport.Deps{
		Search:     a.search,
		Chat:       a.chat,
		Health:     a.health,
		Index:      a.snapshots,
		Categories: a.categories,
		Version:    version.Version,
	}, logger)

	addr := fmt.Sprintf(":%d", a.cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.Routes(a.cfg.Auth.APIKeys),
		ReadTimeout:       time.Duration(a.cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(a.cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(a.cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown; SIGHUP reloads the snapshot in place
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(quit)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	for {
		select {
		case err, ok := <-serveErr:
			if ok {
				logger.Error("HTTP server error", zap.Error(err))
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		case sig := <-quit:
			if sig == syscall.SIGHUP {
				logger.Info("Received SIGHUP, reloading snapshot")
				a.reload(ctx)
				continue
			}
			logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
			return shutdown(srv, time.Duration(a.cfg.HTTP.ShutdownSec)*time.Second, logger)
		}
	}
}

func shutdown(srv *http.Server, timeout time.Duration, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("Server stopped gracefully")
	return nil
}
