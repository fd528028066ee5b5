package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/entrylog/internal/db"
	"github.com/entrylog/internal/handler"
	"github.com/entrylog/internal/router"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	if err := a.cfg.ValidateServe(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	gin.SetMode(a.cfg.GinMode)

	gdb, err := a.openDB(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(gdb) }()

	api, err := handler.NewAPI(gdb, a.cfg, a.logger)
	if err != nil {
		return err
	}
	engine, err := router.SetupRouter(api, a.cfg, a.logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              a.cfg.ListenAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting HTTP server",
			zap.String("addr", a.cfg.ListenAddr),
			zap.String("database", a.cfg.DatabasePath),
			zap.String("env", a.cfg.Env),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	case <-ctx.Done():
		a.logger.Info("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("error during shutdown", zap.Error(err))
		return err
	}

	a.logger.Info("server stopped gracefully")
	return nil
}
