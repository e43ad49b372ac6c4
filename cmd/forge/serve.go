package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ShayCichocki/forge/internal/server"
)

const shutdownTimeout = 15 * time.Second

var (
	serveAddr    string
	serveRecover bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Serves the forge API under /v1 with the OpenAPI document at
/v1/openapi and Prometheus metrics at /metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.Close()

		if serveRecover {
			held, err := a.forge.RecoverInterrupted(ctx, a.cfg.Provisioning.InterruptedAfter)
			if err != nil {
				return fmt.Errorf("recover interrupted runs: %w", err)
			}
			if len(held) > 0 {
				a.log.Warn("interrupted provisioning runs put on hold", zap.Int("count", len(held)))
			}
		}

		handler, err := server.New(server.Config{
			Forge:   a.forge,
			Signals: a.signals,
			Logger:  a.log.Named("http"),
		})
		if err != nil {
			return err
		}

		addr := a.cfg.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}
		srv := &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			a.log.Info("listening",
				zap.String("addr", addr),
				zap.String("backend", a.client.Backend().Name()),
				zap.Bool("available", a.client.Available()),
			)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
		}

		a.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from server.addr)")
	serveCmd.Flags().BoolVar(&serveRecover, "recover", true, "Put interrupted provisioning runs on hold at startup")
}
