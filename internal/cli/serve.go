package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
)

func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			cfg := a.Config

			var wg sync.WaitGroup
			if cfg.Outbox.Embedded {
				broker, err := a.Broker(ctx)
				if err != nil {
					return err
				}
				processor, cleanup, err := a.Workers(broker)
				if err != nil {
					return err
				}
				wg.Add(2)
				go func() { defer wg.Done(); processor.Start(ctx) }()
				go func() { defer wg.Done(); cleanup.Start(ctx) }()
			}

			r, err := a.Router()
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
				Handler:        r.Engine(),
				ReadTimeout:    cfg.Server.ReadTimeout,
				WriteTimeout:   cfg.Server.WriteTimeout,
				MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
			}

			serveErr := make(chan error, 1)
			go func() {
				a.Logger.Info("starting server", "addr", srv.Addr, "storage", cfg.Storage.Driver)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			select {
			case err := <-serveErr:
				if err != nil {
					stop()
					wg.Wait()
					return fmt.Errorf("server failed: %w", err)
				}
			case <-ctx.Done():
			}

			a.Logger.Info("shutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server forced to shutdown: %w", err)
			}
			wg.Wait()

			a.Logger.Info("server exited properly")
			return nil
		},
	}
}
