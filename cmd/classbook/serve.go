package main

import (
	"context"

	"github.com/spf13/cobra"

	httpserver "github.com/classbook/classbook/internal/interface/http"
	"github.com/classbook/classbook/internal/interface/http/handlers"
	"github.com/classbook/classbook/pkg/logger"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := httpserver.DefaultConfig()
			cfg.Host = a.cfg.HTTP.Host
			cfg.Port = a.cfg.HTTP.Port
			cfg.ReadTimeout = a.cfg.HTTP.ReadTimeout
			cfg.WriteTimeout = a.cfg.HTTP.WriteTimeout
			cfg.Version = a.cfg.App.Version
			if cmd.Flags().Changed("host") {
				cfg.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}

			health := handlers.NewCompositeHealthChecker(a.cfg.App.Version)
			health.AddCheck("store", handlers.NewStoreCheck(a.store))

			srv := httpserver.NewServer(cfg, httpserver.Dependencies{
				Tracker:       a.svc,
				Logger:        a.log,
				HealthChecker: health,
			})

			errCh := srv.StartAsync()
			select {
			case err := <-errCh:
				return err
			case <-cmd.Context().Done():
			}

			a.log.Info("shutdown signal received", logger.Duration("timeout", a.cfg.App.ShutdownTimeout))
			ctx, cancel := context.WithTimeout(context.Background(), a.cfg.App.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides HTTP_HOST)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides HTTP_PORT)")
	return cmd
}
