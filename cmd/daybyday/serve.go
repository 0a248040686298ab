package main

import (
	"context"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/ivlev/daybyday/internal/httpapi"
	"github.com/ivlev/daybyday/internal/pkg/shutdown"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP render API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig("json")
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.HTTP.Addr = addr
		}
		log := newLogger(cfg, "daybyday-api")
		ctx := cmd.Context()

		sm := shutdown.NewManager(log, 30*time.Second)
		svc, err := startServices(ctx, cfg, log, sm)
		if err != nil {
			sm.Shutdown()
			return err
		}

		server := &http.Server{
			Addr: cfg.HTTP.Addr,
			Handler: httpapi.NewRouter(httpapi.Deps{
				Renders:     svc.manager,
				Artifacts:   svc.store,
				Checks:      svc.checks,
				CORSOrigins: cfg.HTTP.CORSOrigins,
				Log:         log,
			}),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		}
		sm.Register("http-server", func(ctx context.Context) error {
			log.Info("shutting down HTTP server")
			return server.Shutdown(ctx)
		})

		errCh := make(chan error, 1)
		go func() {
			log.Info("HTTP server listening", "addr", server.Addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()

		waitCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := <-errCh; err != nil {
				log.LogError(ctx, "HTTP server failed", err)
				cancel()
			}
		}()

		sm.Wait(waitCtx)
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides http.addr)")
}
