package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/ivlev/daybyday/internal/pkg/errors"
	"github.com/ivlev/daybyday/internal/pkg/shutdown"
	"github.com/ivlev/daybyday/internal/worker"
	"github.com/ivlev/daybyday/internal/worker/queue"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Render requests taken from the Redis queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig("json")
		if err != nil {
			return err
		}
		if cfg.Redis.Addr == "" {
			return errors.Configurationf("redis.addr is required for the worker")
		}
		log := newLogger(cfg, "daybyday-worker")

		sm := shutdown.NewManager(log, 30*time.Second)
		svc, err := startServices(cmd.Context(), cfg, log, sm)
		if err != nil {
			sm.Shutdown()
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		done := make(chan struct{})
		sm.Register("worker", func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})

		go func() {
			defer close(done)
			log.Info("worker started", "queue", cfg.Redis.Queue)
			_ = worker.Run(ctx, worker.Deps{
				Queue:   queue.NewRedisQueue(svc.rdb, cfg.Redis.Queue),
				Renders: svc.manager,
				Log:     log,
			})
		}()

		sm.Wait(cmd.Context())
		return nil
	},
}
