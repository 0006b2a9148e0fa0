package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"RiseScreener/internal/server"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduled screener and serve results over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			a, err := newApp(ctx, cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()
			logger := a.logger

			sched := a.sched
			if err := sched.RegisterDaily(a.cfg.Schedule.DailyCron); err != nil {
				return err
			}
			sched.Start()
			defer sched.Stop()

			if sched.Notifier != nil {
				go sched.Notifier.StartPolling(ctx, sched.HandleCommand)
				logger.Info().Msg("telegram polling started")
			}

			if os.Getenv("RUN_ON_START") == "true" {
				logger.Info().Msg("RUN_ON_START enabled, screening now")
				go func() {
					if _, err := sched.RunNow(ctx); err != nil {
						logger.Error().Err(err).Msg("startup run failed")
					}
				}()
			}

			srv := server.NewServer(a.cfg.Server.Addr, sched.Board, sched.Policy.MaxBucket, logger)
			errCh := make(chan error, 1)
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			logger.Info().Str("cron", a.cfg.Schedule.DailyCron).Msg("screener is running, press Ctrl+C to stop")

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			select {
			case <-sigCh:
				logger.Info().Msg("shutdown signal received, stopping")
			case err := <-errCh:
				return err
			}

			cancel()
			shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
			defer stop()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
