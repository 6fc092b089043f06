package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"db-premigrate/internal/config"
	"db-premigrate/internal/handlers"

	"github.com/spf13/cobra"
)

var (
	watchSchedule string
	watchPort     string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Check the database on a schedule and serve the results over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := setup(func(cfg *config.AppConfig) {
			if cmd.Flags().Changed("schedule") {
				cfg.Watch.Schedule = watchSchedule
			}
			if cmd.Flags().Changed("port") {
				cfg.Watch.Port = watchPort
			}
		})
		if err != nil {
			return err
		}
		defer application.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := application.WatchService.Start(); err != nil {
			return err
		}

		mux := http.NewServeMux()
		handlers.NewHandler(application.WatchService).Routes(mux)
		server := &http.Server{
			Addr:              ":" + application.Config.Watch.Port,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			application.Logger.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()

		application.Logger.Info("serving watch status", "port", application.Config.Watch.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchSchedule, "schedule", "", "cron schedule for checks")
	watchCmd.Flags().StringVar(&watchPort, "port", "", "HTTP port")
}
