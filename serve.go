package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/insightdelivered/recurring-detector/internal/api"
	"github.com/insightdelivered/recurring-detector/internal/config"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the detection API over HTTP",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}
		l := newLogger(cfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		p, err := buildPipeline(ctx, cfg, l)
		if err != nil {
			return err
		}
		h := &api.Handler{Pipeline: p, Version: version}
		app := h.NewApp()

		errc := make(chan error, 1)
		go func() {
			l.Info("starting server", "addr", cfg.Server.Addr)
			errc <- app.Listen(cfg.Server.Addr)
		}()

		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
		}

		l.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	},
}

func init() {
	flags := serveCmd.Flags()
	flags.String("addr", ":8080", "Listen address")
	flags.Float64("min-confidence", 0.5, "Minimum confidence of reported patterns")
	flags.String("classifier", "none", "Classifier provider: none, gemini")
	flags.String("model", "", "Classifier model")
}
