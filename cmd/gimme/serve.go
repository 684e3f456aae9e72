package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dormoron/gimme/config"
	"github.com/dormoron/gimme/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Address to listen on, overrides server.addr")
}

func runServe(cmd *cobra.Command, _ []string) error {
	path := configFile
	if path == "" {
		path = config.Discover(".")
	}
	cfg, settings, err := config.Load(path)
	if err != nil {
		return err
	}
	defer cfg.Close()
	if serveAddr != "" {
		settings.Server.Addr = serveAddr
	}

	logger := logging.New(os.Stderr, settings.Log)
	logger.Follow(cfg)

	a, err := newApp(settings, logger, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 2)
	go func() {
		serverErr <- a.server.Start(settings.Server.Addr)
	}()
	if a.admin != nil {
		go func() {
			logger.Info("admin listening", "addr", a.admin.Addr)
			if err := a.admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
	}

	select {
	case err = <-serverErr:
		logger.Error("server stopped", "error", err)
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), settings.Server.ShutdownTimeout)
	defer cancel()
	if serr := a.shutdown(shutdownCtx); serr != nil {
		logger.Error("shutdown incomplete", "error", serr)
		if err == nil {
			err = serr
		}
	}
	logger.Info("stopped", "delivered", a.async.Delivered(), "dropped", a.async.Dropped())
	return err
}
