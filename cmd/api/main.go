package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/FuNgaiKa/stock-analysis-sub000/internal/di"
	"github.com/FuNgaiKa/stock-analysis-sub000/internal/infrastructure/config"
	"github.com/FuNgaiKa/stock-analysis-sub000/internal/infrastructure/logging"
	httpapi "github.com/FuNgaiKa/stock-analysis-sub000/internal/interface/http"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	bootLog := zerolog.New(os.Stderr)
	cfg, err := config.LoadFromFile(*cfgPath)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("load config")
	}
	log, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("init logger")
	}
	log.Info().Str("addr", cfg.HTTP.Addr).Msg("configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	app, err := di.New(initCtx, cfg, log)
	cancel()
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Warn().Err(err).Msg("close resources")
		}
	}()
	log.Info().Str("source", app.Source()).Msg("series source ready")

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpapi.NewServer(cfg, app).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Dur("timeout", cfg.HTTP.ShutdownTimeout).Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
