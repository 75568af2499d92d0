/*
main.go - Server entrypoint

PURPOSE:
  Loads configuration, opens the SQLite store, wires the API handler
  and auto-lock sweeper, and runs the HTTP server until SIGINT or
  SIGTERM.

CONFIGURATION:
  Environment variables prefixed BREW_ (see config package). The
  -port and -db flags override the environment when set.
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/VSydorenko/office-brew-tracker-sub000/api"
	"github.com/VSydorenko/office-brew-tracker-sub000/config"
	"github.com/VSydorenko/office-brew-tracker-sub000/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	port := flag.Int("port", cfg.Port, "HTTP listen port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path")
	flag.Parse()

	log, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	st, err := sqlite.New(*dbPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()
	log.Info().Str("db", *dbPath).Msg("store ready")

	handler := api.NewHandler(api.Stores{
		Participants:  st,
		Templates:     st.Templates(),
		Purchases:     st.Purchases(),
		Distributions: st.Distributions(),
	}, log)

	sweeper := &api.AutoLockSweeper{
		Purchases: st.Purchases(),
		Statuses:  handler.Statuses(),
		Payments:  handler.Payments(),
		Interval:  cfg.AutoLockInterval,
		Log:       log,
	}
	sweeper.Start()
	defer sweeper.Stop()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      api.NewRouter(handler, log, cfg.CORSOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", *port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}

func newLogger(level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var out = os.Stdout
	logger := zerolog.New(out)
	if format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen})
	}
	return logger.Level(lvl).With().Timestamp().Logger(), nil
}
