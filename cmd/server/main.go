package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/pressline/go-content-server/articles"
	"github.com/pressline/go-content-server/campaigns"
	"github.com/pressline/go-content-server/internal/config"
	"github.com/pressline/go-content-server/server"
	"github.com/pressline/go-content-server/storage/sqlite"
	"github.com/pressline/go-content-server/token"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running server: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "config.Load")
	}

	logger := newLogger(cfg)
	displayAppname(cfg.AppName)

	store, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		return errors.Wrap(err, "sqlite.Open")
	}
	defer store.Close()

	userRepo := store.Users()
	services := server.Services{
		Tokens:    token.NewManager(store.Tokens(), userRepo, token.WithLogger(logger)),
		Users:     userRepo,
		Articles:  articles.NewService(store.Articles(), articles.WithLogger(logger)),
		Campaigns: campaigns.NewService(store.Campaigns(), campaigns.WithLogger(logger)),
	}

	srv, err := server.New(cfg, services, logger)
	if err != nil {
		return errors.Wrap(err, "server.New")
	}

	httpServer := &http.Server{Addr: cfg.Addr(), Handler: srv}
	go listenAndServe(httpServer, logger)

	waitForStopSignal()
	return shutdown(httpServer, logger)
}

func listenAndServe(httpServer *http.Server, logger zerolog.Logger) {
	logger.Info().Str("addr", httpServer.Addr).Msg("server listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(httpServer *http.Server, logger zerolog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "server.Shutdown")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if cfg.IsDev() {
		out := zerolog.ConsoleWriter{Out: os.Stderr}
		return zerolog.New(out).Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
