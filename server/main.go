package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	configFile := flag.String("config", "server_config.json", "Path to configuration file")
	flag.Parse()

	config := NewConfig(*configFile)
	if err := config.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: config.SlogLevel(),
	}))
	slog.SetDefault(logger)

	store, err := NewSQLiteStore(config.DatabasePath)
	if err != nil {
		slog.Error("opening database failed", "path", config.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chat := NewChatServer(config.ChatAddr(), store)
	apiServer := newAPIServer(config.APIAddr(), store)

	// The process lives as long as both servers do: whichever exits first
	// takes the process down with it.
	errc := make(chan error, 2)
	go func() {
		errc <- chat.Run(ctx)
	}()
	go func() {
		slog.Info("admin api listening", "addr", config.APIAddr())
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
			return
		}
		errc <- nil
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errc:
		if err != nil {
			slog.Error("server exited", "error", err)
		}
	case sig := <-quit:
		slog.Info("shutting down", "signal", sig.String())
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("api shutdown failed", "error", err)
	}
}
