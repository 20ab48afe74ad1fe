// portalmintd serves a simulated payment backend over HTTP. Every incoming
// payment request it creates settles instantly, which lets a settlement
// system be exercised end to end without touching a payment network.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/portalpay/portalpay"
	"github.com/portalpay/portalpay/config"
	"github.com/portalpay/portalpay/rest"
	"github.com/portalpay/portalpay/simnet"
)

func main() {
	logHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(logHandler))

	cfg := config.Default().FromEnv()

	registry := portalpay.NewRegistry()
	for _, unit := range cfg.SupportedUnits {
		wallet := simnet.New(unit, simnet.WithNotifyBuffer(cfg.NotifyBuffer))
		registry.Register(unit, rest.DefaultBackendName, wallet)
		if meta, ok := cfg.UnitMetadata[unit]; ok {
			slog.Info("backend registered", "unit", unit, "description", meta.Description)
		} else {
			slog.Info("backend registered", "unit", unit)
		}
	}

	api := rest.NewServer(registry)
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("listening", "addr", cfg.Server.Addr, "units", len(cfg.SupportedUnits))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
	}

	if err := api.RenderBalances(os.Stdout); err != nil {
		slog.Error("balance report failed", "error", err)
	}
}
