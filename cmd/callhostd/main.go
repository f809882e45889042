package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/helpora/partnercall/internal/adapters/authority"
	"github.com/helpora/partnercall/internal/adapters/calllog"
	router "github.com/helpora/partnercall/internal/adapters/http"
	"github.com/helpora/partnercall/internal/adapters/memstore"
	"github.com/helpora/partnercall/internal/adapters/rtc"
	"github.com/helpora/partnercall/internal/adapters/signalstore"
	"github.com/helpora/partnercall/internal/app"
	"github.com/helpora/partnercall/internal/app/metrics"
	"github.com/helpora/partnercall/internal/config"
	"github.com/helpora/partnercall/internal/core"
	"github.com/helpora/partnercall/internal/domain"
)

// devCustomers seeds the in-memory store for local runs without the
// remote record store.
var devCustomers = []domain.CustomerRecord{
	{ID: "cust-dev-1", Name: "Dana Whitfield", Bookings: []domain.BookingID{"bk-1001", "bk-1002"}},
	{ID: "cust-dev-2", Name: "Riley Moss", Bookings: []domain.BookingID{"bk-2001"}},
}

// buildStores selects the signaling backend: dev mode runs entirely on
// the seeded in-memory store, anything else talks to the remote one.
func buildStores(cfg *config.Config) (core.SignalingStore, core.Directory) {
	if cfg.Mode == "dev" {
		mem := memstore.New()
		mem.SeedCustomers(devCustomers)
		return mem, mem
	}
	cli := signalstore.NewClient(cfg.SignalingURL, cfg.SignalingWSURL)
	return cli, cli
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	registry := prometheus.NewRegistry()
	mset := metrics.New(registry)

	store, dir := buildStores(cfg)
	auth := authority.NewClient(cfg.AuthorityURL)
	engines := rtc.NewFactory(cfg.MediaGatewayWSURL)

	var history core.CallLogger
	if h, err := calllog.Open(cfg.CallLogPath); err != nil {
		log.Error().Err(err).Str("path", cfg.CallLogPath).Msg("call history unavailable")
	} else {
		defer h.Close()
		history = h
	}

	host := app.NewHost(dir, auth, store, engines, history, mset, app.HostConfig{
		Provider:      domain.PartyID(cfg.ProviderID),
		IdentityWait:  cfg.IdentityWait,
		RemoteTimeout: cfg.RemoteCallTimeout,
	})
	host.Run(ctx)

	r := router.SetupRouter(ctx, cfg, host, history, registry)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("call host started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
	case <-host.Done():
		// The host stops itself once setup ends or no identity arrives.
		log.Info().Msg("Call host finished, shutting down")
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
