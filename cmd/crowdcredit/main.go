// Command crowdcredit runs the crowdfunding and peer-lending gateway.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FahimFBA/crowdcredit/internal/api/tabledata"
	"github.com/FahimFBA/crowdcredit/internal/api/userauth"
	"github.com/FahimFBA/crowdcredit/internal/config"
	"github.com/FahimFBA/crowdcredit/internal/events"
	"github.com/FahimFBA/crowdcredit/internal/logging"
	"github.com/FahimFBA/crowdcredit/internal/metrics"
	"github.com/FahimFBA/crowdcredit/internal/notify"
	"github.com/FahimFBA/crowdcredit/internal/query"
	"github.com/FahimFBA/crowdcredit/internal/server"
	"github.com/FahimFBA/crowdcredit/internal/session"
	"github.com/FahimFBA/crowdcredit/internal/store"
	"github.com/FahimFBA/crowdcredit/supabase/client"
)

func main() {
	log := logging.New("main")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Error("configuration error")
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("exiting")
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logging.Logger) error {
	sb, err := client.New(client.Config{
		URL:     cfg.SupabaseURL,
		AnonKey: cfg.SupabaseAnonKey,
	})
	if err != nil {
		return err
	}
	if cfg.SupabaseServiceKey != "" {
		sb.Auth().SetServiceKey(cfg.SupabaseServiceKey)
	}

	st := store.New(store.Options{
		StatePath: cfg.StatePath,
		Logger:    logging.New("store"),
	})

	bus := events.NewBus()
	defer bus.Close()

	cache := query.NewCache(bus, logging.New("query"))

	bridge := session.NewBridge(sb.Auth(), st, logging.New("session"))
	bridge.Start()
	defer bridge.Stop()

	notifier := notify.New(notify.NewStoreToaster(st, logging.New("notify")), logging.New("notify"))
	if err := notifier.Attach(bus); err != nil {
		return err
	}
	defer notifier.Detach()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Realtime {
		rt := client.NewRealtimeClient(cfg.SupabaseURL, cfg.SupabaseAnonKey)
		defer rt.Close()
		if err := tabledata.WatchTables(ctx, rt, cache, logging.New("realtime")); err != nil {
			log.WithError(err).Warn("realtime subscription unavailable, cache relies on mutation invalidation")
		}
	}

	m := metrics.New("crowdcredit")

	authSvc := userauth.NewService(sb, cache, userauth.Config{AppDomainURL: cfg.AppDomainURL})
	tableSvc := tabledata.NewService(sb, cache)

	srv := server.New(server.Options{
		Addr:   cfg.ListenAddr,
		Logger: logging.New("server"),
	}, st, authSvc, tableSvc, m)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
