package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/TimurManjosov/flagstate/internal/api"
	"github.com/TimurManjosov/flagstate/internal/config"
	"github.com/TimurManjosov/flagstate/internal/engine"
	"github.com/TimurManjosov/flagstate/internal/identity"
	"github.com/TimurManjosov/flagstate/internal/snapshot"
	"github.com/TimurManjosov/flagstate/internal/store"
	"github.com/TimurManjosov/flagstate/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	identity.SetDefaultKind(cfg.DefaultKind)
	telemetry.Init()

	ctx := context.Background()
	st, err := store.NewStore(ctx, cfg.StoreType, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer st.Close()
	log.Printf("store: %s backend ready", cfg.StoreType)

	eng := engine.New(st, cfg.BucketSalt)
	eng.OnMutation(func(m engine.Mutation) {
		log.Printf("mutation: %s %s for %s/%s", m.Op, m.Feature, m.Identity.Kind, m.Identity.ID)
	})

	snaps := snapshot.NewManager(st, cfg.SnapshotRetention, cfg.SnapshotPruneChunk)

	// hourly snapshot pruning
	pruneDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := snaps.Prune(time.Now()); n > 0 {
					log.Printf("snapshot prune: removed %d", n)
				}
				telemetry.SnapshotsStored.Set(float64(snaps.Count()))
			case <-pruneDone:
				return
			}
		}
	}()

	srvAPI := api.NewServer(eng, snaps, cfg.AdminAPIKey)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srvAPI.Router(),
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Printf("listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}
	go func() {
		log.Printf("metrics on %s", cfg.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics server: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	close(pruneDone)
	ctxShut, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShut)
	_ = metricsSrv.Shutdown(ctxShut)
	log.Println("stopped")
}
