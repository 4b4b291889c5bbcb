package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gpstimed/internal/clock"
	"gpstimed/internal/config"
	"gpstimed/internal/pps"
	"gpstimed/internal/store"
	"gpstimed/internal/timeauth"
	"gpstimed/internal/timesync"
	"gpstimed/internal/web"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./gpstimed.yaml", "Path to YAML config")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	start := time.Now()
	log.Printf("gpstimed starting")

	st := store.New(cfg.Store.Path)
	rec, err := st.Load()
	if err != nil {
		log.Printf("no prior fix record (%v); starting fresh", err)
	} else if rec.LastFixEpoch > 0 {
		log.Printf("recovered fix record: kind=%s epoch=%d", rec.LastFixKind, rec.LastFixEpoch)
	}

	auth := timeauth.New(clock.System(), st, rec)

	svc := timesync.New(timesync.Config{
		Device:          cfg.Serial.Device,
		Baud:            cfg.Serial.Baud,
		GSARateCycles:   cfg.GSARateCycles,
		DisplayInterval: cfg.DisplayInterval,
	}, auth)
	if err := svc.Start(ctx); err != nil {
		log.Fatalf("timesync start failed: %v", err)
	}
	defer svc.Close()

	var ppsMon *pps.Monitor
	if cfg.PPS.Enable {
		ppsMon, err = pps.Start(cfg.PPS.Line)
		if err != nil {
			// PPS is telemetry only; run without it.
			log.Printf("pps disabled: %v", err)
		} else {
			defer func() { _ = ppsMon.Close() }()
			log.Printf("pps enabled line=%s", cfg.PPS.Line)
		}
	}

	if cfg.Web.Enable {
		h := web.Handler(start, svc.Snapshot, ppsMon)
		go func() {
			log.Printf("web listening on %s", cfg.Web.Listen)
			if err := web.Serve(ctx, cfg.Web.Listen, h); err != nil && ctx.Err() == nil {
				log.Printf("web server stopped: %v", err)
				cancel()
			}
		}()
	}

	<-ctx.Done()
	log.Printf("gpstimed stopping")
}
