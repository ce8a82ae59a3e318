package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tilledge/config"
	"tilledge/engine"
	"tilledge/identity"
	"tilledge/messaging"
	"tilledge/store"
	"tilledge/www"
)

func main() {
	configPath := flag.String("config", "tilledge.yaml", "path to config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	flag.Parse()

	if *debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if *port > 0 {
		cfg.Web.Port = *port
	}

	// Open database
	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	// Create and start engine
	eng := engine.New(engine.Config{
		AppConfig:  cfg,
		ConfigPath: *configPath,
		DB:         db,
		HostInfo:   identity.NativeHost{},
		LogFunc:    log.Printf,
	})
	eng.Start()
	defer eng.Stop()

	// Set up sync transport. A failed connect is not fatal: the outbox holds
	// everything until the drainer can deliver it.
	msgClient := messaging.NewClient(&cfg.Sync)
	defer msgClient.Close()

	msgClient.OnConnectionChange(func(connected bool) {
		evtType := engine.EventSyncOffline
		if connected {
			evtType = engine.EventSyncOnline
		}
		eng.Events.Emit(engine.Event{Type: evtType, Timestamp: time.Now()})
	})

	var drainer *messaging.Drainer
	if err := msgClient.Connect(); err != nil {
		log.Printf("sync connect: %v (events will queue in outbox)", err)
	}

	drainer = messaging.NewDrainer(eng.Outbox(), eng.Identity(), msgClient, &cfg.Sync, eng.StoreID)
	drainer.OnDrained(func(delivered, failed int) {
		eng.Events.Emit(engine.Event{
			Type:      engine.EventSyncDrained,
			Timestamp: time.Now(),
			Payload:   engine.SyncDrainedEvent{Delivered: delivered, Failed: failed},
		})
	})
	drainer.Start()
	defer drainer.Stop()

	// Heartbeater (periodic device presence + queue depth)
	hb := messaging.NewHeartbeater(msgClient, eng.Identity(), eng.Outbox(), cfg.DeviceName, cfg.Sync.EventsTopic, cfg.Sync.HeartbeatInterval)
	hb.Start()
	defer hb.Stop()

	// Set up HTTP server
	router, stopWeb := www.NewRouter(eng, drainer, msgClient)
	defer stopWeb()

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	server := &http.Server{Addr: addr, Handler: router}

	// Start HTTP server
	go func() {
		log.Printf("tilledge listening on %s (device %s)", addr, eng.Identity().DeviceID())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")

	// Stop SSE event hub first so long-lived connections close
	stopWeb()

	// Graceful HTTP shutdown with 10s deadline
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("http server shutdown: %v", err)
	}
}
