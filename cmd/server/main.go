package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/intercept/backend/internal/config"
	"github.com/intercept/backend/internal/eventlog"
	"github.com/intercept/backend/internal/hardware"
	"github.com/intercept/backend/internal/mock"
	"github.com/intercept/backend/internal/registry"
	"github.com/intercept/backend/internal/ws"
)

func main() {
	mockMode := flag.Bool("mock", false, "Replay canned tool output instead of spawning capture tools")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *port > 0 {
		cfg.Server.Port = *port
	}

	locks := hardware.NewLockManager()
	lister := hardware.NewStaticLister(cfg.Devices.SDRCount, cfg.Devices.WifiAdapters, cfg.Devices.BtControllers)

	var spawner registry.Spawner
	if *mockMode {
		log.Println("Starting in mock mode")
		spawner = mock.NewSpawner(500 * time.Millisecond)
	} else {
		log.Println("Starting in real mode (capture tools will be spawned)")
		spawner = registry.ExecSpawner{}
	}

	reg := registry.New(cfg, locks, lister, spawner)

	var logWriter *eventlog.Writer
	if cfg.Logging.EventsFile != "" {
		w, err := eventlog.Open(cfg.Logging.EventsFile)
		if err != nil {
			log.Fatalf("Failed to open event log: %v", err)
		}
		logWriter = w
		reg.SetEventSink(w.Record)
		log.Printf("Recording events to %s", cfg.Logging.EventsFile)
	}

	server := ws.NewServer(cfg, reg, lister)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		reg.Shutdown()
		if logWriter != nil {
			logWriter.Close()
		}
		os.Exit(0)
	}()

	if err := ws.ListenAndServe(cfg.Server.Host, cfg.Server.Port, server.Handler()); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
