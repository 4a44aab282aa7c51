// Package main provides the entry point for the lexiroute server, an
// adaptive dispatcher that routes translation requests across a configurable
// set of remote LLM endpoints, balancing by measured performance and failing
// over automatically when an endpoint degrades.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lexiroute/lexiroute/internal/api"
	"github.com/lexiroute/lexiroute/internal/api/middleware"
	"github.com/lexiroute/lexiroute/internal/config"
	"github.com/lexiroute/lexiroute/internal/dispatch"
	"github.com/lexiroute/lexiroute/internal/logging"
	"github.com/lexiroute/lexiroute/internal/provider"
	"github.com/lexiroute/lexiroute/internal/usage"
	log "github.com/sirupsen/logrus"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	var (
		configPath string
		port       int
	)
	flag.StringVar(&configPath, "config", "config.yaml", "path to the YAML configuration file")
	flag.IntVar(&port, "port", 0, "override the configured listen port")
	flag.Parse()

	// .env is optional; missing files are fine.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("load config %s: %v", configPath, err)
	}
	if port > 0 {
		cfg.Port = port
	}
	logging.Setup(cfg.Logging)
	log.Infof("lexiroute %s (%s, built %s)", Version, Commit, BuildDate)

	var store *usage.Store
	if cfg.RequestLog {
		store, err = usage.Open(cfg.UsageDB)
		if err != nil {
			log.Fatalf("open usage store: %v", err)
		}
		defer func() { _ = store.Close() }()
	}

	invoker := provider.NewClient(nil)
	recorder := dispatch.MultiRecorder(middleware.DispatchMetricsRecorder{}, storeRecorder(store))
	server := api.NewServer(api.BuildRuntime(cfg, invoker, recorder), store)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Configuration changes swap in a freshly built runtime; in-flight
	// dispatches finish against the pool they acquired from.
	go func() {
		err := config.Watch(ctx, configPath, func(next *config.Config) {
			if port > 0 {
				next.Port = port
			}
			logging.Setup(next.Logging)
			server.SwapRuntime(api.BuildRuntime(next, invoker, recorder))
		})
		if err != nil && ctx.Err() == nil {
			log.Errorf("config watcher stopped: %v", err)
		}
	}()

	if err := server.Run(ctx); err != nil {
		log.Fatalf("server: %v", err)
	}
	log.Info("lexiroute stopped")
}

// storeRecorder adapts a possibly-nil usage store into a Recorder without
// tripping the typed-nil interface pitfall.
func storeRecorder(store *usage.Store) dispatch.Recorder {
	if store == nil {
		return nil
	}
	return store
}
