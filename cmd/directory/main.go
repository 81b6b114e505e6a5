// Command directory runs the Proton root directory service.
//
// The directory is the registry of storage shards: shards register here
// (admin-gated) and feed actors ask it for an available shard when they
// author new content.
//
// # Endpoints
//
// Public (no auth):
//   - GET /shards - List registered shards
//   - GET /shards/available - Hand out a shard for new content
//   - GET /shards/{id} - Resolve a shard id to its endpoint
//
// Admin (bearer token):
//   - POST /shards - Register a shard
//   - DELETE /shards/{id} - Remove a shard
//
// # Usage
//
//	go run ./cmd/directory --listen-addr=:8080 --admin-token=secret
//	go run ./cmd/directory --config=directory.yaml
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/NeutronStarPRO/Proton/api/httpserver"
	"github.com/NeutronStarPRO/Proton/cmd/common"
	"github.com/NeutronStarPRO/Proton/services"
)

type directoryConfig struct {
	common.HTTPConfig `yaml:",inline"`

	AdminToken string                   `yaml:"admin_token"`
	Postgres   *services.PostgresConfig `yaml:"postgres"`
}

func main() {
	var (
		configPath  = flag.String("config", "", "Path to YAML config file")
		listenAddr  = flag.String("listen-addr", ":8080", "HTTP listen address")
		metricsAddr = flag.String("metrics-addr", "", "Metrics listen address (disabled if empty)")
		pprof       = flag.Bool("pprof", false, "Enable pprof debug API")
		logJSON     = flag.Bool("log-json", false, "Log in JSON format")
		logDebug    = flag.Bool("log-debug", false, "Log at debug level")
		adminToken  = flag.String("admin-token", "", "Bearer token for shard registration")
	)
	flag.Parse()

	cfg := &directoryConfig{}
	if *configPath != "" {
		if err := common.LoadYAML(*configPath, cfg); err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = *listenAddr
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	cfg.Pprof = cfg.Pprof || *pprof
	cfg.LogJSON = cfg.LogJSON || *logJSON
	cfg.LogDebug = cfg.LogDebug || *logDebug
	if *adminToken != "" {
		cfg.AdminToken = *adminToken
	}

	if err := run(cfg); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *directoryConfig) error {
	log := common.NewLogger("directory", cfg.LogJSON, cfg.LogDebug)

	var dirStore services.DirectoryStore
	if cfg.Postgres != nil {
		pgStore, err := services.NewPostgresDirectoryStore(cfg.Postgres)
		if err != nil {
			return err
		}
		dirStore = pgStore
	} else {
		log.Warn("no postgres config, registrations will not survive restart")
		dirStore = services.NewInMemoryDirectoryStore()
	}
	defer dirStore.Close()

	directory, err := services.NewDirectory(&services.DirectoryConfig{
		AdminToken: cfg.AdminToken,
		Store:      dirStore,
		Log:        log,
	})
	if err != nil {
		return err
	}

	srv, err := httpserver.New(cfg.ServerConfig(log), directory)
	if err != nil {
		return err
	}
	srv.RunInBackground()
	log.Info("directory running", "addr", cfg.ListenAddr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down")
	srv.Shutdown()
	return nil
}
