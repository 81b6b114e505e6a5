// Command feed runs a single Proton feed actor.
//
// A feed actor authors posts for one user, replicates them to a storage
// shard picked through the root directory, fans notices out to the
// owner's followers and ingests notices about other users' content into a
// local materialized feed cache.
//
// # Usage
//
//	go run ./cmd/feed --self=alice-feed --owner=alice --db=./data/alice \
//	    --directory=http://localhost:8080 --graph=http://localhost:8082 \
//	    --notifier=http://localhost:8083
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/NeutronStarPRO/Proton/api/httpserver"
	"github.com/NeutronStarPRO/Proton/cmd/common"
	"github.com/NeutronStarPRO/Proton/feed"
	"github.com/NeutronStarPRO/Proton/metrics"
	"github.com/NeutronStarPRO/Proton/services"
	"github.com/NeutronStarPRO/Proton/store"
)

type feedConfig struct {
	common.HTTPConfig `yaml:",inline"`

	Self    string `yaml:"self"`
	Owner   string `yaml:"owner"`
	DBPath  string `yaml:"db_path"`
	DirURL  string `yaml:"directory_url"`
	Graph   string `yaml:"graph_url"`
	PostN   string `yaml:"post_notifier_url"`
	Comment string `yaml:"comment_notifier_url"`
	Like    string `yaml:"like_notifier_url"`
}

func main() {
	var (
		configPath  = flag.String("config", "", "Path to YAML config file")
		listenAddr  = flag.String("listen-addr", ":8090", "HTTP listen address")
		metricsAddr = flag.String("metrics-addr", "", "Metrics listen address (disabled if empty)")
		pprof       = flag.Bool("pprof", false, "Enable pprof debug API")
		logJSON     = flag.Bool("log-json", false, "Log in JSON format")
		logDebug    = flag.Bool("log-debug", false, "Log at debug level")
		self        = flag.String("self", "", "This actor's identity")
		owner       = flag.String("owner", "", "Administrative owner identity")
		dbPath      = flag.String("db", "", "Pebble database path (in-memory if empty)")
		dirURL      = flag.String("directory", "", "Root directory URL")
		graphURL    = flag.String("graph", "", "Social graph URL")
		notifierURL = flag.String("notifier", "", "Notifier URL for all three notice kinds")
	)
	flag.Parse()

	cfg := &feedConfig{}
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
	if *self != "" {
		cfg.Self = *self
	}
	if *owner != "" {
		cfg.Owner = *owner
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *dirURL != "" {
		cfg.DirURL = *dirURL
	}
	if *graphURL != "" {
		cfg.Graph = *graphURL
	}
	if *notifierURL != "" {
		cfg.PostN = *notifierURL
		if cfg.Comment == "" {
			cfg.Comment = *notifierURL
		}
		if cfg.Like == "" {
			cfg.Like = *notifierURL
		}
	}

	if err := run(cfg); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *feedConfig) error {
	log := common.NewLogger("feed", cfg.LogJSON, cfg.LogDebug)

	self, err := feed.ParseIdentity(cfg.Self)
	if err != nil {
		return fmt.Errorf("--self: %w", err)
	}
	owner, err := feed.ParseIdentity(cfg.Owner)
	if err != nil {
		return fmt.Errorf("--owner: %w", err)
	}
	if cfg.DirURL == "" || cfg.Graph == "" || cfg.PostN == "" {
		return fmt.Errorf("--directory, --graph and --notifier are required")
	}

	var state feed.StateStore
	if cfg.DBPath != "" {
		pebbleStore, err := store.OpenPebble(cfg.DBPath)
		if err != nil {
			return err
		}
		state = pebbleStore
	} else {
		log.Warn("no --db given, state will not survive restart")
		state = store.NewMemoryStore()
	}
	defer state.Close()

	directory := services.NewDirectoryHTTPClient(cfg.DirURL, nil)

	actor, err := feed.NewActor(&feed.ActorConfig{
		Self:            self,
		Owner:           owner,
		Directory:       directory,
		Shards:          services.NewShardResolver(directory, nil),
		SocialGraph:     services.NewSocialGraphHTTPClient(cfg.Graph, nil),
		PostNotifier:    services.NewNotifierHTTPClient(cfg.PostN, nil),
		CommentNotifier: services.NewNotifierHTTPClient(cfg.Comment, nil),
		LikeNotifier:    services.NewNotifierHTTPClient(cfg.Like, nil),
		Log:             log,
	}, state)
	if err != nil {
		return err
	}

	metricsSrv := metrics.New(cfg.MetricsAddr)
	service, err := services.NewFeedService(&services.FeedServiceConfig{
		Actor:   actor,
		Metrics: metrics.NewFeedMetrics(metricsSrv.Registry()),
		Log:     log,
	})
	if err != nil {
		return err
	}

	serverCfg := cfg.ServerConfig(log)
	serverCfg.Metrics = metricsSrv
	srv, err := httpserver.New(serverCfg, service)
	if err != nil {
		return err
	}
	srv.RunInBackground()
	log.Info("feed actor running", "self", self.String(), "owner", owner.String())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down")
	srv.Shutdown()
	return nil
}
