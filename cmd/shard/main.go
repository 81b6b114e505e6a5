// Command shard runs a Proton reference storage shard.
//
// A shard holds the durable copies of posts that feed actors replicate to
// and serves the pulls made by other actors when they ingest notices. On
// start the shard registers itself with the root directory under its
// identity, which is the first segment of every post id stored here. After
// a comment or like update commits, the shard pushes a notice for the post
// to the author's followers through the configured notifier.
//
// # Usage
//
//	go run ./cmd/shard --self=shard-a --endpoint=http://localhost:8081 \
//	    --directory=http://localhost:8080 --admin-token=secret --db=./data/shard-a \
//	    --graph=http://localhost:8082 --notifier=http://localhost:8083
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NeutronStarPRO/Proton/api/httpserver"
	"github.com/NeutronStarPRO/Proton/cmd/common"
	"github.com/NeutronStarPRO/Proton/feed"
	"github.com/NeutronStarPRO/Proton/services"
	"github.com/NeutronStarPRO/Proton/store"
)

type shardConfig struct {
	common.HTTPConfig `yaml:",inline"`

	Self       string `yaml:"self"`
	Endpoint   string `yaml:"endpoint"`
	DBPath     string `yaml:"db_path"`
	DirURL     string `yaml:"directory_url"`
	AdminToken string `yaml:"admin_token"`
	Graph      string `yaml:"graph_url"`
	Comment    string `yaml:"comment_notifier_url"`
	Like       string `yaml:"like_notifier_url"`
}

func main() {
	var (
		configPath  = flag.String("config", "", "Path to YAML config file")
		listenAddr  = flag.String("listen-addr", ":8081", "HTTP listen address")
		metricsAddr = flag.String("metrics-addr", "", "Metrics listen address (disabled if empty)")
		pprof       = flag.Bool("pprof", false, "Enable pprof debug API")
		logJSON     = flag.Bool("log-json", false, "Log in JSON format")
		logDebug    = flag.Bool("log-debug", false, "Log at debug level")
		self        = flag.String("self", "", "This shard's identity")
		endpoint    = flag.String("endpoint", "", "Public endpoint advertised to the directory")
		dbPath      = flag.String("db", "", "Pebble database path (in-memory if empty)")
		dirURL      = flag.String("directory", "", "Root directory URL (skips registration if empty)")
		adminToken  = flag.String("admin-token", "", "Directory admin token")
		graphURL    = flag.String("graph", "", "Social graph URL for comment/like notice audiences")
		notifierURL = flag.String("notifier", "", "Notifier URL for comment and like notices")
	)
	flag.Parse()

	cfg := &shardConfig{}
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
	if *endpoint != "" {
		cfg.Endpoint = *endpoint
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *dirURL != "" {
		cfg.DirURL = *dirURL
	}
	if *adminToken != "" {
		cfg.AdminToken = *adminToken
	}
	if *graphURL != "" {
		cfg.Graph = *graphURL
	}
	if *notifierURL != "" {
		cfg.Comment = *notifierURL
		if cfg.Like == "" {
			cfg.Like = *notifierURL
		}
	}

	if err := run(cfg); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *shardConfig) error {
	log := common.NewLogger("shard", cfg.LogJSON, cfg.LogDebug)

	self, err := feed.ParseIdentity(cfg.Self)
	if err != nil {
		return fmt.Errorf("--self: %w", err)
	}

	var shardStore services.ShardStore
	if cfg.DBPath != "" {
		pebbleStore, err := store.OpenPebble(cfg.DBPath)
		if err != nil {
			return err
		}
		shardStore = pebbleStore
	} else {
		log.Warn("no --db given, stored posts will not survive restart")
		shardStore = store.NewMemoryStore()
	}
	defer shardStore.Close()

	var directory *services.DirectoryHTTPClient
	if cfg.DirURL != "" {
		directory = services.NewDirectoryHTTPClient(cfg.DirURL, nil)
	}

	var graph feed.SocialGraph
	var commentNotifier, likeNotifier feed.Notifier
	if cfg.Graph != "" && cfg.Comment != "" {
		if cfg.Like == "" {
			cfg.Like = cfg.Comment
		}
		graph = services.NewSocialGraphHTTPClient(cfg.Graph, nil)
		commentNotifier = services.NewNotifierHTTPClient(cfg.Comment, nil)
		likeNotifier = services.NewNotifierHTTPClient(cfg.Like, nil)
	} else {
		log.Warn("no --graph/--notifier given, comment and like notices will not be pushed")
	}

	shard, err := services.NewShardService(&services.ShardServiceConfig{
		Self:            self,
		Endpoint:        cfg.Endpoint,
		Directory:       directory,
		AdminToken:      cfg.AdminToken,
		Graph:           graph,
		CommentNotifier: commentNotifier,
		LikeNotifier:    likeNotifier,
		Store:           shardStore,
		Log:             log,
	})
	if err != nil {
		return err
	}

	srv, err := httpserver.New(cfg.ServerConfig(log), shard)
	if err != nil {
		return err
	}
	srv.RunInBackground()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := shard.Start(ctx); err != nil {
		srv.Shutdown()
		return err
	}
	log.Info("shard running", "self", self.String(), "addr", cfg.ListenAddr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down")
	srv.Shutdown()
	return nil
}
