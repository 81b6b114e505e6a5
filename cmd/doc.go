// Package cmd provides CLI commands for Proton services.
//
// # Commands
//
// feed: Runs a single feed actor. Authors, distributes and ingests posts
// for one user, backed by a Pebble database.
//
//	go run ./cmd/feed --self=alice-feed --owner=alice --db=./data/alice \
//	    --directory=http://localhost:8080 --graph=http://localhost:8082 \
//	    --notifier=http://localhost:8083
//
// directory: Runs the root directory service that storage shards register
// with and feed actors resolve shards through.
//
//	go run ./cmd/directory --listen-addr=:8080 --admin-token=secret
//	go run ./cmd/directory --config=directory.yaml
//
// shard: Runs a reference storage shard holding durable post copies. The
// shard registers itself with the directory on start and pushes comment
// and like notices to the author's followers after updates.
//
//	go run ./cmd/shard --self=shard-a --endpoint=http://localhost:8081 \
//	    --directory=http://localhost:8080 --admin-token=secret --db=./data/shard-a \
//	    --graph=http://localhost:8082 --notifier=http://localhost:8083
//
// # Configuration
//
// All commands support YAML configuration files via the --config flag.
// Command-line flags override config file values.
//
// Example config for the feed command:
//
//	listen_addr: ":8090"
//	metrics_addr: ":9090"
//	self: "alice-feed"
//	owner: "alice"
//	db_path: "./data/alice"
//	directory_url: "http://localhost:8080"
//	graph_url: "http://localhost:8082"
//	post_notifier_url: "http://localhost:8083"
//	comment_notifier_url: "http://localhost:8083"
//	like_notifier_url: "http://localhost:8083"
package cmd
