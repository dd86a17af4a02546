package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gautham-bhat-k/meadowlark/backend"
	"github.com/gautham-bhat-k/meadowlark/config"
	"github.com/gautham-bhat-k/meadowlark/distributor"
	"github.com/gautham-bhat-k/meadowlark/engine"
	"github.com/gautham-bhat-k/meadowlark/partition"
	"github.com/gautham-bhat-k/meadowlark/server"
	"github.com/gautham-bhat-k/meadowlark/utils"
)

func main() {
	configPath := flag.String("config", "", "cluster config file (optional once saved in the data dir)")
	nodeID := flag.Uint64("node", 0, "node id this process serves")
	dataDir := flag.String("data", "meadowlark-data", "pebble data directory")
	metricsAddr := flag.String("metrics_addr", "", "metrics listen address (default: node port + 10000)")
	rebalanceFrom := flag.String("rebalance_from", "", "previous cluster config; copy the partitions this node must hand over")
	flag.Parse()

	db, err := engine.Open(*dataDir, nil)
	if err != nil {
		log.Fatalf("Failed to open pebble db: %v", err)
	}
	defer db.Close()

	cluster, err := loadCluster(*configPath, db)
	if err != nil {
		log.Fatalf("Couldn't load cluster config: %v", err)
	}
	if err := restoreRoots(cluster, db); err != nil {
		log.Fatalf("Couldn't restore partition roots: %v", err)
	}

	pm := partition.NewManager(cluster)
	if err := pm.Init(); err != nil {
		log.Fatalf("Couldn't compute placement: %v", err)
	}

	node := config.NodeID(*nodeID)
	loc, err := cluster.NodeLocation(node)
	if err != nil {
		log.Fatalf("Node %d has no location: %v", node, err)
	}

	srv := server.New(node, cluster, pm, db)
	if err := srv.Bootstrap(); err != nil {
		log.Fatalf("Couldn't bootstrap node %d: %v", node, err)
	}
	if err := db.SaveClusterMetadata(cluster); err != nil {
		log.Printf("[WARN] failed to save cluster config to database: %v", err)
	}

	listenAddr := net.JoinHostPort("", strconv.FormatUint(loc.Port, 10))
	lis, err := net.Listen("tcp", listenAddr)
	if err != nil {
		log.Fatalf("Couldn't listen on port %d: %v", loc.Port, err)
	}

	addr := *metricsAddr
	if addr == "" {
		addr, err = utils.BumpPort(listenAddr, 10000)
		if err != nil {
			log.Fatalf("Couldn't derive metrics address: %v", err)
		}
	}
	go serveMetrics(addr)

	log.Printf("[INFO] meadowlark node %d at %s | hosting %v", node, loc, srv.Hosted())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *rebalanceFrom != "" {
		go rebalance(ctx, *rebalanceFrom, node, cluster, pm, db)
	}
	if err := srv.Serve(ctx, lis); err != nil {
		log.Printf("[ERROR] server stopped: %v", err)
	}
	log.Printf("[INFO] node %d shutting down", node)
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Printf("[INFO] metrics on %s/metrics", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("[WARN] metrics server: %v", err)
	}
}

// rebalance sends the partitions this node held under the previous config to
// the nodes that gained them under the current one.
func rebalance(ctx context.Context, oldPath string, node config.NodeID, cluster *config.Cluster, pm *partition.Manager, db *engine.Engine) {
	old, err := config.LoadConfigFile(oldPath)
	if err != nil {
		log.Printf("[ERROR] rebalance: %v", err)
		return
	}
	oldPM := partition.NewManager(old)
	if err := oldPM.Init(); err != nil {
		log.Printf("[ERROR] rebalance: previous placement: %v", err)
		return
	}
	from, err := oldPM.Placement()
	if err != nil {
		log.Printf("[ERROR] rebalance: %v", err)
		return
	}
	to, err := pm.Placement()
	if err != nil {
		log.Printf("[ERROR] rebalance: %v", err)
		return
	}
	plan, err := distributor.Plan(from, to)
	if err != nil {
		log.Printf("[ERROR] rebalance: %v", err)
		return
	}

	m := &distributor.Mover{Node: node, Cfg: cluster, Eng: db, Opener: backend.NewDialer()}
	if _, err := m.Execute(ctx, plan); err != nil {
		log.Printf("[ERROR] rebalance: %v", err)
	}
}
