package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/swarmlink/gossip-node/pkg/api"
	"github.com/swarmlink/gossip-node/pkg/discovery"
	"github.com/swarmlink/gossip-node/pkg/network"
	"github.com/swarmlink/gossip-node/pkg/storage"
)

const heartbeatInterval = 5 * time.Minute

var (
	identity        = flag.String("identity", "", "Node identity announced to peers (required)")
	listenAddr      = flag.String("listen", ":9500", "TCP address for the gossip engine")
	apiPort         = flag.Int("api-port", 8080, "Port for the HTTP admin API")
	enableAPI       = flag.Bool("api", true, "Enable the HTTP admin API")
	dataDir         = flag.String("data", "./data", "Directory for the gossip journal")
	enableJournal   = flag.Bool("journal", true, "Persist delivered gossip to disk")
	journalTTL      = flag.Duration("journal-ttl", 7*24*time.Hour, "Retention of journal entries")
	peers           = flag.String("peers", "", "Static peers to dial, comma-separated identity@host:port")
	enableDiscovery = flag.Bool("discovery", false, "Join the DHT discovery overlay")
	discoveryPort   = flag.Int("discovery-port", 9600, "Port for the discovery overlay")
	bootstrapPeers  = flag.String("bootstrap", "", "Bootstrap multiaddrs for discovery, comma-separated")
	probeInterval   = flag.Duration("probe-interval", 30*time.Second, "Liveness probe interval")
	missedThreshold = flag.Int("missed-threshold", 3, "Missed pings before a peer is evicted")
	ackTimeout      = flag.Duration("ack-timeout", 5*time.Second, "Initial acknowledgement deadline")
	ackRetries      = flag.Int("ack-retries", 3, "Retransmissions before an ack waiter fails")
)

func main() {
	flag.Parse()

	printBanner()

	if *identity == "" {
		log.Fatal("Error: -identity flag is required")
	}

	// Gossip engine
	cfg := network.DefaultConfig()
	cfg.Identity = *identity
	cfg.ListenAddr = *listenAddr
	cfg.ProbeInterval = *probeInterval
	cfg.MissedPingThreshold = *missedThreshold
	cfg.AckTimeout = *ackTimeout
	cfg.AckRetries = *ackRetries

	engine := network.NewGossipServer(cfg)

	// Journal
	var journal *storage.GossipJournal
	if *enableJournal {
		if err := os.MkdirAll(*dataDir, 0755); err != nil {
			log.Fatalf("Failed to create data directory: %v", err)
		}

		journalPath := fmt.Sprintf("%s/gossip-%s.db", *dataDir, *identity)
		var err error
		journal, err = storage.NewGossipJournal(journalPath, *journalTTL)
		if err != nil {
			log.Fatalf("Failed to open gossip journal: %v", err)
		}
		engine.AttachJournal(journal)
		log.Printf("📬 Journal initialized at %s (TTL: %v)", journalPath, *journalTTL)
	}

	if err := engine.Start(); err != nil {
		log.Fatalf("Failed to start gossip engine: %v", err)
	}
	log.Printf("✓ Gossip engine listening on %s", engine.Addr())

	// Static peers
	for _, entry := range splitList(*peers) {
		id, addr, ok := strings.Cut(entry, "@")
		if !ok {
			log.Fatalf("Invalid -peers entry %q, want identity@host:port", entry)
		}
		if err := engine.ConnectToPeer(addr, id); err != nil {
			log.Printf("⚠️  Could not connect to static peer %s (%s): %v", id, addr, err)
		}
	}

	// Discovery overlay
	var discNode *discovery.Node
	if *enableDiscovery {
		var err error
		discNode, err = discovery.NewNode(context.Background(), &discovery.Config{
			Port:           *discoveryPort,
			BootstrapPeers: splitList(*bootstrapPeers),
		}, *identity, engine.Addr())
		if err != nil {
			log.Fatalf("Failed to start discovery: %v", err)
		}

		// Dial every engine the overlay finds.
		discNode.OnPeerFound = func(peerIdentity, endpoint string) {
			if err := engine.ConnectToPeer(endpoint, peerIdentity); err != nil {
				log.Printf("⚠️  Could not connect to discovered peer %s (%s): %v", peerIdentity, endpoint, err)
			}
		}

		log.Printf("✓ Discovery overlay joined (peer ID %s)", discNode.ID())
	} else {
		log.Println("Discovery overlay disabled")
	}

	// Admin API
	apiCtx, apiCancel := context.WithCancel(context.Background())
	defer apiCancel()
	if *enableAPI {
		apiServer := api.NewServer(engine, journal, discNode, &api.Config{
			Port:         *apiPort,
			EnableCORS:   true,
			RateLimit:    100,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		})
		go func() {
			if err := apiServer.Start(apiCtx); err != nil {
				log.Printf("Admin API shutdown error: %v", err)
			}
		}()
	}

	go heartbeatLoop(engine)

	printStatus(engine)

	waitForShutdown(engine, discNode, journal, apiCancel)
}

func printBanner() {
	fmt.Println("╔═══════════════════════════════════════════════════╗")
	fmt.Println("║            SwarmLink Gossip Node v1.0             ║")
	fmt.Println("║        Peer-to-peer message dissemination         ║")
	fmt.Println("╚═══════════════════════════════════════════════════╝")
	fmt.Println()
}

// splitList splits a comma-separated flag value, dropping empty items
func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func heartbeatLoop(engine *network.GossipServer) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for range ticker.C {
		stats := engine.Stats()

		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		log.Println("💓 Heartbeat")
		log.Printf("   Active peers: %v", stats["active_peers"])
		log.Printf("   Messages flooded: %v", stats["messages_flooded"])
		log.Printf("   Duplicates suppressed: %v", stats["duplicates_suppressed"])
		log.Printf("   Peers evicted: %v", stats["peers_evicted"])
		log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	}
}

func printStatus(engine *network.GossipServer) {
	stats := engine.Stats()

	fmt.Println()
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println("🚀 Gossip Node Status")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("   Status: ✅ RUNNING\n")
	fmt.Printf("   Identity: %s\n", *identity)
	fmt.Printf("   Engine: %s\n", engine.Addr())
	if *enableAPI {
		fmt.Printf("   Admin API: http://localhost:%d\n", *apiPort)
	}
	fmt.Printf("   Active peers: %v\n", stats["active_peers"])
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()
}

func waitForShutdown(engine *network.GossipServer, discNode *discovery.Node, journal *storage.GossipJournal, apiCancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan

	fmt.Println()
	log.Println("Shutting down gracefully...")

	apiCancel()

	if discNode != nil {
		if err := discNode.Close(); err != nil {
			log.Printf("Error closing discovery: %v", err)
		} else {
			log.Println("✓ Discovery overlay closed")
		}
	}

	if err := engine.Stop(); err != nil {
		log.Printf("Error stopping engine: %v", err)
	}

	if journal != nil {
		if err := journal.Close(); err != nil {
			log.Printf("Error closing journal: %v", err)
		} else {
			log.Println("✓ Journal closed")
		}
	}

	log.Println("✓ Gossip node stopped")
	os.Exit(0)
}
