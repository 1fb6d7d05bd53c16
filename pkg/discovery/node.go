// Package discovery finds gossip engines on the wider network. A libp2p
// host joins a Kademlia DHT for peer routing, and an exchange protocol on
// top of it trades engine identities and TCP endpoints so discovered
// peers can be dialed over the gossip transport.
package discovery

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
)

// Config contains configuration for the discovery node
type Config struct {
	Port           int
	BootstrapPeers []string
	PrivateKey     crypto.PrivKey // Optional: provide your own key
}

// Node joins the discovery overlay and exchanges engine advertisements
// with every peer it meets
type Node struct {
	host   host.Host
	dht    *dht.IpfsDHT
	ctx    context.Context
	cancel context.CancelFunc

	advert Advertisement // what this node tells others about its engine

	mu           sync.RWMutex
	known        map[peer.ID]Advertisement
	bootstrapped bool

	// OnPeerFound fires once per newly learned engine advertisement
	OnPeerFound func(identity, endpoint string)
}

// NewNode creates a discovery node advertising the given gossip engine
// identity and TCP endpoint
func NewNode(ctx context.Context, config *Config, identity, endpoint string) (*Node, error) {
	priv := config.PrivateKey
	if priv == nil {
		var err error
		priv, _, err = crypto.GenerateEd25519Key(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to generate key pair: %w", err)
		}
	}

	listenAddr := fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", config.Port)

	h, err := libp2p.New(
		libp2p.Identity(priv),
		libp2p.ListenAddrStrings(listenAddr),
		libp2p.DefaultTransports,
		libp2p.DefaultMuxers,
		libp2p.DefaultSecurity,
		libp2p.NATPortMap(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create libp2p host: %w", err)
	}

	dhtInst, err := dht.New(ctx, h, dht.Mode(dht.ModeServer))
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("failed to create DHT: %w", err)
	}

	nodeCtx, cancel := context.WithCancel(ctx)

	node := &Node{
		host:   h,
		dht:    dhtInst,
		ctx:    nodeCtx,
		cancel: cancel,
		advert: Advertisement{Identity: identity, Endpoint: endpoint},
		known:  make(map[peer.ID]Advertisement),
	}

	node.setupExchangeHandler()

	if len(config.BootstrapPeers) > 0 {
		if err := node.Bootstrap(config.BootstrapPeers); err != nil {
			node.Close()
			return nil, fmt.Errorf("failed to bootstrap: %w", err)
		}
	}

	go node.announceLoop()

	return node, nil
}

// Bootstrap connects to bootstrap peers and joins the DHT
func (n *Node) Bootstrap(bootstrapPeers []string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.bootstrapped {
		return fmt.Errorf("already bootstrapped")
	}

	var connectedCount int
	for _, peerStr := range bootstrapPeers {
		maddr, err := multiaddr.NewMultiaddr(peerStr)
		if err != nil {
			log.Printf("Invalid bootstrap peer address %s: %v", peerStr, err)
			continue
		}

		peerInfo, err := peer.AddrInfoFromP2pAddr(maddr)
		if err != nil {
			log.Printf("Failed to parse peer info from %s: %v", peerStr, err)
			continue
		}

		if err := n.host.Connect(n.ctx, *peerInfo); err != nil {
			log.Printf("Failed to connect to bootstrap peer %s: %v", peerInfo.ID, err)
			continue
		}

		log.Printf("Connected to bootstrap peer: %s", peerInfo.ID)
		connectedCount++
	}

	if connectedCount == 0 {
		return fmt.Errorf("failed to connect to any bootstrap peers")
	}

	if err := n.dht.Bootstrap(n.ctx); err != nil {
		return fmt.Errorf("failed to bootstrap DHT: %w", err)
	}

	n.bootstrapped = true
	log.Printf("🌐 Discovery bootstrapped with %d peers", connectedCount)

	return nil
}

// ID returns the node's peer ID
func (n *Node) ID() peer.ID {
	return n.host.ID()
}

// Addresses returns the node's listen multiaddrs
func (n *Node) Addresses() []multiaddr.Multiaddr {
	return n.host.Addrs()
}

// KnownEngines returns every engine advertisement learned so far
func (n *Node) KnownEngines() []Advertisement {
	n.mu.RLock()
	defer n.mu.RUnlock()

	adverts := make([]Advertisement, 0, len(n.known))
	for _, ad := range n.known {
		adverts = append(adverts, ad)
	}
	return adverts
}

// IsBootstrapped returns whether the node has joined the DHT
func (n *Node) IsBootstrapped() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.bootstrapped
}

// announceLoop periodically exchanges advertisements with connected
// peers that have not advertised an engine yet
func (n *Node) announceLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			n.announceToNewPeers()
		}
	}
}

func (n *Node) announceToNewPeers() {
	for _, pID := range n.host.Network().Peers() {
		n.mu.RLock()
		_, seen := n.known[pID]
		n.mu.RUnlock()
		if seen {
			continue
		}

		if err := n.exchangeWith(pID); err != nil {
			log.Printf("Advertisement exchange with %s failed: %v", pID, err)
		}
	}
}

// remember stores a learned advertisement and notifies the engine once
func (n *Node) remember(from peer.ID, ad Advertisement) {
	if ad.Identity == "" || ad.Endpoint == "" {
		return
	}
	if ad.Identity == n.advert.Identity {
		// Our own advertisement reflected back.
		return
	}

	n.mu.Lock()
	_, seen := n.known[from]
	n.known[from] = ad
	n.mu.Unlock()

	if !seen {
		log.Printf("Discovered engine %s at %s (via %s)", ad.Identity, ad.Endpoint, from)
		if n.OnPeerFound != nil {
			n.OnPeerFound(ad.Identity, ad.Endpoint)
		}
	}
}

// Close gracefully shuts down the node
func (n *Node) Close() error {
	n.cancel()

	if err := n.dht.Close(); err != nil {
		log.Printf("Error closing DHT: %v", err)
	}
	if err := n.host.Close(); err != nil {
		return fmt.Errorf("failed to close host: %w", err)
	}

	return nil
}
