package network

import (
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/swarmlink/gossip-node/pkg/protocol"
	"github.com/swarmlink/gossip-node/pkg/telemetry"
)

// GossipRecorder persists delivered gossip for the admin API
type GossipRecorder interface {
	Record(from, fingerprint, contentType string, content []byte) error
}

// Config holds engine configuration
type Config struct {
	Identity   string // This node's identity when registering with remote engines
	ListenAddr string

	ProbeInterval       time.Duration // T: liveness probe interval
	MissedPingThreshold int           // K: missed pings before eviction

	AckTimeout time.Duration // Initial acknowledgement deadline
	AckRetries int           // R: retransmissions before a waiter fails

	DedupCapacity int // Fingerprints kept before the oldest falls off
	SendQueueSize int // Per-peer outbound queue depth

	WriteTimeout time.Duration
	DialTimeout  time.Duration
}

// DefaultConfig returns default engine configuration
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:          ":9500",
		ProbeInterval:       30 * time.Second,
		MissedPingThreshold: 3,
		AckTimeout:          5 * time.Second,
		AckRetries:          3,
		DedupCapacity:       4096,
		SendQueueSize:       256,
		WriteTimeout:        10 * time.Second,
		DialTimeout:         10 * time.Second,
	}
}

// GossipServer is the protocol engine: it accepts peer connections,
// routes the five message kinds, floods novel gossip and polices peer
// liveness. All state is in-memory and scoped to the process lifetime.
type GossipServer struct {
	cfg *Config

	listener net.Listener
	registry *PeerRegistry
	dedup    *DedupCache
	acks     *AckTracker
	journal  GossipRecorder

	// OnDeliver receives each novel gossip payload. The engine does not
	// interpret content; that is the consumer's business.
	OnDeliver func(from string, msg *protocol.GossipMessage)

	conns map[*peerConn]struct{}
	mu    sync.Mutex

	stopCh   chan struct{}
	stopOnce sync.Once

	startTime            time.Time
	messagesFlooded      atomic.Uint64
	duplicatesSuppressed atomic.Uint64
	peersEvicted         atomic.Uint64
}

// NewGossipServer creates an engine with an empty registry and cache
func NewGossipServer(cfg *Config) *GossipServer {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	s := &GossipServer{
		cfg:       cfg,
		registry:  NewPeerRegistry(),
		dedup:     NewDedupCache(cfg.DedupCapacity),
		conns:     make(map[*peerConn]struct{}),
		stopCh:    make(chan struct{}),
		startTime: time.Now(),
	}

	// Exhausted ack retries count against the peer like a missed ping;
	// the liveness monitor turns enough of them into an eviction.
	s.acks = NewAckTracker(cfg.AckTimeout, cfg.AckRetries, func(peer string) {
		telemetry.AckTimeoutsTotal.Inc()
		s.registry.MarkMissedPing(peer)
	})

	return s
}

// AttachJournal attaches a recorder for delivered gossip
func (s *GossipServer) AttachJournal(journal GossipRecorder) {
	s.journal = journal
	log.Println("Gossip journal attached to engine")
}

// Registry exposes the peer registry for status reporting
func (s *GossipServer) Registry() *PeerRegistry {
	return s.registry
}

// Start begins listening for peer connections and starts the liveness
// monitor
func (s *GossipServer) Start() error {
	listener, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}

	s.listener = listener
	log.Printf("Gossip engine listening on %s", listener.Addr())

	go s.acceptLoop()
	go s.livenessLoop()

	return nil
}

// Addr returns the bound listen address, or "" before Start
func (s *GossipServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop tears the engine down: the listener closes, every connection is
// shut down and all pending waiters resolve as failed.
func (s *GossipServer) Stop() error {
	s.stopOnce.Do(func() {
		close(s.stopCh)

		if s.listener != nil {
			s.listener.Close()
		}

		s.mu.Lock()
		conns := make([]*peerConn, 0, len(s.conns))
		for pc := range s.conns {
			conns = append(conns, pc)
		}
		s.mu.Unlock()

		for _, pc := range conns {
			pc.shutdown("engine stopped")
		}

		s.acks.Stop()
		log.Println("Gossip engine stopped")
	})

	return nil
}

// ConnectToPeer dials a remote engine, registers this node's identity
// with it and, once accepted, admits the remote as an active peer here.
func (s *GossipServer) ConnectToPeer(addr, remoteIdentity string) error {
	if existing := s.registry.conn(remoteIdentity); existing != nil {
		log.Printf("Already connected to peer %s", remoteIdentity)
		return nil
	}

	conn, err := net.DialTimeout("tcp", addr, s.cfg.DialTimeout)
	if err != nil {
		return fmt.Errorf("failed to connect to peer %s: %w", addr, err)
	}

	// Register ourselves before anything else; the connection is not a
	// peer until the remote registry says so.
	payload := (&protocol.PeerRegisterRequest{Identity: s.cfg.Identity}).Encode()
	reg := protocol.NewMessage(protocol.MsgTypePeerRegister, payload)
	reg.Header.SetFlag(protocol.FlagRequiresAck)

	if err := protocol.WriteMessage(conn, reg); err != nil {
		conn.Close()
		return err
	}

	conn.SetReadDeadline(time.Now().Add(s.cfg.DialTimeout))
	resp, err := protocol.ReadMessage(conn)
	if err != nil {
		conn.Close()
		return err
	}
	conn.SetReadDeadline(time.Time{})

	if resp.Header.Type != protocol.MsgTypeAck || resp.Header.CorrelationID != reg.Header.CorrelationID {
		conn.Close()
		return fmt.Errorf("expected registration ack, got 0x%04x", resp.Header.Type)
	}

	var ack protocol.NetworkAcknowledgement
	if err := ack.Decode(resp.Payload); err != nil {
		conn.Close()
		return err
	}
	if ack.Status != protocol.AckStatusOK {
		conn.Close()
		return fmt.Errorf("registration rejected by %s", addr)
	}

	pc := newPeerConn(s, conn)
	if s.registry.Register(remoteIdentity, pc) != RegisterAccepted {
		conn.Close()
		return fmt.Errorf("peer %s already active on another connection", remoteIdentity)
	}
	pc.markActive(remoteIdentity)

	s.trackConn(pc)
	pc.start()

	log.Printf("Connected to peer %s (%s)", remoteIdentity, addr)
	return nil
}

// Stats returns engine statistics
func (s *GossipServer) Stats() map[string]interface{} {
	return map[string]interface{}{
		"identity":              s.cfg.Identity,
		"active_peers":          s.registry.Count(),
		"pending_acks":          s.acks.Pending(),
		"dedup_entries":         s.dedup.Len(),
		"messages_flooded":      s.messagesFlooded.Load(),
		"duplicates_suppressed": s.duplicatesSuppressed.Load(),
		"peers_evicted":         s.peersEvicted.Load(),
		"uptime_seconds":        uint64(time.Since(s.startTime).Seconds()),
	}
}

// acceptLoop accepts incoming connections
func (s *GossipServer) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
			default:
				log.Printf("Accept error: %v", err)
			}
			return
		}

		pc := newPeerConn(s, conn)
		s.trackConn(pc)
		pc.start()
	}
}

func (s *GossipServer) trackConn(pc *peerConn) {
	s.mu.Lock()
	s.conns[pc] = struct{}{}
	s.mu.Unlock()
}

func (s *GossipServer) dropConn(pc *peerConn) {
	s.mu.Lock()
	delete(s.conns, pc)
	s.mu.Unlock()
}
