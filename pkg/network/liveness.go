package network

import (
	"log"
	"time"

	"github.com/swarmlink/gossip-node/pkg/protocol"
	"github.com/swarmlink/gossip-node/pkg/telemetry"
)

// livenessLoop probes idle peers on a fixed interval and evicts the
// unresponsive ones
func (s *GossipServer) livenessLoop() {
	ticker := time.NewTicker(s.cfg.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.probeIdlePeers()
		case <-s.stopCh:
			return
		}
	}
}

// probeIdlePeers sends a ping to every peer silent for longer than the
// probe interval. The missed-ping counter is incremented preemptively and
// cleared only by subsequent traffic, including the ping's own
// acknowledgement. Ack-timeout failures raise the same counter, so a peer
// that answers pings but never acks gossip is evicted through the same
// path.
func (s *GossipServer) probeIdlePeers() {
	for _, info := range s.registry.Snapshot() {
		if info.MissedPings >= s.cfg.MissedPingThreshold {
			s.evict(info.Identity)
			continue
		}

		if time.Since(info.LastActivity) < s.cfg.ProbeInterval {
			continue
		}

		missed := s.registry.MarkMissedPing(info.Identity)

		if conn := s.registry.conn(info.Identity); conn != nil {
			ping := protocol.NewMessage(protocol.MsgTypePing, nil)
			ping.Header.SetFlag(protocol.FlagRequiresAck)
			if err := conn.send(ping); err != nil {
				log.Printf("Ping to %s failed: %v", info.Identity, err)
			}
		}

		if missed >= s.cfg.MissedPingThreshold {
			s.evict(info.Identity)
		}
	}
}

// evict removes an unresponsive peer. Teardown runs through the
// connection's shutdown, which releases the registry entry and cancels
// pending waiters exactly once, so a concurrent eviction or a fresh
// re-registration of the identity is never double-hit.
func (s *GossipServer) evict(identity string) {
	conn := s.registry.conn(identity)
	if conn == nil {
		return
	}

	log.Printf("Peer %s unresponsive after %d missed pings, evicting", identity, s.cfg.MissedPingThreshold)
	telemetry.PeersEvictedTotal.Inc()
	s.peersEvicted.Add(1)

	conn.shutdown("evicted: unresponsive")
}
