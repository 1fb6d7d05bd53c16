package network

import (
	"log"

	"github.com/swarmlink/gossip-node/pkg/protocol"
	"github.com/swarmlink/gossip-node/pkg/telemetry"
)

// deliver hands a novel gossip payload to the embedding application and
// the journal. The engine guarantees delivery and dedup, never
// interpretation of content.
func (s *GossipServer) deliver(from, fingerprint string, msg *protocol.GossipMessage) {
	if s.journal != nil {
		if err := s.journal.Record(from, fingerprint, msg.ContentType, msg.Content); err != nil {
			log.Printf("Journal write failed for %s: %v", fingerprint[:12], err)
		}
	}

	if s.OnDeliver != nil {
		s.OnDeliver(from, msg)
	}
}

// disseminate fans a gossip message out to every active peer except the
// one it came from. Forwarding never re-forwards to the origin, which
// bounds flood amplification to one hop per peer per message.
func (s *GossipServer) disseminate(msg *protocol.GossipMessage, origin string) {
	payload := msg.Encode()

	targets := s.registry.connsExcept(origin)
	for _, target := range targets {
		s.forwardGossip(target, payload)
	}

	if len(targets) > 0 {
		log.Printf("Gossip (%s, %d bytes) fanned out to %d peers", msg.ContentType, len(msg.Content), len(targets))
	}
}

// forwardGossip enqueues one copy of a gossip payload for a peer and
// registers an acknowledgement waiter for it. The fan-out never blocks:
// the send lands on the target's outbound queue and the waiter handles
// retransmission on its own timer.
func (s *GossipServer) forwardGossip(target *peerConn, payload []byte) {
	out := &protocol.Message{
		Header: &protocol.Header{
			Magic:         protocol.ProtocolMagic,
			Version:       protocol.ProtocolVersion,
			Type:          protocol.MsgTypeGossip,
			Length:        uint32(len(payload)),
			Flags:         protocol.FlagRequiresAck,
			CorrelationID: protocol.GenerateCorrelationID(),
		},
		Payload: payload,
	}

	peer := target.Identity()
	s.acks.Track(out.Header.CorrelationID, peer,
		func() error { return target.send(out) },
		func(res AckResult) {
			if res.Err != nil {
				log.Printf("Gossip forward to %s failed: %v", res.Peer, res.Err)
			}
		})

	if err := target.send(out); err != nil {
		// Teardown raced the fan-out; FailPeer settles the waiter.
		log.Printf("Could not enqueue gossip for %s: %v", peer, err)
		return
	}

	telemetry.GossipForwardsTotal.Inc()
	s.messagesFlooded.Add(1)
}

// Publish originates gossip locally: the content is fingerprinted, entered
// into the dedup cache and flooded to every active peer. Returns the
// fingerprint so callers can correlate with journal entries.
func (s *GossipServer) Publish(content []byte, contentType string) string {
	msg := &protocol.GossipMessage{Content: content, ContentType: contentType}

	fingerprint := msg.Fingerprint()
	if s.dedup.Observe(fingerprint) {
		// Already circulating; flooding it again would be suppressed by
		// every receiver anyway.
		return fingerprint
	}

	// An empty origin marks the journal entry as locally originated and
	// excludes no one from the fan-out.
	s.deliver("", fingerprint, msg)
	s.disseminate(msg, "")
	return fingerprint
}
