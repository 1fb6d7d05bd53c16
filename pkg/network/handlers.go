package network

import (
	"log"

	"github.com/swarmlink/gossip-node/pkg/protocol"
	"github.com/swarmlink/gossip-node/pkg/telemetry"
)

// route decodes an inbound envelope and dispatches on the message kind.
// A connection that is not yet Active gets exactly one privilege: sending
// a registration request. Everything else from it is dropped without a
// reply, as is any envelope with an unknown discriminator.
func (s *GossipServer) route(pc *peerConn, msg *protocol.Message) {
	header := msg.Header

	// Any traffic from a registered peer counts as activity and clears
	// its missed-ping counter.
	if identity := pc.Identity(); identity != "" {
		s.registry.Touch(identity)
	}

	if header.Type != protocol.MsgTypePeerRegister && pc.State() != stateActive {
		log.Printf("Dropping 0x%04x from unregistered connection %s", header.Type, pc.remoteAddr())
		return
	}

	switch header.Type {
	case protocol.MsgTypePeerRegister:
		s.handleRegister(pc, header, msg.Payload)

	case protocol.MsgTypePeerUnregister:
		s.handleUnregister(pc, header, msg.Payload)

	case protocol.MsgTypePing:
		s.handlePing(pc, header)

	case protocol.MsgTypeGossip:
		s.handleGossip(pc, header, msg.Payload)

	case protocol.MsgTypeAck:
		s.handleAck(pc, header, msg.Payload)

	default:
		// Malformed traffic is not rewarded with a response.
		log.Printf("Unknown message type 0x%04x from %s, dropping", header.Type, pc.remoteAddr())
	}
}

// handleRegister admits a peer identity for this connection
func (s *GossipServer) handleRegister(pc *peerConn, header *protocol.Header, payload []byte) {
	var req protocol.PeerRegisterRequest
	if err := req.Decode(payload); err != nil {
		log.Printf("Undecodable register request from %s: %v", pc.remoteAddr(), err)
		return
	}

	if req.Identity == "" {
		s.sendAck(pc, header.CorrelationID, protocol.AckStatusError)
		return
	}

	// A connection already active under another identity cannot claim a
	// second one.
	if current := pc.Identity(); current != "" && current != req.Identity {
		log.Printf("Connection %s (peer %s) tried to re-register as %s", pc.remoteAddr(), current, req.Identity)
		s.sendAck(pc, header.CorrelationID, protocol.AckStatusError)
		return
	}

	switch s.registry.Register(req.Identity, pc) {
	case RegisterAccepted:
		pc.markActive(req.Identity)
		log.Printf("Peer registered: %s (%s)", req.Identity, pc.remoteAddr())
		s.sendAck(pc, header.CorrelationID, protocol.AckStatusOK)

	case RegisterAlreadyActive:
		// Incumbent session wins; the requester is told no and left open.
		log.Printf("Registration collision: %s already active, rejecting %s", req.Identity, pc.remoteAddr())
		s.sendAck(pc, header.CorrelationID, protocol.AckStatusError)
	}
}

// handleUnregister drops a peer identity and tears down its session
func (s *GossipServer) handleUnregister(pc *peerConn, header *protocol.Header, payload []byte) {
	var req protocol.PeerUnregisterRequest
	if err := req.Decode(payload); err != nil {
		log.Printf("Undecodable unregister request from %s: %v", pc.remoteAddr(), err)
		return
	}

	owner, result := s.registry.Unregister(req.Identity)
	if result == UnregisterUnknown {
		s.sendAck(pc, header.CorrelationID, protocol.AckStatusError)
		return
	}

	s.sendAck(pc, header.CorrelationID, protocol.AckStatusOK)
	log.Printf("Peer unregistered: %s", req.Identity)

	// The ack is queued ahead of the close, so the requester sees OK
	// before its own session (or the identity's owner) goes away.
	if owner != nil {
		go owner.shutdown("unregistered")
	}
}

// handlePing answers a liveness probe. The activity touch in route already
// reset the missed-ping counter.
func (s *GossipServer) handlePing(pc *peerConn, header *protocol.Header) {
	s.sendAck(pc, header.CorrelationID, protocol.AckStatusOK)
}

// handleGossip acknowledges a gossip message and floods it if novel
func (s *GossipServer) handleGossip(pc *peerConn, header *protocol.Header, payload []byte) {
	var msg protocol.GossipMessage
	if err := msg.Decode(payload); err != nil {
		log.Printf("Undecodable gossip from %s: %v", pc.Identity(), err)
		return
	}

	telemetry.GossipReceivedTotal.Inc()

	// The sender gets OK either way; a duplicate just stops here. This is
	// the flood-control property: one forward per fingerprint per horizon.
	fingerprint := msg.Fingerprint()
	if s.dedup.Observe(fingerprint) {
		telemetry.GossipDuplicatesTotal.Inc()
		s.duplicatesSuppressed.Add(1)
		s.sendAck(pc, header.CorrelationID, protocol.AckStatusOK)
		return
	}

	s.sendAck(pc, header.CorrelationID, protocol.AckStatusOK)

	origin := pc.Identity()
	s.deliver(origin, fingerprint, &msg)
	s.disseminate(&msg, origin)
}

// handleAck resolves the waiter correlated to an acknowledgement
func (s *GossipServer) handleAck(pc *peerConn, header *protocol.Header, payload []byte) {
	var ack protocol.NetworkAcknowledgement
	if err := ack.Decode(payload); err != nil {
		log.Printf("Undecodable ack from %s: %v", pc.Identity(), err)
		return
	}

	// Acks with no pending waiter are fine: ping replies land here, and a
	// late ack after retry exhaustion still counted as activity in route.
	s.acks.Resolve(header.CorrelationID, ack.Status)
}

// sendAck queues a NetworkAcknowledgement echoing the correlation ID
func (s *GossipServer) sendAck(pc *peerConn, id protocol.CorrelationID, status protocol.AckStatus) {
	payload := (&protocol.NetworkAcknowledgement{Status: status}).Encode()

	msg := &protocol.Message{
		Header: &protocol.Header{
			Magic:         protocol.ProtocolMagic,
			Version:       protocol.ProtocolVersion,
			Type:          protocol.MsgTypeAck,
			Length:        uint32(len(payload)),
			CorrelationID: id,
		},
		Payload: payload,
	}

	if err := pc.send(msg); err != nil {
		log.Printf("Failed to queue ack for %s: %v", pc.remoteAddr(), err)
	}
}
