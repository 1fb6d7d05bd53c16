// Package protocol implements the gossip network wire protocol.
//
// The protocol package defines the envelope framing, the message payloads,
// and the dedup fingerprint used by the gossip engine.
//
// # Protocol Overview
//
// Every wire message is a 32-byte envelope header followed by a
// protobuf-encoded payload:
//   - Magic number and version validation
//   - A message-type discriminator selecting one of five payload kinds
//   - A 16-byte correlation ID tying requests to acknowledgements
//   - A flags field (FlagRequiresAck marks envelopes a sender waits on)
//
// # Message Types
//
// Peer lifecycle (0x00xx):
//   - PeerRegister/PeerUnregister: admit or drop a peer identity
//   - Ping: liveness probe, answered with an acknowledgement
//
// Gossip (0x01xx):
//   - Gossip: a flooded content blob with an opaque content type
//
// System (0x02xx):
//   - Ack: terminal OK/ERROR response correlated to a prior request
//
// Payloads use the protobuf wire format directly so they interoperate with
// schema-generated code on other stacks; decoders skip unknown fields.
package protocol
