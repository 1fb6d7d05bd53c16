// Package network implements the gossip engine: peer registry, dedup
// cache, acknowledgement tracker, connection lifecycle, message routing,
// dissemination and liveness monitoring.
//
// A GossipServer accepts TCP connections carrying framed envelopes from
// package protocol. A connection becomes a peer once its registration is
// accepted; from then on every novel gossip payload it delivers is
// flooded to all other active peers exactly once, duplicates are
// acknowledged but suppressed, and unresponsive peers are probed and
// eventually evicted.
package network
