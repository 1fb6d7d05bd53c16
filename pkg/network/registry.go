package network

import (
	"sync"
	"time"

	"github.com/swarmlink/gossip-node/pkg/telemetry"
)

// RegisterResult is the outcome of a registration attempt
type RegisterResult int

const (
	RegisterAccepted RegisterResult = iota
	RegisterAlreadyActive
)

// UnregisterResult is the outcome of an unregistration attempt
type UnregisterResult int

const (
	UnregisterRemoved UnregisterResult = iota
	UnregisterUnknown
)

// PeerInfo is a read-only snapshot of a peer record
type PeerInfo struct {
	Identity     string    `json:"identity"`
	RemoteAddr   string    `json:"remote_addr"`
	LastActivity time.Time `json:"last_activity"`
	MissedPings  int       `json:"missed_pings"`
}

// peerRecord is the authoritative state for one active peer.
// Owned exclusively by the registry; everyone else gets snapshots.
type peerRecord struct {
	identity     string
	conn         *peerConn
	lastActivity time.Time
	missedPings  int
}

// PeerRegistry is the authoritative table of active peer identities
type PeerRegistry struct {
	peers map[string]*peerRecord
	mu    sync.RWMutex
}

// NewPeerRegistry creates an empty peer registry
func NewPeerRegistry() *PeerRegistry {
	return &PeerRegistry{
		peers: make(map[string]*peerRecord),
	}
}

// Register admits an identity bound to a connection. Re-registering the
// same connection is idempotent; a different connection claiming an
// identity that is already active is rejected and the incumbent session
// is left untouched.
func (r *PeerRegistry) Register(identity string, conn *peerConn) RegisterResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, exists := r.peers[identity]; exists {
		if rec.conn == conn {
			return RegisterAccepted
		}
		return RegisterAlreadyActive
	}

	r.peers[identity] = &peerRecord{
		identity:     identity,
		conn:         conn,
		lastActivity: time.Now(),
	}
	telemetry.PeersActive.Set(float64(len(r.peers)))

	return RegisterAccepted
}

// Unregister removes an identity. Returns the connection that owned it so
// the caller can tear the session down.
func (r *PeerRegistry) Unregister(identity string) (*peerConn, UnregisterResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.peers[identity]
	if !exists {
		return nil, UnregisterUnknown
	}

	delete(r.peers, identity)
	telemetry.PeersActive.Set(float64(len(r.peers)))

	return rec.conn, UnregisterRemoved
}

// unregisterConn removes an identity only while it is still owned by conn.
// Used during teardown so a stale connection never removes a fresh
// registration of the same identity.
func (r *PeerRegistry) unregisterConn(identity string, conn *peerConn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.peers[identity]
	if !exists || rec.conn != conn {
		return false
	}

	delete(r.peers, identity)
	telemetry.PeersActive.Set(float64(len(r.peers)))

	return true
}

// Touch records traffic from a peer: advances last-activity (never
// backwards) and clears the missed-ping counter.
func (r *PeerRegistry) Touch(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.peers[identity]
	if !exists {
		return
	}

	if now := time.Now(); now.After(rec.lastActivity) {
		rec.lastActivity = now
	}
	rec.missedPings = 0
}

// MarkMissedPing increments a peer's missed-ping counter and returns the
// new count. Unknown identities return 0.
func (r *PeerRegistry) MarkMissedPing(identity string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.peers[identity]
	if !exists {
		return 0
	}

	rec.missedPings++
	return rec.missedPings
}

// Lookup returns a snapshot of a peer record
func (r *PeerRegistry) Lookup(identity string) (PeerInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, exists := r.peers[identity]
	if !exists {
		return PeerInfo{}, false
	}

	return r.snapshotLocked(rec), true
}

// ListActive returns the identities of all active peers
func (r *PeerRegistry) ListActive() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identities := make([]string, 0, len(r.peers))
	for identity := range r.peers {
		identities = append(identities, identity)
	}
	return identities
}

// Snapshot returns read-only copies of every peer record
func (r *PeerRegistry) Snapshot() []PeerInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]PeerInfo, 0, len(r.peers))
	for _, rec := range r.peers {
		infos = append(infos, r.snapshotLocked(rec))
	}
	return infos
}

// Count returns the number of active peers
func (r *PeerRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// conn returns the connection currently owning an identity, or nil
func (r *PeerRegistry) conn(identity string) *peerConn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if rec, exists := r.peers[identity]; exists {
		return rec.conn
	}
	return nil
}

// connsExcept returns the connections of every active peer except origin.
// Fan-out targets are resolved under the registry lock so a peer removed
// during teardown is never handed out again.
func (r *PeerRegistry) connsExcept(origin string) []*peerConn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*peerConn, 0, len(r.peers))
	for identity, rec := range r.peers {
		if identity == origin {
			continue
		}
		conns = append(conns, rec.conn)
	}
	return conns
}

func (r *PeerRegistry) snapshotLocked(rec *peerRecord) PeerInfo {
	info := PeerInfo{
		Identity:     rec.identity,
		LastActivity: rec.lastActivity,
		MissedPings:  rec.missedPings,
	}
	if rec.conn != nil {
		info.RemoteAddr = rec.conn.remoteAddr()
	}
	return info
}
