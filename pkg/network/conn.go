package network

import (
	"errors"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/swarmlink/gossip-node/pkg/protocol"
)

var (
	ErrConnClosed    = errors.New("connection closed")
	ErrSendQueueFull = errors.New("send queue full")
)

// connState is the lifecycle of one transport connection
type connState int

const (
	stateConnecting connState = iota
	stateAwaitingRegistration
	stateActive
	stateClosing
	stateClosed
)

// String returns a readable state name
func (s connState) String() string {
	switch s {
	case stateConnecting:
		return "Connecting"
	case stateAwaitingRegistration:
		return "AwaitingRegistration"
	case stateActive:
		return "Active"
	case stateClosing:
		return "Closing"
	default:
		return "Closed"
	}
}

// peerConn owns one duplex peer connection: a read loop decoding inbound
// envelopes and a write loop draining the outbound queue. The transition
// to Active happens only on an accepted registration.
type peerConn struct {
	server *GossipServer
	conn   net.Conn

	state    connState
	identity string // set once the registry accepts this connection
	mu       sync.Mutex

	sendCh    chan *protocol.Message
	done      chan struct{}
	closeOnce sync.Once
}

// newPeerConn wraps an accepted or dialed transport connection
func newPeerConn(server *GossipServer, conn net.Conn) *peerConn {
	return &peerConn{
		server: server,
		conn:   conn,
		state:  stateConnecting,
		sendCh: make(chan *protocol.Message, server.cfg.SendQueueSize),
		done:   make(chan struct{}),
	}
}

// start launches the read and write loops
func (p *peerConn) start() {
	p.mu.Lock()
	if p.state == stateConnecting {
		p.state = stateAwaitingRegistration
	}
	p.mu.Unlock()

	go p.readLoop()
	go p.writeLoop()
}

// State returns the current lifecycle state
func (p *peerConn) State() connState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Identity returns the registered identity, or "" before Active
func (p *peerConn) Identity() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.identity
}

// markActive pins the registered identity and promotes the connection
func (p *peerConn) markActive(identity string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.identity = identity
	p.state = stateActive
}

func (p *peerConn) remoteAddr() string {
	if addr := p.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// send enqueues a message on the outbound queue without blocking. A full
// queue is a peer-scoped failure, not a reason to stall the caller.
func (p *peerConn) send(msg *protocol.Message) error {
	select {
	case <-p.done:
		return ErrConnClosed
	default:
	}

	select {
	case p.sendCh <- msg:
		return nil
	case <-p.done:
		return ErrConnClosed
	default:
		return ErrSendQueueFull
	}
}

// readLoop decodes inbound envelopes until the transport fails.
// Header-level corruption is unrecoverable (framing is lost), so it tears
// the connection down; payload-level problems are handled by the router.
func (p *peerConn) readLoop() {
	defer p.shutdown("transport closed")

	for {
		msg, err := protocol.ReadMessage(p.conn)
		if err != nil {
			if err != io.EOF && p.State() != stateClosing && p.State() != stateClosed {
				log.Printf("Read error from %s: %v", p.remoteAddr(), err)
			}
			return
		}

		p.server.route(p, msg)
	}
}

// writeLoop drains the outbound queue. It owns closing the socket so
// already-queued replies (e.g. the ack for an unregister) are flushed
// before the transport goes away.
func (p *peerConn) writeLoop() {
	for {
		select {
		case msg := <-p.sendCh:
			if err := p.write(msg); err != nil {
				if p.State() != stateClosing && p.State() != stateClosed {
					log.Printf("Write error to %s: %v", p.remoteAddr(), err)
				}
				p.conn.Close()
				p.shutdown("write failed")
				return
			}

		case <-p.done:
			// Flush whatever was queued before teardown, then close.
			for {
				select {
				case msg := <-p.sendCh:
					if err := p.write(msg); err != nil {
						p.conn.Close()
						return
					}
				default:
					p.conn.Close()
					return
				}
			}
		}
	}
}

func (p *peerConn) write(msg *protocol.Message) error {
	if timeout := p.server.cfg.WriteTimeout; timeout > 0 {
		p.conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	return protocol.WriteMessage(p.conn, msg)
}

// shutdown tears the connection down exactly once: the registry entry is
// released and this peer's waiters are cancelled before the outbound side
// closes, so no gossip is enqueued to an unregistered peer.
func (p *peerConn) shutdown(reason string) {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.state = stateClosing
		identity := p.identity
		p.mu.Unlock()

		if identity != "" {
			if p.server.registry.unregisterConn(identity, p) {
				log.Printf("Peer %s disconnected (%s)", identity, reason)
			}
			p.server.acks.FailPeer(identity)
		}

		close(p.done)

		p.mu.Lock()
		p.state = stateClosed
		p.mu.Unlock()

		p.server.dropConn(p)
	})
}
