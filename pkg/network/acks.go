package network

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/swarmlink/gossip-node/pkg/protocol"
)

var (
	// ErrAckTimeout resolves a waiter whose retry budget ran out
	ErrAckTimeout = errors.New("acknowledgement timed out")

	// ErrPeerClosed resolves waiters cancelled by connection teardown
	ErrPeerClosed = errors.New("peer connection closed")
)

// AckResult is the terminal outcome of an acknowledgement waiter
type AckResult struct {
	CorrelationID protocol.CorrelationID
	Peer          string
	Status        protocol.AckStatus // set only when Err is nil
	Err           error
}

// ackWaiter correlates one outbound request to its eventual
// acknowledgement. Resolved exactly once: by a matching response, by
// retry exhaustion, or by teardown of the peer it waits on.
type ackWaiter struct {
	id          protocol.CorrelationID
	peer        string
	retriesLeft int
	backoff     time.Duration
	timer       *time.Timer
	retransmit  func() error
	done        func(AckResult)
}

// AckTracker owns all pending acknowledgement waiters
type AckTracker struct {
	waiters map[protocol.CorrelationID]*ackWaiter
	mu      sync.Mutex

	timeout     time.Duration
	retries     int
	onExhausted func(peer string) // failure accounting hook, runs outside the lock
}

// NewAckTracker creates a tracker with the given initial deadline and
// retry budget. onExhausted fires once per waiter that runs out of retries.
func NewAckTracker(timeout time.Duration, retries int, onExhausted func(peer string)) *AckTracker {
	return &AckTracker{
		waiters:     make(map[protocol.CorrelationID]*ackWaiter),
		timeout:     timeout,
		retries:     retries,
		onExhausted: onExhausted,
	}
}

// Track registers a waiter for a correlation ID. retransmit is invoked on
// each deadline expiry while retries remain; done fires exactly once with
// the terminal result and may run on any goroutine.
func (t *AckTracker) Track(id protocol.CorrelationID, peer string, retransmit func() error, done func(AckResult)) {
	w := &ackWaiter{
		id:          id,
		peer:        peer,
		retriesLeft: t.retries,
		backoff:     t.timeout,
		retransmit:  retransmit,
		done:        done,
	}

	t.mu.Lock()
	t.waiters[id] = w
	w.timer = time.AfterFunc(t.timeout, func() { t.expire(id) })
	t.mu.Unlock()
}

// Resolve completes a waiter with the status carried by a matching
// NetworkAcknowledgement. Returns false when nothing was waiting on the
// correlation ID (e.g. the ack answered a ping, or arrived after timeout).
func (t *AckTracker) Resolve(id protocol.CorrelationID, status protocol.AckStatus) bool {
	t.mu.Lock()
	w, ok := t.waiters[id]
	if ok {
		delete(t.waiters, id)
		w.timer.Stop()
	}
	t.mu.Unlock()

	if !ok {
		return false
	}

	if w.done != nil {
		w.done(AckResult{CorrelationID: id, Peer: w.peer, Status: status})
	}
	return true
}

// FailPeer cancels every waiter tied to a peer, resolving each as failed.
// Called during connection teardown. Returns the number cancelled.
func (t *AckTracker) FailPeer(peer string) int {
	t.mu.Lock()
	var cancelled []*ackWaiter
	for id, w := range t.waiters {
		if w.peer == peer {
			delete(t.waiters, id)
			w.timer.Stop()
			cancelled = append(cancelled, w)
		}
	}
	t.mu.Unlock()

	for _, w := range cancelled {
		if w.done != nil {
			w.done(AckResult{CorrelationID: w.id, Peer: w.peer, Err: ErrPeerClosed})
		}
	}
	return len(cancelled)
}

// Pending returns the number of outstanding waiters
func (t *AckTracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.waiters)
}

// Stop cancels every outstanding waiter, resolving each as failed
func (t *AckTracker) Stop() {
	t.mu.Lock()
	var cancelled []*ackWaiter
	for id, w := range t.waiters {
		delete(t.waiters, id)
		w.timer.Stop()
		cancelled = append(cancelled, w)
	}
	t.mu.Unlock()

	for _, w := range cancelled {
		if w.done != nil {
			w.done(AckResult{CorrelationID: w.id, Peer: w.peer, Err: ErrPeerClosed})
		}
	}
}

// expire handles a deadline: retransmit while retries remain, otherwise
// resolve the waiter as timed out and report the failure.
func (t *AckTracker) expire(id protocol.CorrelationID) {
	t.mu.Lock()
	w, ok := t.waiters[id]
	if !ok {
		// Resolved while the timer fired; nothing to do.
		t.mu.Unlock()
		return
	}

	if w.retriesLeft > 0 {
		w.retriesLeft--
		w.backoff *= 2
		w.timer = time.AfterFunc(w.backoff, func() { t.expire(id) })
		retransmit := w.retransmit
		t.mu.Unlock()

		if retransmit != nil {
			if err := retransmit(); err != nil {
				// Peer may be mid-teardown; FailPeer or the next expiry
				// settles the waiter.
				log.Printf("Retransmit to %s failed: %v", w.peer, err)
			}
		}
		return
	}

	delete(t.waiters, id)
	t.mu.Unlock()

	if t.onExhausted != nil {
		t.onExhausted(w.peer)
	}
	if w.done != nil {
		w.done(AckResult{CorrelationID: id, Peer: w.peer, Err: ErrAckTimeout})
	}
}
