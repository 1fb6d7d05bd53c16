package discovery

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func newTestNode(t *testing.T, identity, endpoint string) *Node {
	t.Helper()

	node, err := NewNode(context.Background(), &Config{Port: 0}, identity, endpoint)
	if err != nil {
		t.Fatalf("NewNode failed: %v", err)
	}
	t.Cleanup(func() { node.Close() })

	return node
}

func TestAdvertisementExchange(t *testing.T) {
	a := newTestNode(t, "engine-a", "127.0.0.1:9501")
	b := newTestNode(t, "engine-b", "127.0.0.1:9502")

	found := make(chan Advertisement, 1)
	b.OnPeerFound = func(identity, endpoint string) {
		found <- Advertisement{Identity: identity, Endpoint: endpoint}
	}

	addr := fmt.Sprintf("%s/p2p/%s", a.Addresses()[0], a.ID())
	if err := b.Bootstrap([]string{addr}); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	if !b.IsBootstrapped() {
		t.Fatal("node not marked bootstrapped")
	}

	if err := b.exchangeWith(a.ID()); err != nil {
		t.Fatalf("exchange failed: %v", err)
	}

	select {
	case ad := <-found:
		if ad.Identity != "engine-a" || ad.Endpoint != "127.0.0.1:9501" {
			t.Fatalf("learned advertisement = %+v", ad)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("OnPeerFound never fired")
	}

	engines := b.KnownEngines()
	if len(engines) != 1 {
		t.Fatalf("KnownEngines returned %d entries, want 1", len(engines))
	}

	// The inbound handler taught node A about engine-b as well.
	deadline := time.Now().Add(5 * time.Second)
	for len(a.KnownEngines()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("handler side never learned the remote advertisement")
		}
		time.Sleep(50 * time.Millisecond)
	}
	if got := a.KnownEngines()[0].Identity; got != "engine-b" {
		t.Fatalf("handler side learned %q, want engine-b", got)
	}
}

func TestBootstrapRejectsEmptyPeerList(t *testing.T) {
	a := newTestNode(t, "engine-a", "127.0.0.1:9501")

	if err := a.Bootstrap([]string{"/not/a/multiaddr"}); err == nil {
		t.Fatal("Bootstrap succeeded with no reachable peers")
	}
	if a.IsBootstrapped() {
		t.Fatal("node marked bootstrapped after failed bootstrap")
	}
}
