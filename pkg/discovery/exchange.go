package discovery

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
)

// ProtocolID identifies the advertisement exchange protocol
const ProtocolID = protocol.ID("/gossipnode/discovery/1.0.0")

const exchangeTimeout = 10 * time.Second

// Advertisement describes a gossip engine reachable on the network
type Advertisement struct {
	Identity string `json:"identity"` // engine identity used in peer registration
	Endpoint string `json:"endpoint"` // host:port of the engine's TCP listener
}

// setupExchangeHandler registers the inbound side of the exchange: read
// the remote advertisement, answer with our own.
func (n *Node) setupExchangeHandler() {
	n.host.SetStreamHandler(ProtocolID, n.handleExchange)
}

func (n *Node) handleExchange(stream network.Stream) {
	defer stream.Close()
	stream.SetDeadline(time.Now().Add(exchangeTimeout))

	var remote Advertisement
	if err := json.NewDecoder(stream).Decode(&remote); err != nil {
		return
	}

	if err := json.NewEncoder(stream).Encode(n.advert); err != nil {
		return
	}

	n.remember(stream.Conn().RemotePeer(), remote)
}

// exchangeWith opens a stream to a peer, sends our advertisement and
// records the one it answers with
func (n *Node) exchangeWith(pID peer.ID) error {
	stream, err := n.host.NewStream(n.ctx, pID, ProtocolID)
	if err != nil {
		return fmt.Errorf("failed to open exchange stream: %w", err)
	}
	defer stream.Close()
	stream.SetDeadline(time.Now().Add(exchangeTimeout))

	if err := json.NewEncoder(stream).Encode(n.advert); err != nil {
		return fmt.Errorf("failed to send advertisement: %w", err)
	}

	var remote Advertisement
	if err := json.NewDecoder(stream).Decode(&remote); err != nil {
		return fmt.Errorf("failed to read advertisement: %w", err)
	}

	n.remember(pID, remote)
	return nil
}
