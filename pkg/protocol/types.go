package protocol

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"time"
)

// Protocol constants
const (
	// Magic number for the gossip wire protocol ('GSSP')
	ProtocolMagic = 0x47535350

	// Protocol version
	ProtocolVersion = 0x0100 // v1.0

	// Header size
	HeaderSize = 32

	// MaxPayloadSize bounds the payload length a header may declare
	MaxPayloadSize = 4 << 20 // 4 MiB
)

// Message types
const (
	// Peer lifecycle (0x00xx)
	MsgTypePeerRegister   uint16 = 0x0001
	MsgTypePeerUnregister uint16 = 0x0002
	MsgTypePing           uint16 = 0x0003

	// Gossip (0x01xx)
	MsgTypeGossip uint16 = 0x0100

	// System (0x02xx)
	MsgTypeAck uint16 = 0x0200
)

// Flags
const (
	FlagRequiresAck uint16 = 0x0001 // Sender holds a waiter on the correlation ID
)

// CorrelationID ties a request envelope to its acknowledgement (16 bytes)
type CorrelationID [16]byte

// GenerateCorrelationID generates a random correlation ID
func GenerateCorrelationID() CorrelationID {
	var id CorrelationID
	// Use timestamp for first 8 bytes (for uniqueness and ordering)
	timestamp := time.Now().UnixNano()
	binary.BigEndian.PutUint64(id[0:8], uint64(timestamp))

	// Use crypto/rand for secure random bytes in remaining 8 bytes
	if _, err := rand.Read(id[8:]); err != nil {
		// Fallback: use timestamp-based pseudo-random if crypto/rand fails
		binary.BigEndian.PutUint64(id[8:], uint64(timestamp^0xDEADBEEF))
	}

	return id
}

// IsZero checks if the correlation ID is unset
func (id CorrelationID) IsZero() bool {
	return id == CorrelationID{}
}

// String returns the hex form of the correlation ID
func (id CorrelationID) String() string {
	return hex.EncodeToString(id[:])
}
