package protocol

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint derives the dedup key for a gossip payload: a BLAKE2b-256
// hash over content_type and content. Two messages with identical content
// and content type always collide, regardless of which peer sent them.
func (m *GossipMessage) Fingerprint() string {
	data := make([]byte, 0, len(m.ContentType)+1+len(m.Content))
	data = append(data, m.ContentType...)
	data = append(data, 0x00) // separator so ("ab","c") != ("a","bc")
	data = append(data, m.Content...)

	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
