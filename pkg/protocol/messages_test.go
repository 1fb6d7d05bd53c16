package protocol

import (
	"bytes"
	"net"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func TestPeerRegisterRequestEncodeDecode(t *testing.T) {
	tests := []struct {
		name     string
		identity string
	}{
		{name: "simple identity", identity: "node-1"},
		{name: "long identity", identity: string(bytes.Repeat([]byte("x"), 512))},
		{name: "binary-looking identity", identity: "02a1\x00beef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &PeerRegisterRequest{Identity: tt.identity}
			encoded := req.Encode()

			decoded := &PeerRegisterRequest{}
			if err := decoded.Decode(encoded); err != nil {
				t.Fatalf("Decode() error = %v", err)
			}

			if decoded.Identity != tt.identity {
				t.Errorf("Identity = %q, want %q", decoded.Identity, tt.identity)
			}
		})
	}
}

func TestPeerUnregisterRequestEncodeDecode(t *testing.T) {
	req := &PeerUnregisterRequest{Identity: "node-2"}

	decoded := &PeerUnregisterRequest{}
	if err := decoded.Decode(req.Encode()); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if decoded.Identity != "node-2" {
		t.Errorf("Identity = %q, want %q", decoded.Identity, "node-2")
	}
}

func TestPingRequestEncodeDecode(t *testing.T) {
	ping := &PingRequest{}

	if got := ping.Encode(); len(got) != 0 {
		t.Errorf("Encode() = %x, want empty", got)
	}

	if err := ping.Decode(nil); err != nil {
		t.Errorf("Decode(nil) error = %v", err)
	}
}

func TestGossipMessageEncodeDecode(t *testing.T) {
	tests := []struct {
		name string
		msg  *GossipMessage
	}{
		{
			name: "block payload",
			msg:  &GossipMessage{Content: []byte("block123"), ContentType: "block"},
		},
		{
			name: "large payload",
			msg:  &GossipMessage{Content: bytes.Repeat([]byte{0xFF}, 10000), ContentType: "batch"},
		},
		{
			name: "content without type",
			msg:  &GossipMessage{Content: []byte{0x01, 0x02}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := tt.msg.Encode()

			decoded := &GossipMessage{}
			if err := decoded.Decode(encoded); err != nil {
				t.Fatalf("Decode() error = %v", err)
			}

			if !bytes.Equal(decoded.Content, tt.msg.Content) {
				t.Errorf("Content mismatch: got %d bytes, want %d", len(decoded.Content), len(tt.msg.Content))
			}
			if decoded.ContentType != tt.msg.ContentType {
				t.Errorf("ContentType = %q, want %q", decoded.ContentType, tt.msg.ContentType)
			}
		})
	}
}

func TestNetworkAcknowledgementEncodeDecode(t *testing.T) {
	for _, status := range []AckStatus{AckStatusOK, AckStatusError} {
		ack := &NetworkAcknowledgement{Status: status}

		decoded := &NetworkAcknowledgement{}
		if err := decoded.Decode(ack.Encode()); err != nil {
			t.Fatalf("Decode() error = %v", err)
		}

		if decoded.Status != status {
			t.Errorf("Status = %v, want %v", decoded.Status, status)
		}
	}
}

func TestDecodeSkipsUnknownFields(t *testing.T) {
	// A register request with an extra field a future version might add.
	var buf []byte
	buf = protowire.AppendTag(buf, 1, protowire.BytesType)
	buf = protowire.AppendString(buf, "node-9")
	buf = protowire.AppendTag(buf, 7, protowire.VarintType)
	buf = protowire.AppendVarint(buf, 99)

	req := &PeerRegisterRequest{}
	if err := req.Decode(buf); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if req.Identity != "node-9" {
		t.Errorf("Identity = %q, want %q", req.Identity, "node-9")
	}
}

func TestDecodeMalformedBuffer(t *testing.T) {
	// Truncated length-delimited field.
	var buf []byte
	buf = protowire.AppendTag(buf, 1, protowire.BytesType)
	buf = protowire.AppendVarint(buf, 100) // declares 100 bytes, provides none

	req := &PeerRegisterRequest{}
	if err := req.Decode(buf); err == nil {
		t.Error("Decode() = nil, want error for truncated field")
	}

	gossip := &GossipMessage{}
	if err := gossip.Decode([]byte{0xFF}); err == nil {
		t.Error("Decode() = nil, want error for bad tag")
	}
}

func TestReadWriteMessage(t *testing.T) {
	payload := (&GossipMessage{Content: []byte("abc"), ContentType: "block"}).Encode()
	msg := NewMessage(MsgTypeGossip, payload)
	msg.Header.SetFlag(FlagRequiresAck)

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	errCh := make(chan error, 1)
	go func() {
		errCh <- WriteMessage(client, msg)
	}()

	got, err := ReadMessage(server)
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}

	if got.Header.Type != MsgTypeGossip {
		t.Errorf("Type = %x, want %x", got.Header.Type, MsgTypeGossip)
	}
	if !got.Header.HasFlag(FlagRequiresAck) {
		t.Error("FlagRequiresAck not preserved")
	}
	if got.Header.CorrelationID != msg.Header.CorrelationID {
		t.Error("CorrelationID not preserved")
	}
	if !bytes.Equal(got.Payload, payload) {
		t.Error("Payload mismatch")
	}
}

func TestFingerprint(t *testing.T) {
	a := &GossipMessage{Content: []byte("block123"), ContentType: "block"}
	b := &GossipMessage{Content: []byte("block123"), ContentType: "block"}
	c := &GossipMessage{Content: []byte("block123"), ContentType: "batch"}
	d := &GossipMessage{Content: []byte("block124"), ContentType: "block"}

	if a.Fingerprint() != b.Fingerprint() {
		t.Error("identical messages must share a fingerprint")
	}
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("content type must be part of the fingerprint")
	}
	if a.Fingerprint() == d.Fingerprint() {
		t.Error("content must be part of the fingerprint")
	}

	// The separator keeps (type, content) boundaries unambiguous.
	e := &GossipMessage{Content: []byte("bcontent"), ContentType: "a"}
	f := &GossipMessage{Content: []byte("content"), ContentType: "ab"}
	if e.Fingerprint() == f.Fingerprint() {
		t.Error("fingerprint must not be ambiguous across field boundaries")
	}
}

func TestGenerateCorrelationID(t *testing.T) {
	seen := make(map[CorrelationID]bool)
	for i := 0; i < 100; i++ {
		id := GenerateCorrelationID()
		if id.IsZero() {
			t.Fatal("GenerateCorrelationID() returned zero ID")
		}
		if seen[id] {
			t.Fatal("GenerateCorrelationID() returned duplicate ID")
		}
		seen[id] = true
	}
}
