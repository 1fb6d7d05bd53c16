package protocol

import (
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

// Message represents a complete wire message: envelope header plus payload
type Message struct {
	Header  *Header
	Payload []byte
}

// NewMessage creates a new message with a fresh correlation ID
func NewMessage(msgType uint16, payload []byte) *Message {
	return &Message{
		Header: &Header{
			Magic:         ProtocolMagic,
			Version:       ProtocolVersion,
			Type:          msgType,
			Length:        uint32(len(payload)),
			Flags:         0,
			CorrelationID: GenerateCorrelationID(),
			Reserved:      0,
		},
		Payload: payload,
	}
}

// WriteMessage writes header and payload to an io.Writer
func WriteMessage(w io.Writer, m *Message) error {
	if err := WriteHeader(w, m.Header); err != nil {
		return err
	}

	if len(m.Payload) == 0 {
		return nil
	}

	_, err := w.Write(m.Payload)
	return err
}

// ReadMessage reads a full message (header and payload) from an io.Reader
func ReadMessage(r io.Reader) (*Message, error) {
	header, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}

	payload := make([]byte, header.Length)
	if header.Length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
	}

	return &Message{Header: header, Payload: payload}, nil
}

// ===== PEER REGISTRATION =====

// PeerRegisterRequest asks the engine to admit an identity as an active peer
type PeerRegisterRequest struct {
	Identity string // Opaque identity string supplied by the transport layer
}

// Encode encodes the request to protobuf wire format
func (m *PeerRegisterRequest) Encode() []byte {
	var buf []byte
	if m.Identity != "" {
		buf = protowire.AppendTag(buf, 1, protowire.BytesType)
		buf = protowire.AppendString(buf, m.Identity)
	}
	return buf
}

// Decode decodes the request from protobuf wire format
func (m *PeerRegisterRequest) Decode(buf []byte) error {
	return decodeFields(buf, func(num protowire.Number, typ protowire.Type, field []byte) (int, error) {
		if num == 1 && typ == protowire.BytesType {
			v, n := protowire.ConsumeString(field)
			if n < 0 {
				return n, protowire.ParseError(n)
			}
			m.Identity = v
			return n, nil
		}
		return skipField(num, typ, field)
	})
}

// ===== PEER UNREGISTRATION =====

// PeerUnregisterRequest asks the engine to drop an identity
type PeerUnregisterRequest struct {
	Identity string
}

// Encode encodes the request to protobuf wire format
func (m *PeerUnregisterRequest) Encode() []byte {
	var buf []byte
	if m.Identity != "" {
		buf = protowire.AppendTag(buf, 1, protowire.BytesType)
		buf = protowire.AppendString(buf, m.Identity)
	}
	return buf
}

// Decode decodes the request from protobuf wire format
func (m *PeerUnregisterRequest) Decode(buf []byte) error {
	return decodeFields(buf, func(num protowire.Number, typ protowire.Type, field []byte) (int, error) {
		if num == 1 && typ == protowire.BytesType {
			v, n := protowire.ConsumeString(field)
			if n < 0 {
				return n, protowire.ParseError(n)
			}
			m.Identity = v
			return n, nil
		}
		return skipField(num, typ, field)
	})
}

// ===== LIVENESS PROBE =====

// PingRequest is an empty liveness probe; all state rides on the envelope
type PingRequest struct{}

// Encode encodes the ping to protobuf wire format (empty message)
func (m *PingRequest) Encode() []byte {
	return nil
}

// Decode decodes the ping, tolerating fields added by newer versions
func (m *PingRequest) Decode(buf []byte) error {
	return decodeFields(buf, skipField)
}

// ===== GOSSIP =====

// GossipMessage carries a flooded payload; the engine never interprets content
type GossipMessage struct {
	Content     []byte
	ContentType string // Opaque tag for the consumer, e.g. "block" or "batch"
}

// Encode encodes the gossip message to protobuf wire format
func (m *GossipMessage) Encode() []byte {
	var buf []byte
	if len(m.Content) > 0 {
		buf = protowire.AppendTag(buf, 1, protowire.BytesType)
		buf = protowire.AppendBytes(buf, m.Content)
	}
	if m.ContentType != "" {
		buf = protowire.AppendTag(buf, 2, protowire.BytesType)
		buf = protowire.AppendString(buf, m.ContentType)
	}
	return buf
}

// Decode decodes the gossip message from protobuf wire format
func (m *GossipMessage) Decode(buf []byte) error {
	return decodeFields(buf, func(num protowire.Number, typ protowire.Type, field []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(field)
			if n < 0 {
				return n, protowire.ParseError(n)
			}
			m.Content = append([]byte(nil), v...)
			return n, nil
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(field)
			if n < 0 {
				return n, protowire.ParseError(n)
			}
			m.ContentType = v
			return n, nil
		}
		return skipField(num, typ, field)
	})
}

// ===== ACKNOWLEDGEMENT =====

// AckStatus is the terminal result carried by a NetworkAcknowledgement
type AckStatus int32

const (
	AckStatusUnset AckStatus = 0 // Never sent; guards against a missing field reading as OK
	AckStatusOK    AckStatus = 1
	AckStatusError AckStatus = 2
)

// String returns a readable status name
func (s AckStatus) String() string {
	switch s {
	case AckStatusOK:
		return "OK"
	case AckStatusError:
		return "ERROR"
	default:
		return "UNSET"
	}
}

// NetworkAcknowledgement is the terminal response to a prior request
type NetworkAcknowledgement struct {
	Status AckStatus
}

// Encode encodes the acknowledgement to protobuf wire format
func (m *NetworkAcknowledgement) Encode() []byte {
	var buf []byte
	if m.Status != AckStatusUnset {
		buf = protowire.AppendTag(buf, 1, protowire.VarintType)
		buf = protowire.AppendVarint(buf, uint64(m.Status))
	}
	return buf
}

// Decode decodes the acknowledgement from protobuf wire format
func (m *NetworkAcknowledgement) Decode(buf []byte) error {
	return decodeFields(buf, func(num protowire.Number, typ protowire.Type, field []byte) (int, error) {
		if num == 1 && typ == protowire.VarintType {
			v, n := protowire.ConsumeVarint(field)
			if n < 0 {
				return n, protowire.ParseError(n)
			}
			m.Status = AckStatus(v)
			return n, nil
		}
		return skipField(num, typ, field)
	})
}

// ===== WIRE HELPERS =====

// decodeFields walks a protobuf buffer, handing each field to consume.
// consume returns the number of bytes it used after the tag.
func decodeFields(buf []byte, consume func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return protowire.ParseError(n)
		}
		buf = buf[n:]

		n, err := consume(num, typ, buf)
		if err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}

// skipField skips a field of any wire type (unknown fields are not an error)
func skipField(num protowire.Number, typ protowire.Type, buf []byte) (int, error) {
	n := protowire.ConsumeFieldValue(num, typ, buf)
	if n < 0 {
		return n, protowire.ParseError(n)
	}
	return n, nil
}
