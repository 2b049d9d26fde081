package packet

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

// PUBLISH carries an application message between client and server
// (MQTT-3.3). DUP/QoS/RETAIN live in the fixed header flags.
type PUBLISH struct {
	*FixedHeader `json:"FixedHeader,omitempty"`

	// PacketID is present only when QoS > 0 (MQTT-2.3.1-5), range 1-65535.
	PacketID uint16 `json:"PacketID,omitempty"`

	Message *Message `json:"message,omitempty"`
}

func (pkt *PUBLISH) Kind() byte {
	return 0x3
}

func (pkt *PUBLISH) Pack(w io.Writer) error {
	buf := GetBuffer()
	defer PutBuffer(buf)

	if pkt.Message == nil {
		return fmt.Errorf("%w: publish message is nil", ErrMalformedPacket)
	}
	if pkt.Message.TopicName == "" {
		return fmt.Errorf("%w: empty topic name", ErrMalformedPacket)
	}
	// Topic names carried in PUBLISH must not contain wildcards (MQTT-3.3.2-2).
	if strings.ContainsAny(pkt.Message.TopicName, "+#") {
		return ErrTopicWildcard
	}
	if err := validateUTF8String(pkt.Message.TopicName); err != nil {
		return err
	}

	buf.Write(encodeUTF8(pkt.Message.TopicName))

	if pkt.FixedHeader.QoS > 0 {
		if pkt.PacketID == 0 {
			return ErrMissingPacketID
		}
		buf.Write(i2b(pkt.PacketID))
	}

	buf.Write(pkt.Message.Content)
	pkt.FixedHeader.RemainingLength = uint32(buf.Len())

	if err := pkt.FixedHeader.Pack(w); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

func (pkt *PUBLISH) Unpack(buf *bytes.Buffer) error {
	topic, err := decodeUTF8[string](buf)
	if err != nil {
		return err
	}
	if topic == "" {
		return fmt.Errorf("%w: empty topic name", ErrMalformedPacket)
	}
	if strings.ContainsAny(topic, "+#") {
		return ErrTopicWildcard
	}
	if err := validateUTF8String(topic); err != nil {
		return err
	}
	pkt.Message = &Message{TopicName: topic}

	if pkt.FixedHeader.QoS > 0 {
		if buf.Len() < 2 {
			return ErrMalformedPacket
		}
		pkt.PacketID = binary.BigEndian.Uint16(buf.Next(2))
		if pkt.PacketID == 0 {
			return ErrMissingPacketID
		}
	}

	// Whatever remains is the application payload; copy it out since buf's
	// backing array is reused by the pool (packet/pool.go).
	pkt.Message.Content = append([]byte{}, buf.Bytes()...)
	return nil
}

func (m *Message) String() string {
	return fmt.Sprintf("%s # %s", m.TopicName, m.Content)
}

// Message is the application payload carried by PUBLISH (MQTT-3.3.3):
// a destination topic name plus the raw content bytes.
type Message struct {
	TopicName string
	Content   []byte
}
