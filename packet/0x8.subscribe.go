package packet

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// SUBSCRIBE requests one or more topic subscriptions (MQTT-3.8). Fixed
// header flags must be DUP=0, QoS=1, RETAIN=0 (MQTT-3.8.1-1).
type SUBSCRIBE struct {
	*FixedHeader `json:"FixedHeader,omitempty"`

	PacketID uint16 `json:"PacketID,omitempty"`

	// Subscriptions must contain at least one entry (MQTT-3.8.3-1).
	Subscriptions []Subscription `json:"Subscription,omitempty"`
}

func (pkt *SUBSCRIBE) Kind() byte {
	return 0x8
}

func (pkt *SUBSCRIBE) Pack(w io.Writer) error {
	buf := GetBuffer()
	defer PutBuffer(buf)

	if len(pkt.Subscriptions) == 0 {
		return fmt.Errorf("%w: subscribe with no topic filters", ErrMalformedPacket)
	}

	buf.Write(i2b(pkt.PacketID))
	for _, subscription := range pkt.Subscriptions {
		if subscription.TopicFilter == "" {
			return fmt.Errorf("%w: empty topic filter", ErrMalformedPacket)
		}
		if subscription.MaximumQoS > 2 {
			return ErrInvalidQoS
		}
		buf.Write(encodeUTF8(subscription.TopicFilter))
		buf.WriteByte(subscription.MaximumQoS)
	}
	pkt.FixedHeader.RemainingLength = uint32(buf.Len())
	if err := pkt.FixedHeader.Pack(w); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

func (pkt *SUBSCRIBE) Unpack(buf *bytes.Buffer) error {
	if buf.Len() < 2 {
		return ErrMalformedPacket
	}
	pkt.PacketID = binary.BigEndian.Uint16(buf.Next(2))

	for buf.Len() != 0 {
		filter, err := decodeUTF8[string](buf)
		if err != nil {
			return err
		}
		if buf.Len() < 1 {
			return ErrMalformedPacket
		}
		options := buf.Next(1)[0]
		qos := options & 0b00000011
		if qos > 2 {
			return ErrInvalidQoS
		}
		if options&0b11111100 != 0 {
			return ErrInvalidFlags
		}
		pkt.Subscriptions = append(pkt.Subscriptions, Subscription{TopicFilter: filter, MaximumQoS: qos})
	}
	if len(pkt.Subscriptions) == 0 {
		return fmt.Errorf("%w: subscribe with no topic filters", ErrMalformedPacket)
	}
	return nil
}

// Subscription is one topic filter + max-QoS entry in a SUBSCRIBE payload
// (MQTT-3.8.3).
type Subscription struct {
	// TopicFilter may contain the `+` (single-level) and `#` (multi-level,
	// trailing-only) wildcards.
	TopicFilter string
	MaximumQoS  uint8
}

func (s *Subscription) String() string {
	return fmt.Sprintf("%s@%d", s.TopicFilter, s.MaximumQoS)
}
