package packet

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// UNSUBSCRIBE removes one or more existing subscriptions (MQTT-3.10). Fixed
// header flags must be DUP=0, QoS=1, RETAIN=0, same as SUBSCRIBE.
type UNSUBSCRIBE struct {
	*FixedHeader

	PacketID uint16

	// TopicFilters must match the exact strings used in the original
	// SUBSCRIBE, at least one entry required.
	TopicFilters []string
}

func (pkt *UNSUBSCRIBE) Kind() byte {
	return 0xA
}

func (pkt *UNSUBSCRIBE) Pack(w io.Writer) error {
	if len(pkt.TopicFilters) == 0 {
		return fmt.Errorf("%w: unsubscribe with no topic filters", ErrMalformedPacket)
	}

	buf := GetBuffer()
	defer PutBuffer(buf)
	buf.Write(i2b(pkt.PacketID))

	for _, filter := range pkt.TopicFilters {
		buf.Write(encodeUTF8(filter))
	}

	pkt.FixedHeader.RemainingLength = uint32(buf.Len())
	if err := pkt.FixedHeader.Pack(w); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

func (pkt *UNSUBSCRIBE) Unpack(buf *bytes.Buffer) error {
	if buf.Len() < 2 {
		return ErrMalformedPacket
	}
	pkt.PacketID = binary.BigEndian.Uint16(buf.Next(2))

	for buf.Len() != 0 {
		filter, err := decodeUTF8[string](buf)
		if err != nil {
			return err
		}
		pkt.TopicFilters = append(pkt.TopicFilters, filter)
	}
	if len(pkt.TopicFilters) == 0 {
		return fmt.Errorf("%w: unsubscribe with no topic filters", ErrMalformedPacket)
	}
	return nil
}
