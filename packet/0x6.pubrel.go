package packet

import (
	"bytes"
	"encoding/binary"
	"io"
)

// PUBREL is the second step of a QoS 2 exchange (MQTT-3.6): client sends it
// after receiving PUBREC; server replies PUBCOMP. Fixed header flags must be
// DUP=0, QoS=1, RETAIN=0 (MQTT-3.6.1-1), enforced in FixedHeader.Unpack.
type PUBREL struct {
	*FixedHeader `json:"FixedHeader,omitempty"`
	PacketID     uint16 `json:"PacketID,omitempty"`
}

func (pkt *PUBREL) Kind() byte {
	return 0x6
}

func (pkt *PUBREL) Pack(w io.Writer) error {
	buf := GetBuffer()
	defer PutBuffer(buf)

	buf.Write(i2b(pkt.PacketID))
	pkt.FixedHeader.RemainingLength = uint32(buf.Len())

	if err := pkt.FixedHeader.Pack(w); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

func (pkt *PUBREL) Unpack(buf *bytes.Buffer) error {
	if buf.Len() < 2 {
		return ErrMalformedPacket
	}
	pkt.PacketID = binary.BigEndian.Uint16(buf.Next(2))
	return nil
}
